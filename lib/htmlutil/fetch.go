package htmlutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"libgal/lib/logging"
	"libgal/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Fetcher downloads pages and hands them back parsed.
type Fetcher struct {
	client *resty.Client
	logger *slog.Logger
}

type FetcherOptions struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Logger    *slog.Logger
}

func NewFetcher(opts FetcherOptions) Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	logger := logging.Or(opts.Logger)

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetHeader("User-Agent", opts.UserAgent)
	telemetry.InstrumentResty(client, "libgal/lib/htmlutil", logger)

	return Fetcher{client: client, logger: logger}
}

// Client exposes the underlying resty client for custom requests.
func (f Fetcher) Client() *resty.Client {
	return f.client
}

// Fetch GETs target and parses the body. Non 2xx responses are errors.
func (f Fetcher) Fetch(ctx context.Context, target string) (*goquery.Document, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(target)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", target, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	if u, err := url.Parse(target); err == nil {
		doc.Url = u
	}
	f.logger.Debug("fetched page", "url", target, "status", res.StatusCode())
	return doc, nil
}
