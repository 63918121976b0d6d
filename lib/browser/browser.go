// Package browser drives a Firefox instance through geckodriver for pages
// that only render with javascript, or to download files.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"libgal/lib/htmlutil"
	"libgal/lib/logging"

	"github.com/PuerkitoBio/goquery"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("libgal/lib/browser")

const DefaultPort = 4444

type Options struct {
	// Webdriver is the path of the geckodriver executable.
	Webdriver string `json:"webdriver"`
	// Binary is the path of the firefox executable.
	Binary string `json:"binary"`
	URL    string `json:"url"`
	Hidden bool   `json:"hidden"`
	// FileType selects which downloads are saved without asking: pdf, txt,
	// png or jpg.
	FileType    string `json:"file_type"`
	DownloadDir string `json:"download_dir"`
	Port        int    `json:"port"`
}

var mimeTypes = map[string]string{
	"pdf": "application/pdf",
	"txt": "text/plain",
	"png": "image/png",
	"jpg": "image/jpeg",
}

// Capabilities builds the webdriver capabilities for opts.
func Capabilities(opts Options) (selenium.Capabilities, error) {
	prefs := map[string]any{
		"browser.download.folderList":               2,
		"browser.download.manager.showWhenStarting": false,
	}
	if opts.DownloadDir != "" {
		prefs["browser.download.dir"] = opts.DownloadDir
	}
	if opts.FileType != "" {
		kind := strings.ToLower(strings.TrimSpace(opts.FileType))
		mime, ok := mimeTypes[kind]
		if !ok {
			return nil, fmt.Errorf("unsupported download file type %q", opts.FileType)
		}
		prefs["browser.helperApps.neverAsk.saveToDisk"] = mime
		if kind == "pdf" {
			prefs["pdfjs.disabled"] = true
		}
	}

	ff := firefox.Capabilities{
		Binary: opts.Binary,
		Prefs:  prefs,
	}
	if opts.Hidden {
		ff.Args = append(ff.Args, "-headless")
	}

	caps := selenium.Capabilities{"browserName": "firefox"}
	caps.AddFirefox(ff)
	return caps, nil
}

type Session struct {
	selenium.WebDriver
	service *selenium.Service
	logger  *slog.Logger
}

// OpenFirefox starts geckodriver, launches firefox and navigates to
// opts.URL when it is set.
func OpenFirefox(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	_, span := tracer.Start(ctx, "OpenFirefox")
	defer span.End()
	span.SetAttributes(attribute.String("url", opts.URL))

	logger = logging.Or(logger)
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	caps, err := Capabilities(opts)
	if err != nil {
		return nil, err
	}

	service, err := selenium.NewGeckoDriverService(opts.Webdriver, opts.Port)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("start geckodriver: %w", err)
	}
	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d", opts.Port))
	if err != nil {
		span.RecordError(err)
		service.Stop()
		return nil, fmt.Errorf("start firefox: %w", err)
	}

	session := &Session{WebDriver: wd, service: service, logger: logger}
	if opts.URL != "" {
		if err := wd.Get(opts.URL); err != nil {
			span.RecordError(err)
			session.Close()
			return nil, fmt.Errorf("navigate to %s: %w", opts.URL, err)
		}
	}
	logger.Info("firefox session started", "url", opts.URL, "hidden", opts.Hidden)
	return session, nil
}

// Document parses the page currently loaded in the browser.
func (s *Session) Document() (*goquery.Document, error) {
	source, err := s.PageSource()
	if err != nil {
		return nil, err
	}
	return htmlutil.Parse(source)
}

func (s *Session) Close() error {
	s.logger.Debug("closing firefox session")
	return errors.Join(s.Quit(), s.service.Stop())
}
