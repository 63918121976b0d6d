package htmlutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"libgal/lib/logging"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const page = `<html><body>
<h1>Cotizaciones</h1>
<ul>
	<li><a href="/dolar">Dólar
		oficial</a></li>
	<li><a href="https://example.com/euro"> Euro </a></li>
	<li><a>sin link</a></li>
</ul>
</body></html>`

func TestParseAndAnchors(t *testing.T) {
	doc, err := Parse(page)
	require.NoError(t, err)
	require.Equal(t, "Cotizaciones", doc.Find("h1").Text())

	base, _ := url.Parse("https://bcra.example/cotizaciones")
	anchors := GetAnchors(context.Background(), doc.Find("a"), base)

	expected := []Anchor{
		{Name: "Dólar oficial", Href: "https://bcra.example/dolar"},
		{Name: "Euro", Href: "https://example.com/euro"},
		{Name: "sin link", Href: "https://bcra.example/cotizaciones"},
	}
	if diff := cmp.Diff(expected, anchors); diff != "" {
		t.Fatalf("anchors mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanText(t *testing.T) {
	require.Equal(t, "a b", CleanText("\t a \x00\n\n  b  "))
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.Contains(t, r.Header.Get("User-Agent"), "Firefox")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherOptions{Logger: logging.Discard()})
	doc, err := fetcher.Fetch(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Equal(t, 3, doc.Find("li").Length())
	require.Equal(t, server.URL+"/", doc.Url.String())

	_, err = fetcher.Fetch(context.Background(), server.URL+"/broken")
	require.ErrorContains(t, err, "500")
}
