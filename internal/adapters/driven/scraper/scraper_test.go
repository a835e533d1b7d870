package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText_StripsMarkup(t *testing.T) {
	html := `<html><head>
		<title>Page</title>
		<style>body { color: red; }</style>
		<script>console.log("tracking");</script>
	</head><body>
		<h1>Heading</h1>
		<p>First paragraph with <b>bold</b> text.</p>
		<p>Second &amp; final paragraph.</p>
	</body></html>`

	text := ExtractText(html)

	assert.Contains(t, text, "Heading")
	assert.Contains(t, text, "First paragraph with bold text.")
	assert.Contains(t, text, "Second & final paragraph.")
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "<")
}

func TestExtractText_CollapsesWhitespace(t *testing.T) {
	text := ExtractText("line one\n\n\n   line   two\t\tend")
	assert.Equal(t, "line one line two end", text)
}

func TestExtractText_PlainTextPassesThrough(t *testing.T) {
	text := ExtractText("just plain text")
	assert.Equal(t, "just plain text", text)
}

func TestExtractText_MultilineScriptBlock(t *testing.T) {
	html := "<script>\nvar a = 1;\nvar b = 2;\n</script>real content"
	assert.Equal(t, "real content", ExtractText(html))
}

func TestScrape_Success(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body><p>page content</p></body></html>"))
	}))
	defer server.Close()

	c := NewClient(Config{RateLimit: 100})
	text, err := c.Scrape(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "page content", text)
	assert.Equal(t, DefaultUserAgent, gotUserAgent)
}

func TestScrape_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(Config{RateLimit: 100})
	_, err := c.Scrape(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestScrape_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	c := NewClient(Config{RateLimit: 100})
	_, err := c.Scrape(context.Background(), server.URL)

	assert.Error(t, err)
}
