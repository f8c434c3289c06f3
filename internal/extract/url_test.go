package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpora-app/corpora/internal/core"
)

func TestExtractURL(t *testing.T) {
	e := newTestExtractor()
	ctx := context.Background()

	t.Run("html page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><title>Remote</title></head><body><p>fetched body</p></body></html>`))
		}))
		defer srv.Close()

		res, err := e.ExtractURL(ctx, srv.URL)
		require.NoError(t, err)

		assert.Contains(t, res.Content, "Remote")
		assert.Contains(t, res.Content, "fetched body")
		assert.Equal(t, srv.URL, res.Metadata["source_url"])
		assert.Equal(t, 3, res.Metadata["word_count"])
	})

	t.Run("plain text page", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("  raw text response  \n"))
		}))
		defer srv.Close()

		res, err := e.ExtractURL(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "raw text response", res.Content)
		assert.Equal(t, srv.URL, res.Metadata["source_url"])
	})

	t.Run("redirects are followed", func(t *testing.T) {
		target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("after redirect"))
		}))
		defer target.Close()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, target.URL, http.StatusFound)
		}))
		defer srv.Close()

		res, err := e.ExtractURL(ctx, srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "after redirect", res.Content)
	})

	t.Run("pdf urls are rejected with guidance", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		}))
		defer srv.Close()

		_, err := e.ExtractURL(ctx, srv.URL)
		var extErr *core.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Contains(t, extErr.Error(), "PDF URLs are not supported")
		assert.Contains(t, extErr.Error(), "upload it as a document")
	})

	t.Run("other content types are rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte{0x89, 0x50})
		}))
		defer srv.Close()

		_, err := e.ExtractURL(ctx, srv.URL)
		var extErr *core.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Contains(t, extErr.Error(), "unsupported content type")
	})

	t.Run("non-2xx status errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := e.ExtractURL(ctx, srv.URL)
		var extErr *core.ExtractionError
		require.ErrorAs(t, err, &extErr)
		assert.Contains(t, extErr.Error(), "status 404")
	})

	t.Run("unreachable host errors", func(t *testing.T) {
		_, err := e.ExtractURL(ctx, "http://127.0.0.1:1/none")
		var extErr *core.ExtractionError
		require.ErrorAs(t, err, &extErr)
	})
}
