package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

// ExtractURL fetches rawURL (bounded by the client timeout, following
// redirects) and normalizes the response. Only text/html and text/plain
// responses are accepted; PDFs in particular must be uploaded as files so
// the pipeline can parse their bytes directly.
func (e *Extractor) ExtractURL(ctx context.Context, rawURL string) (*models.Extraction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.NewExtractionError("url", fmt.Errorf("invalid url %q: %w", rawURL, err))
	}
	req.Header.Set("User-Agent", e.userAgent)

	e.logger.Debug("fetching url", "url", rawURL)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, core.NewExtractionError("url", fmt.Errorf("fetch %s: %w", rawURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.Extractionf("url", "fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, core.NewExtractionError("url", fmt.Errorf("read %s: %w", rawURL, err))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case strings.Contains(contentType, "text/html"):
		res, err := extractHTML(body)
		if err != nil {
			return nil, err
		}
		res.Metadata["source_url"] = rawURL
		return finalize(res), nil

	case strings.Contains(contentType, "text/plain"):
		res := &models.Extraction{
			Content:  strings.TrimSpace(string(body)),
			Metadata: map[string]any{"source_url": rawURL},
		}
		return finalize(res), nil

	case strings.Contains(contentType, "application/pdf"):
		return nil, core.Extractionf("url",
			"PDF URLs are not supported: %s returned application/pdf; download the file and upload it as a document instead", rawURL)

	default:
		return nil, core.Extractionf("url",
			"unsupported content type %q from %s; only text/html and text/plain URLs can be ingested", contentType, rawURL)
	}
}
