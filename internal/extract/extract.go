// Package extract turns raw document bytes or a fetched URL into
// normalized text plus extraction metadata. It is a pure transformation:
// no persistence, and no network traffic beyond the bounded URL fetch.
package extract

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
	"github.com/corpora-app/corpora/pkg/logging"
)

// SupportedFileTypes is the fixed whitelist of ingestable formats.
var SupportedFileTypes = []string{"pdf", "docx", "doc", "txt", "md", "html", "json", "csv"}

// IsSupportedFileType reports whether fileType is on the whitelist.
func IsSupportedFileType(fileType string) bool {
	for _, t := range SupportedFileTypes {
		if t == fileType {
			return true
		}
	}
	return false
}

const defaultUserAgent = "corpora-ingest/1.0 (+https://github.com/corpora-app/corpora)"

// maxFetchBytes caps how much of a URL response we are willing to read.
const maxFetchBytes = 10 << 20

// Extractor implements core.DocumentExtractor with one strategy per
// file type.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	logger     *logging.Logger
}

var _ core.DocumentExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor whose URL fetches are bounded by
// fetchTimeout. Redirects are followed (net/http default).
func NewExtractor(fetchTimeout time.Duration) *Extractor {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: fetchTimeout},
		userAgent:  defaultUserAgent,
		logger:     logging.NewLogger("extract"),
	}
}

// ExtractBytes dispatches on the declared file type and returns normalized
// text. metadata.word_count is always the whitespace token count of the
// returned content. Failures come back as a single *core.ExtractionError;
// there is no partial success.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, fileType string) (*models.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewExtractionError(fileType, err)
	}

	var (
		res *models.Extraction
		err error
	)
	switch fileType {
	case "pdf":
		res, err = extractPDF(data)
	case "docx", "doc":
		res, err = extractWord(data, fileType)
	case "txt", "md":
		res = &models.Extraction{Content: string(data), Metadata: map[string]any{}}
	case "html":
		res, err = extractHTML(data)
	case "json":
		res, err = extractJSON(data)
	case "csv":
		res, err = extractCSV(data)
	default:
		return nil, core.Extractionf(fileType, "unsupported file type %q; supported types are %s",
			fileType, strings.Join(SupportedFileTypes, ", "))
	}
	if err != nil {
		return nil, err
	}
	return finalize(res), nil
}

// finalize stamps the invariant metadata every extraction carries.
func finalize(res *models.Extraction) *models.Extraction {
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["word_count"] = countWords(res.Content)
	return res
}

func countWords(s string) int {
	return len(strings.Fields(s))
}
