package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

// extractPDF parses page text and concatenates it; metadata.pages carries
// the page count. The underlying parser panics on some malformed inputs,
// so the whole parse runs behind a recover.
func extractPDF(data []byte) (res *models.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = core.Extractionf("pdf", "malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, core.NewExtractionError("pdf", fmt.Errorf("open pdf: %w", err))
	}

	numPages := r.NumPage()
	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, core.NewExtractionError("pdf", fmt.Errorf("page %d: %w", i, err))
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimSpace(text))
	}

	return &models.Extraction{
		Content:  sb.String(),
		Metadata: map[string]any{"pages": numPages},
	}, nil
}
