package extract

import (
	"bytes"
	"fmt"
	"strings"

	"code.sajari.com/docconv"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

var wordMimeTypes = map[string]string{
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"doc":  "application/msword",
}

// extractWord handles docx and legacy doc through docconv. Non-fatal
// conversion details the converter reports end up in metadata so callers
// can see what the round-trip lost.
func extractWord(data []byte, fileType string) (*models.Extraction, error) {
	mime, ok := wordMimeTypes[fileType]
	if !ok {
		return nil, core.Extractionf(fileType, "no word converter for %q", fileType)
	}

	res, err := docconv.Convert(bytes.NewReader(data), mime, false)
	if err != nil {
		return nil, core.NewExtractionError(fileType, fmt.Errorf("docconv: %w", err))
	}

	content := strings.TrimSpace(res.Body)
	if content == "" {
		return nil, core.Extractionf(fileType, "converter produced no text")
	}

	metadata := map[string]any{}
	for k, v := range res.Meta {
		metadata["conversion_"+strings.ToLower(k)] = v
	}

	return &models.Extraction{Content: content, Metadata: metadata}, nil
}
