package ingest

import (
	"github.com/corpora-app/corpora/internal/core"
)

// Split produces ordered overlapping windows over content. chunkOverlap
// must be smaller than chunkSize; the last chunk may be shorter than
// chunkSize and empty content yields no chunks. Windows are measured in
// runes so multi-byte text never splits mid-character.
func Split(content string, chunkSize, chunkOverlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, &core.ValidationError{Field: "chunk_size", Reason: "must be positive"}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, &core.ValidationError{Field: "chunk_overlap", Reason: "must be non-negative and smaller than chunk_size"}
	}

	runes := []rune(content)
	if len(runes) == 0 {
		return nil, nil
	}

	step := chunkSize - chunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
