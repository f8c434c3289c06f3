package extract

import (
	"strings"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

// extractCSV renders each data row as "header: value, header: value, …"
// with the first row as headers. Rows and columns land in metadata.
//
// Known limitation: cells are split on raw commas and newlines, so quoted
// commas and embedded newlines are not handled. csv_test.go pins this
// behavior down.
func extractCSV(data []byte) (*models.Extraction, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells := strings.Split(line, ",")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows = append(rows, cells)
	}

	if len(rows) == 0 {
		return nil, core.Extractionf("csv", "empty csv input")
	}

	headers := rows[0]
	var lines []string
	for _, row := range rows[1:] {
		var pairs []string
		for i, cell := range row {
			header := ""
			if i < len(headers) {
				header = headers[i]
			}
			pairs = append(pairs, header+": "+cell)
		}
		lines = append(lines, strings.Join(pairs, ", "))
	}

	return &models.Extraction{
		Content: strings.Join(lines, "\n"),
		Metadata: map[string]any{
			"rows":    len(rows) - 1,
			"columns": len(headers),
		},
	}, nil
}
