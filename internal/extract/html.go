package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corpora-app/corpora/internal/core"
	"github.com/corpora-app/corpora/internal/models"
)

// contentSelectors is tried in order; the first one that matches anything
// supplies the body text. <body> is the fallback.
var contentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".content",
	".main-content",
	"#content",
}

var (
	spaceRe       = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	newlinePadRe  = regexp.MustCompile(` *\n *`)
	multiNewlines = regexp.MustCompile(`\n{2,}`)
)

// extractHTML strips script/style/noscript, pulls title and
// meta-description, and takes body text from the first matching content
// selector. The final text is title, description and body separated by
// blank lines, empty parts omitted.
func extractHTML(data []byte) (*models.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, core.NewExtractionError("html", fmt.Errorf("parse html: %w", err))
	}

	doc.Find("script, style, noscript").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description := strings.TrimSpace(doc.Find(`meta[name=description]`).AttrOr("content", ""))

	sel := doc.Find("body")
	for _, s := range contentSelectors {
		if m := doc.Find(s); m.Length() > 0 {
			sel = m.First()
			break
		}
	}
	body := normalizeWhitespace(blockText(sel))

	var parts []string
	for _, p := range []string{title, description, body} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	metadata := map[string]any{}
	if title != "" {
		metadata["title"] = title
	}
	if description != "" {
		metadata["description"] = description
	}

	return &models.Extraction{
		Content:  strings.Join(parts, "\n\n"),
		Metadata: metadata,
	}, nil
}

// blockText collects text block by block so paragraphs stay on their own
// lines. When the selection holds no block elements its flat text is used.
func blockText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(sel.Text())
	}
	return strings.Join(parts, "\n")
}

// normalizeWhitespace collapses consecutive whitespace to single spaces
// and consecutive newlines to single newlines.
func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = spaceRe.ReplaceAllString(s, " ")
	s = newlinePadRe.ReplaceAllString(s, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
