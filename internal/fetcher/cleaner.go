package fetcher

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// nonContentSelectors matches elements stripped before visible-text
// extraction.
const nonContentSelectors = "script, style, noscript, nav, header, footer, iframe, svg"

// CleanHTML decodes raw HTML bytes (honoring the declared charset) and
// returns the visible text with boilerplate removed. Line structure is
// preserved so downstream heuristics can reason per line; spaces within a
// line are collapsed. Returns "" when nothing readable remains.
func CleanHTML(raw []byte, contentType string) (string, error) {
	reader, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		// Unknown charset: fall back to the raw bytes as-is.
		reader = bytes.NewReader(raw)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find(nonContentSelectors).Remove()

	// Break block-level elements onto their own lines before flattening, so
	// "Mon 9:00-17:00" rows stay intact.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, section, article, dt, dd").
		AppendHtml("\n")

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if collapsed := strings.Join(strings.Fields(line), " "); collapsed != "" {
			lines = append(lines, collapsed)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// ComputeHash returns the SHA-256 hex digest of the raw response bytes.
func ComputeHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
