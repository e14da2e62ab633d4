package textcheck

import (
	"bytes"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
	strip "github.com/grokify/html-strip-tags-go"
)

var (
	// (?s) allows dot to match newlines
	// (?i) makes it case-insensitive
	reRT = regexp.MustCompile(`(?si)<rt\b[^>]*>.*?</rt>`)
	reRP = regexp.MustCompile(`(?si)<rp\b[^>]*>.*?</rp>`)
)

// SanitizeRuby removes ruby text (<rt>...</rt>) and ruby parentheses (<rp>...</rp>)
// from HTML content, so furigana is not proofed as part of the base text
// (e.g. "漢字" would otherwise read "漢字かんじ").
func SanitizeRuby(content []byte) []byte {
	cleaned := reRT.ReplaceAll(content, []byte{})
	cleaned = reRP.ReplaceAll(cleaned, []byte{})
	return cleaned
}

// Article is the readable part of an HTML page.
type Article struct {
	Title string
	Text  string
}

// ExtractArticle strips ruby annotations and extracts the main text of an HTML page.
// When readability finds no article body, the whole page is reduced to plain text.
func ExtractArticle(content []byte, pageURL string) (Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return Article{}, fmt.Errorf("parse page url: %w", err)
	}
	sanitized := SanitizeRuby(content)
	article, err := readability.FromReader(bytes.NewReader(sanitized), u)
	if err != nil {
		return Article{}, fmt.Errorf("extract article: %w", err)
	}
	text := article.TextContent
	if strings.TrimSpace(text) == "" {
		text = PlainText(sanitized)
	}
	return Article{Title: article.Title, Text: text}, nil
}

var reNonText = regexp.MustCompile(`(?si)<(script|style)\b[^>]*>.*?</(script|style)>`)

// PlainText drops scripts, styles and tags from HTML and unescapes entities.
func PlainText(content []byte) string {
	cleaned := reNonText.ReplaceAll(content, []byte(" "))
	return html.UnescapeString(strip.StripTags(string(cleaned)))
}

// LooksLikeHTML reports whether content starts like an HTML document.
func LooksLikeHTML(content []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<body"))
}
