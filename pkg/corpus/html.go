package corpus

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

const (
	// HTMLModeText keeps all visible body text.
	HTMLModeText = "text"
	// HTMLModeArticle keeps only the main article found by readability.
	HTMLModeArticle = "article"
)

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "iframe": true, "#comment": true,
}

// blockTags end a line of extracted text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "section": true, "article": true,
	"header": true, "footer": true, "title": true, "dt": true, "dd": true,
}

// ExtractHTMLText converts an HTML page to plain text with one block per line.
func ExtractHTMLText(raw []byte, name, mode string) (string, error) {
	switch mode {
	case "", HTMLModeText:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return "", err
		}
		return visibleText(doc), nil
	case HTMLModeArticle:
		pageURL, err := url.Parse("file:///" + url.PathEscape(name))
		if err != nil {
			return "", err
		}
		parser := readability.NewParser()
		article, err := parser.Parse(bytes.NewReader(raw), pageURL)
		if err != nil {
			return "", err
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
		if err != nil {
			return "", err
		}
		text := visibleText(doc)
		if title := strings.TrimSpace(article.Title); title != "" {
			text = title + "\n" + text
		}
		return text, nil
	}
	return "", fmt.Errorf("unknown HTML mode %q", mode)
}

func visibleText(doc *goquery.Document) string {
	var sb strings.Builder
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		sb.WriteString(title)
		sb.WriteByte('\n')
	}
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	appendText(&sb, root)
	return normalizeLines(sb.String())
}

func appendText(sb *strings.Builder, s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			sb.WriteString(c.Text())
		case skipTags[name]:
		default:
			appendText(sb, c)
			if blockTags[name] {
				sb.WriteByte('\n')
			}
		}
	})
}

// normalizeLines trims every line, collapses inner whitespace and drops blank lines.
func normalizeLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
