package dify

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// maxAnswerLen bounds the text kept from one answer
const maxAnswerLen = 10 * 1024

// PlainText turns an answer that may carry HTML markup into readable text.
// Answers without markup are only trimmed.
func PlainText(answer string) string {
	if !strings.Contains(answer, "<") {
		return truncate(strings.TrimSpace(answer))
	}
	return truncate(extractText(answer))
}

// extractText parses HTML and returns readable text content
func extractText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}

	var sb strings.Builder
	var extract func(*html.Node)

	// Tags to skip (non-content)
	skipTags := map[string]bool{
		"script": true, "style": true, "noscript": true, "iframe": true,
	}

	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		// Keep paragraph breaks
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "br":
				sb.WriteString("\n")
			}
		}
	}

	extract(doc)

	lines := strings.Split(sb.String(), "\n")
	var kept []string
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func truncate(s string) string {
	if len(s) <= maxAnswerLen {
		return s
	}
	// cut on a rune boundary
	cut := maxAnswerLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
