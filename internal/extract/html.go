package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

var skipElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "head": true, "iframe": true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"tr": true, "table": true, "blockquote": true, "pre": true, "hr": true,
}

// HTMLText renders the visible text of an HTML document, one block per line.
// List items are prefixed with a bullet.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			if blockElements[n.Data] {
				b.WriteString("\n")
			}
			if n.Data == "li" {
				b.WriteString("- ")
			}
		case html.TextNode:
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				b.WriteString(" ")
				break
			}
			if startsWithSpace(n.Data) {
				b.WriteString(" ")
			}
			b.WriteString(strings.Join(words, " "))
			if endsWithSpace(n.Data) {
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		out = append(out, strings.TrimSpace(l))
	}
	return strings.Join(out, "\n"), nil
}

func startsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimLeft(s[:1], " \t\n\r") == ""
}

func endsWithSpace(s string) bool {
	return len(s) > 0 && strings.TrimRight(s[len(s)-1:], " \t\n\r") == ""
}
