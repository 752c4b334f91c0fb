package report

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/width"
)

// openingTag returns the first start tag of an outerHTML snippet, e.g.
// `<div class="chat-bubble">`. Snippets are cut at a fixed length so the
// closing markup is usually missing; only the opening tag is reliable.
// When the snippet has no start tag it is returned with whitespace
// collapsed.
func openingTag(snippet string) string {
	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(snippet), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			return z.Token().String()
		}
	}
}

// displayWidth returns the number of terminal columns s occupies.
// East Asian wide and fullwidth runes take two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// truncateWidth shortens s to at most cols terminal columns, ending in
// "..." when something was cut.
func truncateWidth(s string, cols int) string {
	if displayWidth(s) <= cols {
		return s
	}
	if cols <= 3 {
		return strings.Repeat(".", max(cols, 0))
	}

	var sb strings.Builder
	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > cols-3 {
			break
		}
		sb.WriteRune(r)
		used += w
	}
	sb.WriteString("...")
	return sb.String()
}
