package browser

import (
	"strings"

	"golang.org/x/net/html"
)

// snippetMaxLength bounds cleaned outerHTML fragments logged by the cascade.
const snippetMaxLength = 200

// cleanSnippet reduces a candidate element's outerHTML to a compact fragment
// fit for a log line: scripts, styles and comments are dropped, only
// targeting-relevant attributes survive, and text is whitespace-collapsed.
// On parse failure the raw input is truncated instead; diagnostics must not
// introduce new failure paths.
func cleanSnippet(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return truncateSnippet(collapseSpace(rawHTML))
	}

	var b strings.Builder
	writeSnippetNode(doc, &b)
	return truncateSnippet(collapseSpace(b.String()))
}

func writeSnippetNode(n *html.Node, b *strings.Builder) {
	if b.Len() > snippetMaxLength {
		return
	}

	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if snippetSkippedTag(tag) {
			return
		}
		// html.Parse wraps fragments in html/head/body; skip the wrappers
		// but keep walking into them.
		if tag != "html" && tag != "head" && tag != "body" {
			b.WriteByte('<')
			b.WriteString(tag)
			for _, attr := range n.Attr {
				if snippetKeptAttribute(tag, strings.ToLower(attr.Key)) {
					b.WriteByte(' ')
					b.WriteString(attr.Key)
					b.WriteString(`="`)
					b.WriteString(html.EscapeString(attr.Val))
					b.WriteByte('"')
				}
			}
			b.WriteByte('>')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeSnippetNode(c, b)
	}
}

func snippetSkippedTag(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "svg", "iframe":
		return true
	}
	return false
}

func snippetKeptAttribute(tag, attr string) bool {
	switch attr {
	case "id", "class", "role", "aria-label", "aria-expanded", "title", "disabled":
		return true
	}
	if strings.HasPrefix(attr, "data-") {
		return true
	}
	switch tag {
	case "a":
		return attr == "href"
	case "input", "textarea":
		return attr == "type" || attr == "placeholder" || attr == "value"
	}
	return false
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateSnippet(s string) string {
	if len(s) <= snippetMaxLength {
		return s
	}
	return s[:snippetMaxLength] + "..."
}
