package readpos

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// paragraphTags is the set of tags that terminate a paragraph during text
// extraction. Each produces a blank line, so paragraph indexes can be
// recovered by counting double newlines.
var paragraphTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
}

// lineBreakTags produce a single newline without starting a new paragraph.
var lineBreakTags = map[atom.Atom]bool{
	atom.Br: true,
	atom.Hr: true,
}

// skipTags is the set of tags whose content is skipped entirely.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// blockAtoms are the container elements the span locator walks up to when
// collecting surrounding context.
var blockAtoms = map[atom.Atom]bool{
	atom.P:       true,
	atom.Div:     true,
	atom.Section: true,
	atom.Body:    true,
}

// extractText strips markup from XHTML content and returns NFC-normalized
// plain text. Paragraph-level elements are separated by blank lines; <br>
// and <hr> produce single newlines; script and style content is dropped.
func extractText(htmlData []byte) (string, error) {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlData))

	var buf strings.Builder
	skipDepth := 0
	pendingBreak := "" // break to emit before the next text

	flushBreak := func() {
		if pendingBreak != "" && buf.Len() > 0 {
			buf.WriteString(pendingBreak)
		}
		pendingBreak = ""
	}

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			err := tokenizer.Err()
			if errors.Is(err, io.EOF) {
				return norm.NFC.String(strings.TrimSpace(buf.String())), nil
			}
			return "", err

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 {
				continue
			}
			if paragraphTags[a] {
				pendingBreak = "\n\n"
			} else if lineBreakTags[a] && pendingBreak == "" {
				pendingBreak = "\n"
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			a := atom.Lookup(tn)
			if skipTags[a] && skipDepth > 0 {
				skipDepth--
				continue
			}
			if skipDepth == 0 && paragraphTags[a] {
				pendingBreak = "\n\n"
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := collapseWhitespace(string(tokenizer.Text()))
			if text != "" {
				flushBreak()
				buf.WriteString(text)
			}
		}
	}
}

// collapseWhitespace replaces runs of whitespace with single spaces,
// preserving a leading/trailing space so inline elements keep their
// spacing. Returns "" for all-whitespace input.
func collapseWhitespace(s string) string {
	var buf strings.Builder
	inSpace := false
	hasNonSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
		} else {
			if inSpace && buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteRune(r)
			inSpace = false
			hasNonSpace = true
		}
	}
	if !hasNonSpace {
		return ""
	}
	out := buf.String()
	if isWhitespace(rune(s[0])) {
		out = " " + out
	}
	if inSpace {
		out += " "
	}
	return out
}

// isWhitespace reports whether r is an ASCII whitespace character.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// parseHTML parses XHTML content into a DOM tree.
func parseHTML(data []byte) (*html.Node, error) {
	return html.Parse(bytes.NewReader(data))
}

// findElementByID performs a depth-first search for the element whose id
// attribute equals id.
func findElementByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode && getAttr(n, "id") == id {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElementByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// nearestBlockAncestor walks up from n to the closest paragraph, division,
// section, or body container. Returns nil when none encloses n.
func nearestBlockAncestor(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && blockAtoms[p.DataAtom] {
			return p
		}
	}
	return nil
}

// nodeText collects the normalized text content of a DOM subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipTags[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return norm.NFC.String(strings.TrimSpace(collapseWhitespace(sb.String())))
}

// getAttr returns the value of the attribute with the given key on n.
func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// firstHeadingText returns the text of the first h1/h2/h3 or <title>
// element in the document, used to derive chapter titles for renditions
// without a navigation document.
func firstHeadingText(data []byte) string {
	doc, err := parseHTML(data)
	if err != nil {
		return ""
	}
	for _, a := range []atom.Atom{atom.H1, atom.H2, atom.H3, atom.Title} {
		if n := findElement(doc, a); n != nil {
			if t := nodeText(n); t != "" {
				return t
			}
		}
	}
	return ""
}

// findElement performs a depth-first search for a node with the given tag.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
