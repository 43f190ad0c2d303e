package reply

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Paragraphs flattens reply text into the paragraphs written to a response
// cell. Text starting with a tag is parsed as HTML: block elements and line
// breaks end a paragraph, list items are numbered or bulleted, table rows
// become tab separated lines and scripts or styles are dropped. Other text
// is split on line breaks.
func Paragraphs(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "<") || !strings.Contains(trimmed, ">") {
		return lines(trimmed), nil
	}
	doc, err := html.Parse(strings.NewReader(trimmed))
	if err != nil {
		return nil, fmt.Errorf("parsing reply HTML: %w", err)
	}
	f := &flattener{}
	f.walk(doc)
	f.flush()
	return f.out, nil
}

type listState struct {
	ordered bool
	n       int
}

type flattener struct {
	out   []string
	buf   strings.Builder
	lists []listState
}

func (f *flattener) flush() {
	s := strings.Join(strings.Fields(f.buf.String()), " ")
	f.buf.Reset()
	if s != "" {
		f.out = append(f.out, s)
	}
}

func (f *flattener) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		f.buf.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		f.children(n)
		return
	}

	if shouldSkipElement(n.Data) {
		return
	}
	switch n.Data {
	case "br":
		f.flush()
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote",
		"section", "article", "header", "footer", "main", "table", "thead", "tbody":
		f.flush()
		f.children(n)
		f.flush()
	case "pre":
		f.flush()
		f.out = append(f.out, lines(getTextContent(n))...)
	case "tr":
		f.flush()
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				cells = append(cells, strings.Join(strings.Fields(getTextContent(c)), " "))
			}
		}
		if row := strings.TrimSpace(strings.Join(cells, "\t")); row != "" {
			f.out = append(f.out, row)
		}
	case "ul", "ol":
		f.flush()
		f.lists = append(f.lists, listState{ordered: n.Data == "ol"})
		f.children(n)
		f.lists = f.lists[:len(f.lists)-1]
		f.flush()
	case "li":
		f.flush()
		if len(f.lists) > 0 {
			l := &f.lists[len(f.lists)-1]
			l.n++
			if l.ordered {
				f.buf.WriteString(strconv.Itoa(l.n) + ". ")
			} else {
				f.buf.WriteString("• ")
			}
		}
		f.children(n)
		f.flush()
	default:
		f.children(n)
	}
}

func (f *flattener) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		f.walk(c)
	}
}

// shouldSkipElement returns true if the element carries no reply text.
func shouldSkipElement(tagName string) bool {
	switch tagName {
	case "head", "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed":
		return true
	}
	return false
}

// getTextContent returns the concatenated text of n and its descendants.
func getTextContent(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode {
			if shouldSkipElement(n.Data) {
				return
			}
			if n.Data == "br" {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

// lines splits text on line breaks, dropping blank lines.
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
