package dibi

import (
	"bytes"
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/net/html"
)

// attr returns the value of the named attribute or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// walk visits n and its descendants depth first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if !walk(child, visit) {
			return false
		}
	}
	return true
}

// findAll returns the element descendants of root matching pred.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var nodes []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// find returns the first element descendant of root matching pred.
func find(root *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "id") == id }
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func byTagAttr(tag, key, value string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag && attr(n, key) == value }
}

// text returns the plain text of n's children. Text areas hold their
// markup as raw text, which is converted as well.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b bytes.Buffer
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			b.WriteString(child.Data)
			continue
		}
		if err := html.Render(&b, child); err != nil {
			return ""
		}
	}
	return strings.TrimSpace(html2text.HTML2Text(b.String()))
}
