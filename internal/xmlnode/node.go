// Package xmlnode provides a generic, schema-free XML tree node shared by
// the article-split table transform and the field extractors, grounded on
// eutils' xplore.go practice of walking parsed XML with generic element
// handlers rather than fixed per-document-type structs.
package xmlnode

import (
	"encoding/xml"
	"strings"
)

// Node is one element in a parsed document. Unlike a fixed struct per
// schema, Node accepts any element shape, which is what letting article.xml
// vary by journal/publisher requires.
type Node struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",innerxml"`
	Nodes   []Node     `xml:",any"`
}

// Parse unmarshals raw XML bytes into a Node tree.
func Parse(data []byte) (*Node, error) {
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Attr returns the named attribute's value, or "" if absent.
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Child returns the first direct child element named name, or nil.
func (n *Node) Child(name string) *Node {
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			return &n.Nodes[i]
		}
	}
	return nil
}

// Children returns every direct child element named name.
func (n *Node) Children(name string) []*Node {
	var out []*Node
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == name {
			out = append(out, &n.Nodes[i])
		}
	}
	return out
}

// Path walks a slash-separated sequence of child element names, returning
// nil if any step is missing. Mirrors the fixed XPath-like lookups the
// original metadata/authors extractors apply (front/article-meta/...).
func (n *Node) Path(parts ...string) *Node {
	cur := n
	for _, p := range parts {
		cur = cur.Child(p)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Text concatenates n's character data, stripping any nested tags -- the
// equivalent of lxml's itertext() join used throughout the original
// extractors when only the rendered text of a mixed-content element matters.
func (n *Node) Text() string {
	return strings.TrimSpace(stripTags(n.Content))
}

func stripTags(s string) string {
	var sb strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// FindAll recursively collects every descendant element named name,
// document order, depth-first.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	findAll(n, name, &out)
	return out
}

func findAll(n *Node, name string, out *[]*Node) {
	for i := range n.Nodes {
		child := &n.Nodes[i]
		if child.XMLName.Local == name {
			*out = append(*out, child)
		}
		findAll(child, name, out)
	}
}
