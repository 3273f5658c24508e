// Package xmlnode provides forgiving, namespace-tolerant access to a parsed
// XML document. eForms notices arrive with arbitrary namespace prefixes
// (efac:, efbc:, cac:, or none at all), so lookups match on local element
// names only, and every accessor degrades to nil/"" instead of failing.
package xmlnode

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Node wraps a single element of the document tree.
type Node struct {
	el *etree.Element
}

// Parse reads an XML document and returns its root node. It fails only when
// the input cannot be parsed at all or carries no root element; a structurally
// odd but well-formed notice still parses and simply yields missing fields.
func Parse(r io.Reader) (*Node, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("xml document has no root element")
	}
	return &Node{el: root}, nil
}

// ParseBytes is a convenience wrapper around Parse.
func ParseBytes(data []byte) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("xml document has no root element")
	}
	return &Node{el: root}, nil
}

// Name returns the local element name without its namespace prefix.
func (n *Node) Name() string {
	if n == nil || n.el == nil {
		return ""
	}
	return n.el.Tag
}

// GetPath walks the given field names from this node and returns the node at
// the end of the path. Each step matches the first child element whose local
// name equals the field name, regardless of namespace prefix. When repeated
// siblings share the name, the first one wins. Returns nil as soon as any step
// cannot be resolved; it never fails.
func (n *Node) GetPath(path ...string) *Node {
	if n == nil || n.el == nil {
		return nil
	}
	cur := n.el
	for _, name := range path {
		var next *etree.Element
		for _, child := range cur.ChildElements() {
			if child.Tag == name {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return &Node{el: cur}
}

// TextAt is shorthand for GetPath(path...).Text().
func (n *Node) TextAt(path ...string) string {
	return n.GetPath(path...).Text()
}

// Text returns the element's character data with surrounding whitespace
// trimmed, or "" for a nil node.
func (n *Node) Text() string {
	if n == nil || n.el == nil {
		return ""
	}
	return strings.TrimSpace(n.el.Text())
}

// Attr returns the value of the named attribute, matching on the local
// attribute name so prefixed attributes resolve too. Returns "" when the
// node or attribute is absent.
func (n *Node) Attr(key string) string {
	if n == nil || n.el == nil {
		return ""
	}
	for _, a := range n.el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}
