package extract

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyDocument is returned when the input holds no XML data.
var ErrEmptyDocument = errors.New("extract: XML data is empty")

// ErrInvalidDocument is returned when the input is not well-formed XML.
var ErrInvalidDocument = errors.New("extract: failed to parse XML")

// Node is a generic element of a parsed document. Attributes are not kept;
// EMIS exports carry everything of interest as element text.
type Node struct {
	XMLName  xml.Name
	Text     string  `xml:",chardata"`
	Children []*Node `xml:",any"`
}

// Parse reads an XML document into a Node tree.
func Parse(r io.Reader) (*Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("extract: read document: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses an in-memory XML document into a Node tree.
func ParseBytes(data []byte) (*Node, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyDocument
	}
	var root Node
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &root, nil
}

// Is reports whether the node is the EMIS element with the given local name.
func (n *Node) Is(local string) bool {
	return n != nil && n.XMLName.Local == local && n.XMLName.Space == Namespace
}

// Child returns the first direct child with the given local name, or nil.
func (n *Node) Child(local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Is(local) {
			return c
		}
	}
	return nil
}

// ChildText returns the trimmed text of the first matching child, and false
// when no such child exists.
func (n *Node) ChildText(local string) (string, bool) {
	c := n.Child(local)
	if c == nil {
		return "", false
	}
	return strings.TrimSpace(c.Text), true
}

// Find returns every descendant with the given local name in document order.
func (n *Node) Find(local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, c := range cur.Children {
			if c.Is(local) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// First returns the first descendant with the given local name, or nil.
func (n *Node) First(local string) *Node {
	found := n.Find(local)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}
