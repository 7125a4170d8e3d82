package invoice

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// node is a namespace-agnostic XML element. Lookups match local names only, since
// invoice issuers bind the UBL namespaces to whatever prefixes they like.
type node struct {
	XMLName  xml.Name
	Content  string `xml:",chardata"`
	Children []node `xml:",any"`
}

// parseTree decodes the root element of data into a node tree. Only whitespace, comments
// and processing instructions may follow the root.
func parseTree(data []byte) (*node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel

	var root node
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return &root, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: after root element: %v", ErrMalformedXML, err)
		}
		switch tok := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(tok)) > 0 {
				return nil, fmt.Errorf("%w: text after root element", ErrMalformedXML)
			}
		default:
			return nil, fmt.Errorf("%w: content after root element", ErrMalformedXML)
		}
	}
}

// name returns the local name of the element.
func (n *node) name() string {
	return n.XMLName.Local
}

// text returns the trimmed character data of the element.
func (n *node) text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content)
}

// child returns the first direct child with the given local name.
func (n *node) child(local string) *node {
	if n == nil {
		return nil
	}
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

// children returns every direct child with the given local name.
func (n *node) children(local string) []*node {
	if n == nil {
		return nil
	}
	var out []*node
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			out = append(out, &n.Children[i])
		}
	}
	return out
}

// path follows direct children by local name.
func (n *node) path(locals ...string) *node {
	current := n
	for _, local := range locals {
		current = current.child(local)
		if current == nil {
			return nil
		}
	}
	return current
}

// find returns the first descendant, depth first, with the given local name and
// non-empty text.
func (n *node) find(local string) *node {
	if n == nil {
		return nil
	}
	for i := range n.Children {
		c := &n.Children[i]
		if c.XMLName.Local == local && c.text() != "" {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}
