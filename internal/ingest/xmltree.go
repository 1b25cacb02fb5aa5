package ingest

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// element is a minimal DOM node: enough to look sections up by tag name
// anywhere in an agent document.
type element struct {
	name     string
	text     strings.Builder
	children []*element
}

var errNoRoot = errors.New("no element found")

// parseTree reads a whole document into an element tree. Text is expected
// to be UTF-8 already, so the declared charset is ignored.
func parseTree(text string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(text))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *element
	var stack []*element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					line, _ := dec.InputPos()
					return nil, &xml.SyntaxError{Msg: "junk after document element", Line: line}
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if strings.TrimSpace(string(t)) != "" {
				line, _ := dec.InputPos()
				return nil, &xml.SyntaxError{Msg: "text outside document element", Line: line}
			}
		}
	}

	if root == nil {
		return nil, errNoRoot
	}
	return root, nil
}

// find returns the first descendant named name, in document order.
func (e *element) find(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant named name, in document order.
func (e *element) findAll(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if c.name == name {
			out = append(out, c)
		}
		out = append(out, c.findAll(name)...)
	}
	return out
}

// childText returns the trimmed text of the first direct child named name.
// ok is false when there is no such child.
func (e *element) childText(name string) (text string, ok bool) {
	for _, c := range e.children {
		if c.name == name {
			return strings.TrimSpace(c.text.String()), true
		}
	}
	return "", false
}

// value is childText without the presence flag.
func (e *element) value(name string) string {
	s, _ := e.childText(name)
	return s
}
