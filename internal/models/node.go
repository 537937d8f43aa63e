package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// NodeKind identifies the shape of a document value
type NodeKind int

const (
	KindNull NodeKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// DocumentFormat is the encoding of a theme document on the wire or on disk
type DocumentFormat string

const (
	FormatJSON DocumentFormat = "json"
	FormatYAML DocumentFormat = "yaml"
)

// Node is a single value of a theme document.
// Objects keep their keys in document order, which drives emission order
// and preset lookup order.
type Node struct {
	Kind   NodeKind
	Scalar string
	Items  []*Node

	keys   []string
	fields map[string]*Node
}

// NewObject creates an empty object node
func NewObject() *Node {
	return &Node{Kind: KindObject, fields: make(map[string]*Node)}
}

// NewArray creates an array node holding items
func NewArray(items ...*Node) *Node {
	return &Node{Kind: KindArray, Items: items}
}

// NewString creates a string scalar node
func NewString(s string) *Node {
	return &Node{Kind: KindString, Scalar: s}
}

// NewNumber creates a number scalar node from its literal text
func NewNumber(literal string) *Node {
	return &Node{Kind: KindNumber, Scalar: literal}
}

// NewBool creates a boolean scalar node
func NewBool(b bool) *Node {
	if b {
		return &Node{Kind: KindBool, Scalar: "true"}
	}
	return &Node{Kind: KindBool, Scalar: "false"}
}

// IsObject reports whether n is a non-nil object
func (n *Node) IsObject() bool {
	return n != nil && n.Kind == KindObject
}

// IsArray reports whether n is a non-nil array
func (n *Node) IsArray() bool {
	return n != nil && n.Kind == KindArray
}

// IsStyleValue reports whether n can be emitted as a CSS value (string or number)
func (n *Node) IsStyleValue() bool {
	return n != nil && (n.Kind == KindString || n.Kind == KindNumber)
}

// Keys returns the object keys in document order
func (n *Node) Keys() []string {
	if !n.IsObject() {
		return nil
	}
	return n.keys
}

// Len returns the number of object keys or array items
func (n *Node) Len() int {
	switch {
	case n.IsObject():
		return len(n.keys)
	case n.IsArray():
		return len(n.Items)
	}
	return 0
}

// Get returns the value stored under key, or nil
func (n *Node) Get(key string) *Node {
	if !n.IsObject() {
		return nil
	}
	return n.fields[key]
}

// Has reports whether the object has key
func (n *Node) Has(key string) bool {
	if !n.IsObject() {
		return false
	}
	_, ok := n.fields[key]
	return ok
}

// Set stores value under key. Overwriting keeps the key's original position.
func (n *Node) Set(key string, value *Node) *Node {
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = value
	return n
}

// Text returns the scalar text for string nodes
func (n *Node) Text() (string, bool) {
	if n == nil || n.Kind != KindString {
		return "", false
	}
	return n.Scalar, true
}

// Strings returns the items of an array of strings.
// A single string is accepted as a one-element list.
func (n *Node) Strings() ([]string, bool) {
	if s, ok := n.Text(); ok {
		return []string{s}, true
	}
	if !n.IsArray() {
		return nil, false
	}
	out := make([]string, 0, len(n.Items))
	for _, item := range n.Items {
		s, ok := item.Text()
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// Interface converts the node into plain Go values.
// Object key order is lost in the returned maps.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindString:
		return n.Scalar
	case KindNumber:
		return json.Number(n.Scalar)
	case KindBool:
		return n.Scalar == "true"
	case KindObject:
		out := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			out[k] = n.fields[k].Interface()
		}
		return out
	case KindArray:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes the node preserving object key order
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) writeJSON(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindNumber, KindBool:
		buf.WriteString(n.Scalar)
	case KindString:
		b, err := json.Marshal(n.Scalar)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(b)
			buf.WriteByte(':')
			if err := n.fields[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes JSON preserving object key order
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := decodeJSON(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

// ParseNode decodes a document in the given format.
// An empty format sniffs JSON by its leading brace or bracket. Blank input
// yields ErrEmptyDocument.
func ParseNode(data []byte, format DocumentFormat) (*Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	if format == "" {
		format = SniffFormat(data)
	}
	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatYAML:
		return decodeYAML(data)
	}
	return nil, fmt.Errorf("unsupported document format %q", format)
}

// SniffFormat guesses the format of raw document bytes
func SniffFormat(data []byte) DocumentFormat {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// FormatFromExtension maps a file extension to a document format
func FormatFromExtension(ext string) DocumentFormat {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		return FormatYAML
	case "json":
		return FormatJSON
	}
	return ""
}

func decodeJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := decodeJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return node, nil
}

func decodeJSONValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("invalid object key %v", keyTok)
				}
				value, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				item, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return NewString(t), nil
	case json.Number:
		return NewNumber(t.String()), nil
	case bool:
		return NewBool(t), nil
	case nil:
		return &Node{Kind: KindNull}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return nil, errors.New("empty document")
	}
	return fromYAML(&doc)
}

func fromYAML(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return &Node{Kind: KindNull}, nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		return fromYAML(y.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(y.Content); i += 2 {
			value, err := fromYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj.Set(y.Content[i].Value, value)
		}
		return obj, nil
	case yaml.SequenceNode:
		arr := NewArray()
		for _, c := range y.Content {
			item, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, item)
		}
		return arr, nil
	case yaml.ScalarNode:
		switch y.ShortTag() {
		case "!!int", "!!float":
			return NewNumber(y.Value), nil
		case "!!bool":
			return NewBool(strings.EqualFold(y.Value, "true")), nil
		case "!!null":
			return &Node{Kind: KindNull}, nil
		}
		return NewString(y.Value), nil
	}
	return nil, fmt.Errorf("line %d: unsupported yaml node", y.Line)
}
