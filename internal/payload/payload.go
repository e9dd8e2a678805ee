// Package payload models request bodies as a closed tagged-variant tree so
// traversal is exhaustive and statically checkable, instead of type-switching
// over map[string]any at every call site.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Member is a single object entry. Members keep the order in which keys
// appeared in the source document.
type Member struct {
	Key   string
	Value Value
}

// Value is one node of a decoded JSON document.
type Value struct {
	kind    Kind
	str     string
	num     json.Number
	boolean bool
	arr     []Value
	obj     []Member
}

// Constructors.

func Null() Value { return Value{kind: KindNull} }
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func String(s string) Value { return Value{kind: KindString, str: s} }
func Array(items ...Value) Value { return Value{kind: KindArray, arr: items} }
func Object(ms ...Member) Value { return Value{kind: KindObject, obj: ms} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// StringValue returns the string payload; empty for non-string nodes.
func (v Value) StringValue() string { return v.str }

// Members returns object entries in document order.
func (v Value) Members() []Member { return v.obj }

// Items returns array elements.
func (v Value) Items() []Value { return v.arr }

// Decode reads a single JSON document into a Value, preserving object key
// order and keeping numbers as json.Number so re-encoding is lossless.
func Decode(r io.Reader) (Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	// Trailing garbage after the document is a malformed body.
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, errors.New("payload: trailing data after document")
	}
	return v, nil
}

// DecodeBytes decodes an in-memory document.
func DecodeBytes(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '{':
			var members []Member
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("payload: non-string object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				members = append(members, Member{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Object(members...), nil
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(items...), nil
		}
	}
	return Value{}, fmt.Errorf("payload: unexpected token %v", tok)
}

// MarshalJSON re-encodes the tree, keeping object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		buf.WriteString(v.num.String())
	case KindString:
		data, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Scan walks the tree depth-first in document order and returns the dotted/
// bracketed path of the first string leaf flagged by leaf. Non-string scalars
// are never flagged. Scanning short-circuits on the first match.
func Scan(v Value, prefix string, leaf func(string) bool) (string, bool) {
	switch v.kind {
	case KindString:
		if leaf(v.str) {
			return prefix, true
		}
	case KindArray:
		for i, item := range v.arr {
			if path, ok := Scan(item, prefix+"["+strconv.Itoa(i)+"]", leaf); ok {
				return path, true
			}
		}
	case KindObject:
		for _, m := range v.obj {
			child := m.Key
			if prefix != "" {
				child = prefix + "." + m.Key
			}
			if path, ok := Scan(m.Value, child, leaf); ok {
				return path, true
			}
		}
	}
	return "", false
}

// Transform rebuilds the tree applying leaf to every string leaf. Unlike
// Scan it always visits every node.
func Transform(v Value, leaf func(string) string) Value {
	switch v.kind {
	case KindString:
		return String(leaf(v.str))
	case KindArray:
		items := make([]Value, len(v.arr))
		for i, item := range v.arr {
			items[i] = Transform(item, leaf)
		}
		return Array(items...)
	case KindObject:
		members := make([]Member, len(v.obj))
		for i, m := range v.obj {
			members[i] = Member{Key: m.Key, Value: Transform(m.Value, leaf)}
		}
		return Object(members...)
	default:
		return v
	}
}

// Lookup returns the string value of a top-level object member, used by the
// CSRF guard to read a body-carried token without re-walking the tree.
func (v Value) Lookup(key string) (string, bool) {
	if v.kind != KindObject {
		return "", false
	}
	for _, m := range v.obj {
		if m.Key == key && m.Value.kind == KindString {
			return m.Value.str, true
		}
	}
	return "", false
}
