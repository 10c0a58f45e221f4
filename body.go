// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// body holds the payload of every kind; only the fields of the message kind are used.
type body struct {
	text    string
	data    []byte
	entries map[string]any
	values  []any
	object  any
	// pos is the read cursor of bytes and stream bodies.
	pos int
	// pending marks data as an encoded map, stream or object body not yet decoded.
	pending bool
}

// clone copies the payload. []byte map entries and stream values are copied too;
// the object value itself is shared, its encoded form in data is not.
func (b body) clone() body {
	b.data = slices.Clone(b.data)
	b.entries = maps.Clone(b.entries)
	for k, v := range b.entries {
		if p, ok := v.([]byte); ok {
			b.entries[k] = slices.Clone(p)
		}
	}
	b.values = slices.Clone(b.values)
	for i, v := range b.values {
		if p, ok := v.([]byte); ok {
			b.values[i] = slices.Clone(p)
		}
	}
	return b
}

// NewTextMessage returns a text message carrying text.
func NewTextMessage(text string) *Message {
	m := newMessage(broker.KindText)
	m.body.text = text
	return m
}

// NewBytesMessage returns a bytes message holding a copy of data.
func NewBytesMessage(data ...byte) *Message {
	m := newMessage(broker.KindBytes)
	m.body.data = slices.Clone(data)
	return m
}

// NewMapMessage returns an empty map message.
func NewMapMessage() *Message {
	m := newMessage(broker.KindMap)
	m.body.entries = make(map[string]any)
	return m
}

// NewStreamMessage returns an empty stream message.
func NewStreamMessage() *Message {
	return newMessage(broker.KindStream)
}

// NewObjectMessage returns an object message and encodes obj right away.
func NewObjectMessage(obj any) (*Message, error) {
	m := newMessage(broker.KindObject)
	if err := m.SetObject(obj); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) expectKind(kind broker.PayloadKind) error {
	if m.kind != kind {
		return fmt.Errorf("%w: %s body operation on %s message", MessageFormatError{}, kind, m.kind)
	}
	return nil
}

func (m *Message) checkWritableBody() error {
	if m.readOnlyBody {
		return fmt.Errorf("%w: body", MessageNotWriteableError{})
	}
	return nil
}

// Text implements broker.TextMessage.
func (m *Message) Text() (string, error) {
	if err := m.expectKind(broker.KindText); err != nil {
		return "", err
	}
	return m.body.text, nil
}

// SetText replaces the body of a text message.
func (m *Message) SetText(text string) error {
	if err := m.expectKind(broker.KindText); err != nil {
		return err
	}
	if err := m.checkWritableBody(); err != nil {
		return err
	}
	m.body.text = text
	return nil
}

// WriteByte appends one byte to a bytes message.
func (m *Message) WriteByte(c byte) error {
	return m.WriteBytes([]byte{c})
}

// WriteBytes appends p to a bytes message.
func (m *Message) WriteBytes(p []byte) error {
	if err := m.expectKind(broker.KindBytes); err != nil {
		return err
	}
	if err := m.checkWritableBody(); err != nil {
		return err
	}
	m.body.data = append(m.body.data, p...)
	return nil
}

// ReadByte implements broker.BytesMessage.
func (m *Message) ReadByte() (byte, error) {
	if err := m.expectKind(broker.KindBytes); err != nil {
		return 0, err
	}
	if m.body.pos >= len(m.body.data) {
		return 0, broker.ErrEndOfPayload
	}
	c := m.body.data[m.body.pos]
	m.body.pos++
	return c, nil
}

// BodyLength returns the size of a bytes body.
func (m *Message) BodyLength() (int, error) {
	if err := m.expectKind(broker.KindBytes); err != nil {
		return 0, err
	}
	return len(m.body.data), nil
}

// Reset rewinds a bytes or stream body and puts it in read-only mode.
func (m *Message) Reset() error {
	if m.kind != broker.KindBytes && m.kind != broker.KindStream {
		return fmt.Errorf("%w: reset on %s message", MessageFormatError{}, m.kind)
	}
	m.body.pos = 0
	m.readOnlyBody = true
	return nil
}

// SetMapEntry stores a primitive value or a byte slice under name.
func (m *Message) SetMapEntry(name string, value any) error {
	if err := m.expectKind(broker.KindMap); err != nil {
		return err
	}
	if err := m.checkWritableBody(); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: empty map entry name", MessageFormatError{})
	}
	if !isBodyValue(value) {
		return fmt.Errorf("%w: map entry %q has unsupported type %T", MessageFormatError{}, name, value)
	}
	if err := m.decodePending(); err != nil {
		return err
	}
	m.body.entries[name] = value
	return nil
}

// MapEntry implements broker.MapMessage.
func (m *Message) MapEntry(name string) (any, error) {
	if err := m.expectKind(broker.KindMap); err != nil {
		return nil, err
	}
	if err := m.decodePending(); err != nil {
		return nil, err
	}
	return m.body.entries[name], nil
}

// MapNames implements broker.MapMessage; names are sorted.
func (m *Message) MapNames() ([]string, error) {
	if err := m.expectKind(broker.KindMap); err != nil {
		return nil, err
	}
	if err := m.decodePending(); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(m.body.entries)), nil
}

// WriteObject appends a primitive value or a byte slice to a stream message.
func (m *Message) WriteObject(value any) error {
	if err := m.expectKind(broker.KindStream); err != nil {
		return err
	}
	if err := m.checkWritableBody(); err != nil {
		return err
	}
	if !isBodyValue(value) {
		return fmt.Errorf("%w: stream value has unsupported type %T", MessageFormatError{}, value)
	}
	if err := m.decodePending(); err != nil {
		return err
	}
	m.body.values = append(m.body.values, value)
	return nil
}

// ReadObject implements broker.StreamMessage.
func (m *Message) ReadObject() (any, error) {
	if err := m.expectKind(broker.KindStream); err != nil {
		return nil, err
	}
	if err := m.decodePending(); err != nil {
		return nil, err
	}
	if m.body.pos >= len(m.body.values) {
		return nil, broker.ErrEndOfPayload
	}
	v := m.body.values[m.body.pos]
	m.body.pos++
	return v, nil
}

// SetObject replaces the body of an object message and encodes it immediately,
// so a later Content call only returns the stored form.
func (m *Message) SetObject(obj any) error {
	if err := m.expectKind(broker.KindObject); err != nil {
		return err
	}
	if err := m.checkWritableBody(); err != nil {
		return err
	}

	m.body.object = obj
	m.body.data = nil
	m.body.pending = false

	return m.storeContent()
}

// Object implements broker.ObjectMessage.
func (m *Message) Object() (any, error) {
	if err := m.expectKind(broker.KindObject); err != nil {
		return nil, err
	}
	if err := m.decodePending(); err != nil {
		return nil, err
	}
	return m.body.object, nil
}

func (m *Message) storeContent() error {
	if m.body.data != nil || m.body.object == nil {
		return nil
	}

	data, err := json.Marshal(m.body.object)
	if err != nil {
		return fmt.Errorf("%w: encode object: %w", MessageFormatError{}, err)
	}
	m.body.data = data

	return nil
}

// Content returns the encoded payload buffer as it travels on the wire.
func (m *Message) Content() ([]byte, error) {
	switch m.kind {
	case broker.KindText:
		return []byte(m.body.text), nil
	case broker.KindBytes:
		return m.body.data, nil
	case broker.KindObject:
		if err := m.storeContent(); err != nil {
			return nil, err
		}
		return m.body.data, nil
	case broker.KindMap:
		if m.body.pending {
			return m.body.data, nil
		}
		return json.Marshal(m.body.entries)
	case broker.KindStream:
		if m.body.pending {
			return m.body.data, nil
		}
		if m.body.values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(m.body.values)
	default:
		return nil, nil
	}
}

// setContent installs an encoded payload received from the wire.
func (m *Message) setContent(data []byte) {
	switch m.kind {
	case broker.KindText:
		m.body.text = string(data)
	case broker.KindBytes:
		m.body.data = data
	case broker.KindMap, broker.KindStream, broker.KindObject:
		m.body.data = data
		m.body.pending = len(data) > 0
		if m.kind == broker.KindMap && m.body.entries == nil {
			m.body.entries = make(map[string]any)
		}
	}
}

func (m *Message) decodePending() error {
	if !m.body.pending {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(m.body.data))
	decoder.UseNumber()

	var err error
	switch m.kind {
	case broker.KindMap:
		var entries map[string]any
		if err = decoder.Decode(&entries); err == nil {
			m.body.entries = make(map[string]any, len(entries))
			for k, v := range entries {
				m.body.entries[k] = normalizeNumber(v)
			}
		}
	case broker.KindStream:
		var values []any
		if err = decoder.Decode(&values); err == nil {
			m.body.values = make([]any, len(values))
			for i, v := range values {
				m.body.values[i] = normalizeNumber(v)
			}
		}
	case broker.KindObject:
		var obj any
		if err = decoder.Decode(&obj); err == nil {
			m.body.object = normalizeNumber(obj)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: decode %s body: %w", MessageFormatError{}, m.kind, err)
	}

	m.body.pending = false
	if m.kind != broker.KindObject {
		m.body.data = nil
	}

	return nil
}

// ClearBody empties the payload and makes it writable. Headers and properties are kept.
func (m *Message) ClearBody() {
	m.body = body{}
	if m.kind == broker.KindMap {
		m.body.entries = make(map[string]any)
	}
	m.readOnlyBody = false
}

func isBodyValue(v any) bool {
	if _, ok := v.([]byte); ok {
		return true
	}
	return isPrimitive(v)
}

// normalizeNumber turns json.Number into int64 when integral and float64 otherwise.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	case map[string]any:
		for k, inner := range n {
			n[k] = normalizeNumber(inner)
		}
		return n
	case []any:
		for i, inner := range n {
			n[i] = normalizeNumber(inner)
		}
		return n
	default:
		return v
	}
}
