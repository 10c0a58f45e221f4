// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package cloudevent bridges CloudEvents and messages. Wrap exposes an event as a
// foreign broker.Message that producers accept directly; ToEvent renders a message
// as an event.
package cloudevent

import (
	"fmt"
	"math"
	"mime"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/types"
	"github.com/google/uuid"

	jms "github.com/GwynCerbin/go_jms"
	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// PropertyPrefix marks message properties carrying event attributes and extensions.
const PropertyPrefix = "ce_"

// Attribute properties set by Wrap.
const (
	PropSource          = PropertyPrefix + "source"
	PropSpecVersion     = PropertyPrefix + "specversion"
	PropSubject         = PropertyPrefix + "subject"
	PropDataSchema      = PropertyPrefix + "dataschema"
	PropDataContentType = PropertyPrefix + "datacontenttype"
)

// Message is a CloudEvent seen as a text or bytes message.
type Message struct {
	event cloudevents.Event
	dest  broker.Destination
	kind  broker.PayloadKind
	props map[string]any
	pos   int
}

// Wrap returns e as a broker.Message addressed to dest, which may be nil.
// Text and JSON payloads become text messages, other payloads bytes messages.
func Wrap(e cloudevents.Event, dest broker.Destination) *Message {
	m := &Message{
		event: e,
		dest:  dest,
		kind:  payloadKind(e),
		props: make(map[string]any, 5+len(e.Extensions())),
	}

	m.props[PropSource] = e.Source()
	m.props[PropSpecVersion] = e.SpecVersion()
	setIf(m.props, PropSubject, e.Subject())
	setIf(m.props, PropDataSchema, e.DataSchema())
	setIf(m.props, PropDataContentType, e.DataContentType())

	for name, v := range e.Extensions() {
		m.props[PropertyPrefix+name] = propertyValue(v)
	}

	return m
}

func setIf(props map[string]any, name, v string) {
	if v != "" {
		props[name] = v
	}
}

// propertyValue keeps primitive extension values and formats the others.
func propertyValue(v any) any {
	switch v.(type) {
	case string, bool, int32:
		return v
	}

	s, err := types.Format(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}

func payloadKind(e cloudevents.Event) broker.PayloadKind {
	if len(e.Data()) == 0 {
		return broker.KindNone
	}
	if isTextual(e.DataContentType()) {
		return broker.KindText
	}
	return broker.KindBytes
}

func isTextual(contentType string) bool {
	if contentType == "" {
		return false
	}

	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return strings.HasPrefix(mt, "text/") ||
		mt == "application/json" || strings.HasSuffix(mt, "+json") ||
		mt == "application/xml" || strings.HasSuffix(mt, "+xml")
}

// Event returns the wrapped event.
func (m *Message) Event() cloudevents.Event {
	return m.event
}

// Kind implements broker.Message.
func (m *Message) Kind() broker.PayloadKind {
	return m.kind
}

// Envelope implements broker.Message. Events are persistent with the default priority.
func (m *Message) Envelope() (broker.Envelope, error) {
	env := broker.Envelope{
		MessageID:    m.event.ID(),
		Destination:  m.dest,
		DeliveryMode: broker.Persistent,
		Type:         m.event.Type(),
		Priority:     jms.DefaultPriority,
	}
	if t := m.event.Time(); !t.IsZero() {
		env.Timestamp = t.UnixMilli()
	}

	return env, nil
}

// PropertyNames implements broker.Message.
func (m *Message) PropertyNames() ([]string, error) {
	names := make([]string, 0, len(m.props))
	for name := range m.props {
		names = append(names, name)
	}
	return names, nil
}

// Property implements broker.Message.
func (m *Message) Property(name string) (any, error) {
	return m.props[name], nil
}

// Text implements broker.TextMessage.
func (m *Message) Text() (string, error) {
	return string(m.event.Data()), nil
}

// Reset implements broker.BytesMessage.
func (m *Message) Reset() error {
	m.pos = 0
	return nil
}

// ReadByte implements broker.BytesMessage.
func (m *Message) ReadByte() (byte, error) {
	data := m.event.Data()
	if m.pos >= len(data) {
		return 0, broker.ErrEndOfPayload
	}

	c := data[m.pos]
	m.pos++

	return c, nil
}

// ToEvent renders msg as an event from source. Properties written by Wrap restore
// their attributes; other properties become extensions under a sanitized name.
func ToEvent(msg *jms.Message, source string) (cloudevents.Event, error) {
	e := cloudevents.NewEvent()

	id := msg.MessageID()
	if id == "" {
		id = uuid.NewString()
	}
	e.SetID(id)
	e.SetSource(source)

	typ := msg.Type()
	if typ == "" {
		typ = "jms." + msg.Kind().String()
	}
	e.SetType(typ)

	if ts := msg.Timestamp(); ts > 0 {
		e.SetTime(time.UnixMilli(ts))
	}
	if d := msg.Destination(); d != nil {
		e.SetSubject(d.QualifiedName())
	}

	names, err := msg.PropertyNames()
	if err != nil {
		return e, err
	}

	contentType := ""
	for _, name := range names {
		v, err := msg.Property(name)
		if err != nil {
			return e, err
		}

		switch name {
		case PropSource:
			if source == "" {
				e.SetSource(fmt.Sprint(v))
			}
		case PropSpecVersion:
		case PropSubject:
			e.SetSubject(fmt.Sprint(v))
		case PropDataSchema:
			e.SetDataSchema(fmt.Sprint(v))
		case PropDataContentType:
			contentType = fmt.Sprint(v)
		default:
			if ext := extensionName(strings.TrimPrefix(name, PropertyPrefix)); ext != "" {
				e.SetExtension(ext, extensionValue(v))
			}
		}
	}

	if msg.Kind() != broker.KindNone {
		data, err := msg.Content()
		if err != nil {
			return e, err
		}
		if contentType == "" {
			contentType = defaultContentType(msg.Kind())
		}
		if err = e.SetData(contentType, data); err != nil {
			return e, fmt.Errorf("set data: %w", err)
		}
	}

	if err = e.Validate(); err != nil {
		return e, fmt.Errorf("%w: %w", jms.MessageFormatError{}, err)
	}

	return e, nil
}

func defaultContentType(kind broker.PayloadKind) string {
	switch kind {
	case broker.KindText:
		return "text/plain; charset=utf-8"
	case broker.KindBytes:
		return "application/octet-stream"
	default:
		return "application/json"
	}
}

// contextAttributes are the names extensions must not take.
var contextAttributes = map[string]struct{}{
	"id":              {},
	"source":          {},
	"specversion":     {},
	"type":            {},
	"datacontenttype": {},
	"dataschema":      {},
	"subject":         {},
	"time":            {},
	"data":            {},
	"data_base64":     {},
}

// extensionValue maps a property onto the CloudEvents type system: strings, booleans
// and 32 bit integers pass, everything else travels as its string form.
func extensionValue(v any) any {
	switch t := v.(type) {
	case string, bool, int32:
		return t
	case int8:
		return int32(t)
	case int16:
		return int32(t)
	case uint8:
		return int32(t)
	case uint16:
		return int32(t)
	case int:
		if t >= math.MinInt32 && t <= math.MaxInt32 {
			return int32(t)
		}
	case int64:
		if t >= math.MinInt32 && t <= math.MaxInt32 {
			return int32(t)
		}
	}
	return fmt.Sprint(v)
}

// extensionName lowers name and drops what CloudEvents forbids in attribute names.
func extensionName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') {
			b.WriteRune(r)
		}
	}
	if _, ok := contextAttributes[b.String()]; ok {
		return ""
	}
	return b.String()
}
