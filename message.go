// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"fmt"
	"maps"
	"slices"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// Message is the internal message representation exchanged with a session.
// The payload kind is chosen by the constructor and never changes afterwards.
type Message struct {
	kind broker.PayloadKind

	messageID     string
	correlationID string
	replyTo       *Destination
	destination   *Destination
	deliveryMode  broker.DeliveryMode
	redelivered   bool
	msgType       string
	expiration    int64
	priority      int
	timestamp     int64
	// redeliveryCounter is maintained by the consumer side collaborator.
	redeliveryCounter int

	properties map[string]any
	// headers keeps wire headers that are neither envelope fields nor properties.
	headers map[string]string

	body body

	readOnlyBody       bool
	readOnlyProperties bool
}

// NewMessage returns a message without payload.
func NewMessage() *Message {
	return newMessage(broker.KindNone)
}

func newMessage(kind broker.PayloadKind) *Message {
	return &Message{
		kind:         kind,
		deliveryMode: broker.Persistent,
		priority:     DefaultPriority,
		properties:   make(map[string]any),
		headers:      make(map[string]string),
	}
}

// Kind implements broker.Message.
func (m *Message) Kind() broker.PayloadKind {
	return m.kind
}

// Envelope implements broker.Message.
func (m *Message) Envelope() (broker.Envelope, error) {
	if m == nil {
		return broker.Envelope{}, fmt.Errorf("%w: nil message", IllegalStateError{})
	}

	env := broker.Envelope{
		MessageID:     m.messageID,
		CorrelationID: m.correlationID,
		DeliveryMode:  m.deliveryMode,
		Redelivered:   m.redelivered,
		Type:          m.msgType,
		Expiration:    m.expiration,
		Priority:      m.priority,
		Timestamp:     m.timestamp,
	}
	// keep the interface nil when the pointer is nil
	if m.replyTo != nil {
		env.ReplyTo = m.replyTo
	}
	if m.destination != nil {
		env.Destination = m.destination
	}

	return env, nil
}

func (m *Message) MessageID() string { return m.messageID }
func (m *Message) SetMessageID(id string) { m.messageID = id }
func (m *Message) CorrelationID() string { return m.correlationID }
func (m *Message) SetCorrelationID(id string) { m.correlationID = id }
func (m *Message) ReplyTo() *Destination { return m.replyTo }
func (m *Message) SetReplyTo(d *Destination) { m.replyTo = d }
func (m *Message) Destination() *Destination { return m.destination }
func (m *Message) SetDestination(d *Destination) { m.destination = d }
func (m *Message) Redelivered() bool { return m.redelivered }
func (m *Message) SetRedelivered(v bool) { m.redelivered = v }
func (m *Message) Type() string { return m.msgType }
func (m *Message) SetType(t string) { m.msgType = t }
func (m *Message) Expiration() int64 { return m.expiration }
func (m *Message) SetExpiration(ms int64) { m.expiration = ms }
func (m *Message) Priority() int { return m.priority }
func (m *Message) SetPriority(p int) { m.priority = p }
func (m *Message) Timestamp() int64 { return m.timestamp }
func (m *Message) SetTimestamp(ms int64) { m.timestamp = ms }
func (m *Message) RedeliveryCounter() int { return m.redeliveryCounter }
func (m *Message) SetRedeliveryCounter(n int) { m.redeliveryCounter = n }

// DeliveryMode returns the persistence mode of the message.
func (m *Message) DeliveryMode() broker.DeliveryMode {
	return m.deliveryMode
}

// SetDeliveryMode sets the persistence mode of the message.
func (m *Message) SetDeliveryMode(mode broker.DeliveryMode) {
	m.deliveryMode = mode
}

// IsPersistent reports whether the delivery mode is persistent.
func (m *Message) IsPersistent() bool {
	return m.deliveryMode == broker.Persistent
}

// Property implements broker.Message. Missing names yield nil without error.
func (m *Message) Property(name string) (any, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: property %q of nil message", IllegalStateError{}, name)
	}
	return m.properties[name], nil
}

// PropertyNames implements broker.Message; names are sorted.
func (m *Message) PropertyNames() ([]string, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: property names of nil message", IllegalStateError{})
	}
	return slices.Sorted(maps.Keys(m.properties)), nil
}

// SetProperty stores a user property. Only strings, booleans and numbers are accepted.
func (m *Message) SetProperty(name string, value any) error {
	if m.readOnlyProperties {
		return fmt.Errorf("%w: property %q", MessageNotWriteableError{}, name)
	}
	if name == "" {
		return fmt.Errorf("%w: empty property name", MessageFormatError{})
	}
	if IsReservedHeader(name) {
		return fmt.Errorf("%w: property name %q is a reserved header", MessageFormatError{}, name)
	}
	if !isPrimitive(value) {
		return fmt.Errorf("%w: property %q has unsupported type %T", MessageFormatError{}, name, value)
	}

	m.properties[name] = value

	return nil
}

// ClearProperties removes every user property and makes them writable again.
func (m *Message) ClearProperties() {
	clear(m.properties)
	m.readOnlyProperties = false
}

// Header returns a wire header that is not part of the envelope.
func (m *Message) Header(name string) string {
	return m.headers[name]
}

// SetHeader sets a wire header that is not part of the envelope.
func (m *Message) SetHeader(name, value string) {
	m.headers[name] = value
}

// Headers returns a copy of the extra wire headers.
func (m *Message) Headers() map[string]string {
	return maps.Clone(m.headers)
}

// IsReadOnly reports whether body and properties are locked, as on received messages.
func (m *Message) IsReadOnly() bool {
	return m.readOnlyBody && m.readOnlyProperties
}

func (m *Message) setReadOnly(v bool) {
	m.readOnlyBody = v
	m.readOnlyProperties = v
}

// Copy returns a content preserving duplicate with its own property and header maps.
func (m *Message) Copy() *Message {
	clone := *m
	clone.properties = maps.Clone(m.properties)
	clone.headers = maps.Clone(m.headers)
	clone.body = m.body.clone()
	clone.replyTo = m.replyTo.Copy()
	clone.destination = m.destination.Copy()

	return &clone
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{kind: %s, id: %q, destination: %q}", m.kind, m.messageID, m.destination.String())
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint8, uint16, uint32,
		float32, float64:
		return true
	default:
		return false
	}
}
