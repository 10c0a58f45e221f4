// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

import "errors"

// ErrEndOfPayload is returned by ReadByte and ReadObject once a body has been fully read.
// It marks the normal end of a payload and is never a failure.
var ErrEndOfPayload = errors.New("end of message payload")

// Destination is an addressable target as seen by any provider.
type Destination interface {
	// Kind reports whether the destination is a queue, a topic or a temporary variant.
	Kind() DestinationKind

	// Name returns the provider-neutral destination name without any wire prefix.
	Name() string
}

// Envelope carries the standard header fields of a message.
type Envelope struct {
	MessageID     string
	CorrelationID string
	ReplyTo       Destination
	Destination   Destination
	DeliveryMode  DeliveryMode
	Redelivered   bool
	Type          string
	Expiration    int64
	Priority      int
	Timestamp     int64
}

// Message is a message produced by some provider, not necessarily this one.
// Kind must be reported up front; body access goes through the kind specific interfaces below.
type Message interface {
	// Kind returns the payload discriminator of the message.
	Kind() PayloadKind

	// Envelope returns a snapshot of the standard header fields.
	Envelope() (Envelope, error)

	// PropertyNames lists the user defined property names.
	PropertyNames() ([]string, error)

	// Property returns the value stored for a user defined property, nil when absent.
	Property(name string) (any, error)
}

// TextMessage is a message whose body is a string.
type TextMessage interface {
	Message

	// Text returns the message body.
	Text() (string, error)
}

// BytesMessage is a message whose body is a stream of uninterpreted bytes.
type BytesMessage interface {
	Message

	// Reset rewinds the body to its first byte.
	Reset() error

	// ReadByte returns the next byte or ErrEndOfPayload.
	ReadByte() (byte, error)
}

// MapMessage is a message whose body is a set of name/value pairs.
type MapMessage interface {
	Message

	// MapNames lists the entry names of the body.
	MapNames() ([]string, error)

	// MapEntry returns the value stored under name.
	MapEntry(name string) (any, error)
}

// StreamMessage is a message whose body is a sequence of primitive values.
type StreamMessage interface {
	Message

	// Reset rewinds the body to its first value.
	Reset() error

	// ReadObject returns the next value, or ErrEndOfPayload.
	ReadObject() (any, error)
}

// ObjectMessage is a message whose body is a single serializable value.
type ObjectMessage interface {
	Message

	// Object returns the body value.
	Object() (any, error)
}
