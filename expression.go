// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import "github.com/GwynCerbin/go_jms/pkg/broker"

// reservedField selects one of the envelope accessors a selector may name.
type reservedField uint8

const (
	fieldNone reservedField = iota
	fieldDestination
	fieldReplyTo
	fieldType
	fieldDeliveryMode
	fieldPriority
	fieldMessageID
	fieldTimestamp
	fieldCorrelationID
	fieldExpiration
	fieldRedelivered
	fieldDeliveryCount
)

var reservedFields = map[string]reservedField{
	"JMSDestination":    fieldDestination,
	"JMSReplyTo":        fieldReplyTo,
	"JMSType":           fieldType,
	"JMSDeliveryMode":   fieldDeliveryMode,
	"JMSPriority":       fieldPriority,
	"JMSMessageID":      fieldMessageID,
	"JMSTimestamp":      fieldTimestamp,
	"JMSCorrelationID":  fieldCorrelationID,
	"JMSExpiration":     fieldExpiration,
	"JMSRedelivered":    fieldRedelivered,
	"JMSXDeliveryCount": fieldDeliveryCount,
}

// PropertyExpression resolves a named attribute of a message. Names of envelope fields
// are bound to their accessor when the expression is built; any other name reads the
// user property map. Two expressions are equal when their names are.
type PropertyExpression struct {
	name  string
	field reservedField
}

// NewPropertyExpression binds name. The match against reserved names is case sensitive.
func NewPropertyExpression(name string) PropertyExpression {
	return PropertyExpression{name: name, field: reservedFields[name]}
}

// Name returns the expression name.
func (e PropertyExpression) Name() string {
	return e.name
}

// IsReserved reports whether the name selects an envelope field.
func (e PropertyExpression) IsReserved() bool {
	return e.field != fieldNone
}

// Equal reports whether both expressions have the same name.
func (e PropertyExpression) Equal(other PropertyExpression) bool {
	return e.name == other.name
}

func (e PropertyExpression) String() string {
	return e.name
}

// Evaluate returns the attribute value for m. Envelope accessors never fail: a value that
// cannot be read is nil. A user property lookup reports the error of the property map.
func (e PropertyExpression) Evaluate(m *Message) (any, error) {
	if e.field != fieldNone {
		return e.field.read(m), nil
	}
	return m.Property(e.name)
}

func (f reservedField) read(m *Message) any {
	if m == nil {
		return nil
	}

	switch f {
	case fieldDestination:
		if m.destination == nil {
			return nil
		}
		return m.destination.String()
	case fieldReplyTo:
		if m.replyTo == nil {
			return nil
		}
		return m.replyTo.String()
	case fieldType:
		return m.msgType
	case fieldDeliveryMode:
		if m.IsPersistent() {
			return int(broker.Persistent)
		}
		return int(broker.NonPersistent)
	case fieldPriority:
		return m.priority
	case fieldMessageID:
		if m.messageID == "" {
			return nil
		}
		return m.messageID
	case fieldTimestamp:
		return m.timestamp
	case fieldCorrelationID:
		return m.correlationID
	case fieldExpiration:
		return m.expiration
	case fieldRedelivered:
		return m.redelivered
	case fieldDeliveryCount:
		return m.redeliveryCounter + 1
	default:
		return nil
	}
}
