// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"fmt"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// TransformMessage converts any provider's message into the internal form.
// An internal message is duplicated with Copy; a foreign one is rebuilt from its body,
// envelope and properties.
func TransformMessage(p Prefixes, src broker.Message) (*Message, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil message", TransformationFailureError{})
	}
	if m, ok := src.(*Message); ok {
		return m.Copy(), nil
	}

	dst, err := transformBody(src)
	if err != nil {
		return nil, err
	}

	if err = CopyProperties(p, src, dst); err != nil {
		return nil, err
	}

	return dst, nil
}

func transformBody(src broker.Message) (*Message, error) {
	switch kind := src.Kind(); kind {
	case broker.KindBytes:
		in, ok := src.(broker.BytesMessage)
		if !ok {
			return nil, capabilityError(kind)
		}
		return transformBytes(in)
	case broker.KindMap:
		in, ok := src.(broker.MapMessage)
		if !ok {
			return nil, capabilityError(kind)
		}
		return transformMap(in)
	case broker.KindObject:
		in, ok := src.(broker.ObjectMessage)
		if !ok {
			return nil, capabilityError(kind)
		}
		obj, err := in.Object()
		if err != nil {
			return nil, fmt.Errorf("%w: read object: %w", TransformationFailureError{}, err)
		}
		out, err := NewObjectMessage(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", TransformationFailureError{}, err)
		}
		return out, nil
	case broker.KindStream:
		in, ok := src.(broker.StreamMessage)
		if !ok {
			return nil, capabilityError(kind)
		}
		return transformStream(in)
	case broker.KindText:
		in, ok := src.(broker.TextMessage)
		if !ok {
			return nil, capabilityError(kind)
		}
		text, err := in.Text()
		if err != nil {
			return nil, fmt.Errorf("%w: read text: %w", TransformationFailureError{}, err)
		}
		return NewTextMessage(text), nil
	default:
		return NewMessage(), nil
	}
}

func capabilityError(kind broker.PayloadKind) error {
	return fmt.Errorf("%w: message reports %s kind without its body accessors", TransformationFailureError{}, kind)
}

// transformBytes copies byte by byte until the payload ends. A read error other than
// ErrEndOfPayload also ends it; the bytes read so far are kept.
func transformBytes(in broker.BytesMessage) (*Message, error) {
	if err := in.Reset(); err != nil {
		return nil, fmt.Errorf("%w: reset bytes: %w", TransformationFailureError{}, err)
	}

	out := NewBytesMessage()
	for {
		c, err := in.ReadByte()
		if err != nil {
			return out, nil
		}
		out.body.data = append(out.body.data, c)
	}
}

func transformMap(in broker.MapMessage) (*Message, error) {
	names, err := in.MapNames()
	if err != nil {
		return nil, fmt.Errorf("%w: map names: %w", TransformationFailureError{}, err)
	}

	out := NewMapMessage()
	for _, name := range names {
		value, err := in.MapEntry(name)
		if err != nil {
			return nil, fmt.Errorf("%w: map entry %q: %w", TransformationFailureError{}, name, err)
		}
		// verbatim, no validation or coercion
		out.body.entries[name] = value
	}

	return out, nil
}

// transformStream reads values until a nil value or ErrEndOfPayload, with the same
// error policy as transformBytes.
func transformStream(in broker.StreamMessage) (*Message, error) {
	if err := in.Reset(); err != nil {
		return nil, fmt.Errorf("%w: reset stream: %w", TransformationFailureError{}, err)
	}

	out := NewStreamMessage()
	for {
		value, err := in.ReadObject()
		if err != nil || value == nil {
			return out, nil
		}
		out.body.values = append(out.body.values, value)
	}
}

// CopyProperties copies the envelope and every user property of from onto to.
// Destinations are resolved to their internal form. The first failure aborts the copy.
func CopyProperties(p Prefixes, from broker.Message, to *Message) error {
	env, err := from.Envelope()
	if err != nil {
		return fmt.Errorf("%w: envelope: %w", TransformationFailureError{}, err)
	}

	replyTo, err := TransformDestination(p, env.ReplyTo)
	if err != nil {
		return fmt.Errorf("%w: reply-to: %w", TransformationFailureError{}, err)
	}
	dest, err := TransformDestination(p, env.Destination)
	if err != nil {
		return fmt.Errorf("%w: destination: %w", TransformationFailureError{}, err)
	}

	to.messageID = env.MessageID
	to.correlationID = env.CorrelationID
	to.replyTo = replyTo
	to.destination = dest
	to.deliveryMode = env.DeliveryMode
	to.redelivered = env.Redelivered
	to.msgType = env.Type
	to.expiration = env.Expiration
	to.priority = env.Priority
	to.timestamp = env.Timestamp

	names, err := from.PropertyNames()
	if err != nil {
		return fmt.Errorf("%w: property names: %w", TransformationFailureError{}, err)
	}

	for _, name := range names {
		value, err := from.Property(name)
		if err != nil {
			return fmt.Errorf("%w: property %q: %w", TransformationFailureError{}, name, err)
		}
		if err = to.SetProperty(name, value); err != nil {
			return fmt.Errorf("%w: %w", TransformationFailureError{}, err)
		}
	}

	return nil
}
