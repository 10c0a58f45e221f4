// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"fmt"
	"strconv"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// Frame commands used by the codec.
const (
	CommandSend    = "SEND"
	CommandMessage = "MESSAGE"
)

// Frame is a message in its header and body wire form.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

var kindTransforms = map[broker.PayloadKind]string{
	broker.KindNone:   TransformPlain,
	broker.KindText:   TransformText,
	broker.KindBytes:  TransformBytes,
	broker.KindMap:    TransformMap,
	broker.KindStream: TransformStream,
	broker.KindObject: TransformObject,
}

var transformKinds = map[string]broker.PayloadKind{
	TransformPlain:  broker.KindNone,
	TransformText:   broker.KindText,
	TransformBytes:  broker.KindBytes,
	TransformMap:    broker.KindMap,
	TransformStream: broker.KindStream,
	TransformObject: broker.KindObject,
}

// EncodeFrame renders msg as a SEND frame. Envelope fields go to reserved headers,
// user properties to the remaining ones as their string form.
func EncodeFrame(msg *Message) (Frame, error) {
	content, err := msg.Content()
	if err != nil {
		return Frame{}, fmt.Errorf("encode frame: %w", err)
	}

	headers := make(map[string]string, len(msg.headers)+len(msg.properties)+12)
	for k, v := range msg.headers {
		headers[k] = v
	}
	for k, v := range msg.properties {
		headers[k] = formatProperty(v)
	}

	if msg.messageID != "" {
		headers[HeaderMessageID] = msg.messageID
	}
	if msg.correlationID != "" {
		headers[HeaderCorrelationID] = msg.correlationID
	}
	if msg.replyTo != nil {
		headers[HeaderReplyTo] = msg.replyTo.QualifiedName()
	}
	if msg.destination != nil {
		headers[HeaderDestination] = msg.destination.QualifiedName()
	}
	if msg.msgType != "" {
		headers[HeaderType] = msg.msgType
	}
	if msg.redelivered {
		headers[HeaderRedelivered] = "true"
	}
	if msg.redeliveryCounter > 0 {
		headers[HeaderRedeliveries] = strconv.Itoa(msg.redeliveryCounter)
	}
	headers[HeaderPersistent] = strconv.FormatBool(msg.IsPersistent())
	headers[HeaderExpires] = strconv.FormatInt(msg.expiration, 10)
	headers[HeaderPriority] = strconv.Itoa(msg.priority)
	headers[HeaderTimestamp] = strconv.FormatInt(msg.timestamp, 10)
	headers[HeaderTransform] = kindTransforms[msg.kind]
	if msg.kind == broker.KindBytes {
		headers[HeaderContentLength] = strconv.Itoa(len(content))
	}

	return Frame{Command: CommandSend, Headers: headers, Body: content}, nil
}

// DecodeFrame rebuilds a message from a received frame. Without a transformation header
// a frame with content-length is a bytes message, anything else a text message.
// Properties come back as strings.
func DecodeFrame(p Prefixes, f Frame) (*Message, error) {
	kind, err := frameKind(f.Headers)
	if err != nil {
		return nil, err
	}

	msg := newMessage(kind)
	msg.deliveryMode = broker.NonPersistent
	msg.setContent(f.Body)

	for name, value := range f.Headers {
		if err = msg.decodeHeader(p, name, value); err != nil {
			return nil, fmt.Errorf("%w: header %q: %w", MessageFormatError{}, name, err)
		}
	}

	return msg, nil
}

func frameKind(headers map[string]string) (broker.PayloadKind, error) {
	t, ok := headers[HeaderTransform]
	if !ok {
		if _, ok = headers[HeaderContentLength]; ok {
			return broker.KindBytes, nil
		}
		return broker.KindText, nil
	}

	kind, ok := transformKinds[t]
	if !ok {
		return 0, fmt.Errorf("%w: unknown transformation %q", MessageFormatError{}, t)
	}

	return kind, nil
}

func (m *Message) decodeHeader(p Prefixes, name, value string) error {
	var err error

	switch name {
	case HeaderMessageID:
		m.messageID = value
	case HeaderCorrelationID:
		m.correlationID = value
	case HeaderType:
		m.msgType = value
	case HeaderReplyTo:
		m.replyTo, err = ParseDestination(p, value)
	case HeaderDestination:
		m.destination, err = ParseDestination(p, value)
	case HeaderPersistent:
		if value == "true" {
			m.deliveryMode = broker.Persistent
		}
	case HeaderRedelivered:
		m.redelivered, err = strconv.ParseBool(value)
	case HeaderRedeliveries:
		m.redeliveryCounter, err = strconv.Atoi(value)
	case HeaderExpires:
		m.expiration, err = strconv.ParseInt(value, 10, 64)
	case HeaderTimestamp:
		m.timestamp, err = strconv.ParseInt(value, 10, 64)
	case HeaderPriority:
		m.priority, err = strconv.Atoi(value)
	case HeaderTransform:
	default:
		if IsReservedHeader(name) {
			m.headers[name] = value
			return nil
		}
		m.properties[name] = value
	}

	return err
}

func formatProperty(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
