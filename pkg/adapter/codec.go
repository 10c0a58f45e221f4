// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rabbitmq/amqp091-go"

	jms "github.com/GwynCerbin/go_jms"
)

func init() {
	mimetype.SetLimit(mimeReadLimit)
}

// propertyHeaders travel as AMQP message properties instead of table entries.
var propertyHeaders = map[string]struct{}{
	jms.HeaderMessageID:     {},
	jms.HeaderCorrelationID: {},
	jms.HeaderReplyTo:       {},
	jms.HeaderType:          {},
	jms.HeaderPriority:      {},
	jms.HeaderTimestamp:     {},
	jms.HeaderPersistent:    {},
	jms.HeaderRedelivered:   {},
	jms.HeaderContentLength: {},
}

// toPublishing maps a stamped message onto an AMQP publishing.
// User properties keep their type in the header table.
func toPublishing(msg *jms.Message, params jms.SendParams, appID string) (amqp091.Publishing, error) {
	frame, err := jms.EncodeFrame(msg)
	if err != nil {
		return amqp091.Publishing{}, err
	}

	table := make(amqp091.Table, len(frame.Headers))
	for k, v := range frame.Headers {
		if _, ok := propertyHeaders[k]; ok {
			continue
		}
		table[k] = v
	}

	names, err := msg.PropertyNames()
	if err != nil {
		return amqp091.Publishing{}, err
	}
	for _, name := range names {
		v, err := msg.Property(name)
		if err != nil {
			return amqp091.Publishing{}, err
		}
		table[name] = tableValue(v)
	}

	pub := amqp091.Publishing{
		Headers:       table,
		DeliveryMode:  amqp091.Transient,
		Priority:      uint8(min(max(msg.Priority(), 0), 9)),
		CorrelationId: msg.CorrelationID(),
		ReplyTo:       frame.Headers[jms.HeaderReplyTo],
		MessageId:     msg.MessageID(),
		Type:          msg.Type(),
		AppId:         appID,
		Body:          frame.Body,
	}
	if msg.IsPersistent() {
		pub.DeliveryMode = amqp091.Persistent
	}
	if len(frame.Body) > 0 {
		pub.ContentType = mimetype.Detect(frame.Body).String()
	}
	if ts := msg.Timestamp(); ts > 0 {
		pub.Timestamp = time.UnixMilli(ts)
	}
	if params.TimeToLive > 0 {
		pub.Expiration = strconv.FormatInt(params.TimeToLive.Milliseconds(), 10)
	}

	return pub, nil
}

// fromDelivery rebuilds the message carried by d. Envelope fields come from the AMQP
// properties; a missing destination header is derived from exchange and routing key.
func fromDelivery(p jms.Prefixes, topicExchange string, d amqp091.Delivery) (*jms.Message, error) {
	headers := make(map[string]string, len(d.Headers)+8)
	typed := make(map[string]any)

	for k, v := range d.Headers {
		if s, ok := v.(string); ok {
			headers[k] = s
			continue
		}
		headers[k] = fmt.Sprint(v)
		typed[k] = v
	}

	setIf := func(k, v string) {
		if v != "" {
			headers[k] = v
		}
	}
	setIf(jms.HeaderMessageID, d.MessageId)
	setIf(jms.HeaderCorrelationID, d.CorrelationId)
	setIf(jms.HeaderReplyTo, d.ReplyTo)
	setIf(jms.HeaderType, d.Type)
	headers[jms.HeaderPriority] = strconv.Itoa(int(d.Priority))
	headers[jms.HeaderPersistent] = strconv.FormatBool(d.DeliveryMode == amqp091.Persistent)
	if !d.Timestamp.IsZero() {
		headers[jms.HeaderTimestamp] = strconv.FormatInt(d.Timestamp.UnixMilli(), 10)
	}
	if d.Redelivered {
		headers[jms.HeaderRedelivered] = "true"
	}
	if _, ok := headers[jms.HeaderDestination]; !ok && d.RoutingKey != "" {
		prefix := p.Queue
		if d.Exchange != "" && d.Exchange == topicExchange {
			prefix = p.Topic
		}
		headers[jms.HeaderDestination] = prefix + d.RoutingKey
	}

	msg, err := jms.DecodeFrame(p, jms.Frame{Command: jms.CommandMessage, Headers: headers, Body: d.Body})
	if err != nil {
		return nil, err
	}

	// values that do not fit a property keep their string form
	for k, v := range typed {
		if jms.IsReservedHeader(k) {
			continue
		}
		_ = msg.SetProperty(k, v)
	}

	return msg, nil
}

// tableValue widens property types the AMQP table encoder does not accept.
func tableValue(v any) any {
	switch t := v.(type) {
	case int:
		return int64(t)
	case uint16:
		return int32(t)
	case uint32:
		return int64(t)
	default:
		return v
	}
}
