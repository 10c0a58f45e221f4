// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import "time"

// Reserved wire headers. Names and values must match the broker convention.
const (
	HeaderBrowser       = "browser"
	HeaderMessageID     = "message-id"
	HeaderCorrelationID = "correlation-id"
	HeaderReplyTo       = "reply-to"
	HeaderDestination   = "destination"
	HeaderPersistent    = "persistent"
	HeaderRedelivered   = "redelivered"
	HeaderType          = "type"
	HeaderExpires       = "expires"
	HeaderPriority      = "priority"
	HeaderTimestamp     = "timestamp"
	HeaderRedeliveries  = "redeliveries"
	HeaderTransform     = "transformation"
	HeaderSubscription  = "subscription"
	HeaderContentLength = "content-length"
	HeaderContentType   = "content-type"
	HeaderAck           = "ack"

	// BrowserEnd is the value of HeaderBrowser on the end-of-browse sentinel.
	BrowserEnd = "end"
)

// Transformation header values, one per payload kind.
const (
	TransformPlain  = "jms/message"
	TransformText   = "jms/text-message"
	TransformBytes  = "jms/bytes-message"
	TransformMap    = "jms/map-message"
	TransformStream = "jms/stream-message"
	TransformObject = "jms/object-message"
)

// Producer defaults.
const (
	DefaultPriority   = 4
	DefaultTimeToLive = 0
)

// DefaultWaitQuantum bounds a single browser wait before liveness is checked again.
const DefaultWaitQuantum = 2 * time.Second

var reservedHeaders = map[string]struct{}{
	HeaderBrowser:       {},
	HeaderMessageID:     {},
	HeaderCorrelationID: {},
	HeaderReplyTo:       {},
	HeaderDestination:   {},
	HeaderPersistent:    {},
	HeaderRedelivered:   {},
	HeaderType:          {},
	HeaderExpires:       {},
	HeaderPriority:      {},
	HeaderTimestamp:     {},
	HeaderRedeliveries:  {},
	HeaderTransform:     {},
	HeaderSubscription:  {},
	HeaderContentLength: {},
	HeaderContentType:   {},
	HeaderAck:           {},
}

// IsReservedHeader reports whether name is a protocol header rather than a user property.
func IsReservedHeader(name string) bool {
	_, ok := reservedHeaders[name]
	return ok
}
