// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package broker

// PayloadKind discriminates message bodies.
type PayloadKind uint8

const (
	KindNone PayloadKind = iota
	KindText
	KindBytes
	KindMap
	KindStream
	KindObject
)

func (k PayloadKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindMap:
		return "map"
	case KindStream:
		return "stream"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// DestinationKind discriminates destinations.
type DestinationKind uint8

const (
	Queue DestinationKind = iota + 1
	Topic
	TemporaryQueue
	TemporaryTopic
)

// IsTemporary reports whether the kind is scoped to a connection.
func (k DestinationKind) IsTemporary() bool {
	return k == TemporaryQueue || k == TemporaryTopic
}

// IsTopic reports whether the kind has publish/subscribe semantics.
func (k DestinationKind) IsTopic() bool {
	return k == Topic || k == TemporaryTopic
}

func (k DestinationKind) String() string {
	switch k {
	case Queue:
		return "queue"
	case Topic:
		return "topic"
	case TemporaryQueue:
		return "temp-queue"
	case TemporaryTopic:
		return "temp-topic"
	default:
		return "unknown"
	}
}

// DeliveryMode tells the broker whether a message must survive a restart.
type DeliveryMode int

const (
	NonPersistent DeliveryMode = 1
	Persistent    DeliveryMode = 2
)
