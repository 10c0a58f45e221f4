// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"fmt"
	"strings"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// Prefixes holds the wire prefixes a connection uses to qualify destination names.
type Prefixes struct {
	Queue     string `env:"QUEUE_PREFIX" yaml:"queue"`
	Topic     string `env:"TOPIC_PREFIX" yaml:"topic"`
	TempQueue string `env:"TEMP_QUEUE_PREFIX" yaml:"temp_queue"`
	TempTopic string `env:"TEMP_TOPIC_PREFIX" yaml:"temp_topic"`
}

// DefaultPrefixes returns the prefixes used by STOMP brokers such as Apollo and ActiveMQ.
func DefaultPrefixes() Prefixes {
	return Prefixes{
		Queue:     "/queue/",
		Topic:     "/topic/",
		TempQueue: "/temp-queue/",
		TempTopic: "/temp-topic/",
	}
}

// For returns the prefix configured for kind.
func (p Prefixes) For(kind broker.DestinationKind) string {
	switch kind {
	case broker.Queue:
		return p.Queue
	case broker.Topic:
		return p.Topic
	case broker.TemporaryQueue:
		return p.TempQueue
	case broker.TemporaryTopic:
		return p.TempTopic
	default:
		return ""
	}
}

// Destination is a queue or topic addressed by a prefix-qualified name.
// Its fields never change after construction.
type Destination struct {
	kind   broker.DestinationKind
	prefix string
	name   string
}

// DestinationKey is a comparable identity agreeing with Destination.Equal.
type DestinationKey struct {
	Kind          broker.DestinationKind
	QualifiedName string
}

// NewDestination builds a destination of the given kind.
func NewDestination(kind broker.DestinationKind, prefix, name string) *Destination {
	return &Destination{kind: kind, prefix: prefix, name: name}
}

// NewQueue builds a queue destination.
func NewQueue(prefix, name string) *Destination {
	return NewDestination(broker.Queue, prefix, name)
}

// NewTopic builds a topic destination.
func NewTopic(prefix, name string) *Destination {
	return NewDestination(broker.Topic, prefix, name)
}

// NewTemporaryQueue builds a connection scoped queue destination.
func NewTemporaryQueue(prefix, name string) *Destination {
	return NewDestination(broker.TemporaryQueue, prefix, name)
}

// NewTemporaryTopic builds a connection scoped topic destination.
func NewTemporaryTopic(prefix, name string) *Destination {
	return NewDestination(broker.TemporaryTopic, prefix, name)
}

// ParseDestination classifies a qualified wire name by its prefix.
// Temporary prefixes are checked first, so "/temp-queue/" is not mistaken for a queue
// prefix that happens to be shorter. Unknown names become queues without prefix.
func ParseDestination(p Prefixes, qualified string) (*Destination, error) {
	if qualified == "" {
		return nil, fmt.Errorf("%w: empty destination name", InvalidDestinationError{})
	}

	for _, kind := range []broker.DestinationKind{broker.TemporaryQueue, broker.TemporaryTopic, broker.Queue, broker.Topic} {
		prefix := p.For(kind)
		if prefix != "" && strings.HasPrefix(qualified, prefix) {
			return NewDestination(kind, prefix, qualified[len(prefix):]), nil
		}
	}

	return NewQueue("", qualified), nil
}

// Kind implements broker.Destination.
func (d *Destination) Kind() broker.DestinationKind {
	return d.kind
}

// Name implements broker.Destination and returns the name without prefix.
func (d *Destination) Name() string {
	return d.name
}

// Prefix returns the wire prefix used to qualify the name.
func (d *Destination) Prefix() string {
	return d.prefix
}

// QualifiedName returns the name as it travels on the wire.
func (d *Destination) QualifiedName() string {
	return d.prefix + d.name
}

// IsQueue reports queue semantics, temporary or not.
func (d *Destination) IsQueue() bool {
	return !d.kind.IsTopic()
}

// IsTopic reports topic semantics, temporary or not.
func (d *Destination) IsTopic() bool {
	return d.kind.IsTopic()
}

// IsTemporary reports whether the destination is scoped to its connection.
func (d *Destination) IsTemporary() bool {
	return d.kind.IsTemporary()
}

// Key returns the hashable identity of d.
func (d *Destination) Key() DestinationKey {
	return DestinationKey{Kind: d.kind, QualifiedName: d.QualifiedName()}
}

// Equal reports whether both destinations share kind and qualified name.
func (d *Destination) Equal(other *Destination) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Key() == other.Key()
}

// Copy returns an independent destination with the same fields.
func (d *Destination) Copy() *Destination {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

func (d *Destination) String() string {
	if d == nil {
		return ""
	}
	return d.QualifiedName()
}

// ResolveDestination returns the internal form of dest. Internal destinations are returned as is;
// foreign ones are rebuilt with the prefix configured for their kind.
func ResolveDestination(p Prefixes, dest broker.Destination) (*Destination, error) {
	switch d := dest.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil destination", InvalidDestinationError{})
	case *Destination:
		if d == nil {
			return nil, fmt.Errorf("%w: nil destination", InvalidDestinationError{})
		}
		return d, nil
	}

	switch kind := dest.Kind(); kind {
	case broker.TemporaryQueue, broker.TemporaryTopic, broker.Queue, broker.Topic:
		return NewDestination(kind, p.For(kind), dest.Name()), nil
	default:
		return nil, fmt.Errorf("%w: unrecognized destination kind %d", InvalidDestinationError{}, kind)
	}
}

// TransformDestination is ResolveDestination that lets a nil input through as nil.
// Envelope copy uses it, since reply-to and destination are optional there.
func TransformDestination(p Prefixes, dest broker.Destination) (*Destination, error) {
	if isNilDestination(dest) {
		return nil, nil
	}
	return ResolveDestination(p, dest)
}

func isNilDestination(dest broker.Destination) bool {
	if dest == nil {
		return true
	}
	d, ok := dest.(*Destination)
	return ok && d == nil
}
