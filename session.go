// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"time"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// SendParams carries the delivery parameters of one send.
type SendParams struct {
	DeliveryMode     broker.DeliveryMode
	Priority         int
	TimeToLive       time.Duration
	DisableMessageID bool
}

// ConsumerRequest describes a subscription to open.
type ConsumerRequest struct {
	// ID identifies the subscription on the wire.
	ID string
	// Destination is the queue or topic to subscribe to.
	Destination *Destination
	// Selector filters deliveries; empty matches every message.
	Selector string
	// Browser asks for a non-destructive scan ending with the browse sentinel.
	Browser bool
}

// DeliveryFunc receives delivered messages. A nil message marks the end of the stream.
// It is called from a delivery goroutine.
type DeliveryFunc func(*Message)

// Subscription is the handle of a registered consumer.
type Subscription interface {
	// ID returns the subscription identifier.
	ID() string
}

// Connection is the part of the owning connection this core talks to.
type Connection interface {
	// OnException receives asynchronous failures.
	OnException(err error)

	// Prefixes returns the wire prefixes used to qualify destination names.
	Prefixes() Prefixes
}

// Session is the transport collaborator producers, consumers and browsers run on.
// Implementations live outside this package, see pkg/adapter and pkg/redistream.
type Session interface {
	// Send hands a fully stamped message to the transport.
	Send(ctx context.Context, dest *Destination, msg *Message, params SendParams) error

	// RegisterConsumer opens a subscription and starts calling deliver.
	RegisterConsumer(req ConsumerRequest, deliver DeliveryFunc) (Subscription, error)

	// CloseConsumer ends a subscription opened with RegisterConsumer.
	CloseConsumer(sub Subscription) error

	// IsStarted reports whether message delivery is running.
	IsStarted() bool

	// Transacted reports whether sends and acknowledgements are grouped in transactions.
	Transacted() bool

	// Commit commits the current transaction.
	Commit() error

	// RemoveProducer forgets a closed producer.
	RemoveProducer(p *MessageProducer)

	// Connection returns the owning connection.
	Connection() Connection
}
