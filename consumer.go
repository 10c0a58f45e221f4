// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageConsumer pulls messages delivered on one subscription.
type MessageConsumer struct {
	// session owns the subscription.
	session Session
	// req is the subscription as it was registered.
	req ConsumerRequest
	// queue buffers deliveries until they are received.
	queue *messageQueue
	// sub is the registered subscription handle.
	sub Subscription
	// isClosed indicates whether the consumer has been closed.
	isClosed atomic.Bool

	logger *zap.Logger
}

// NewConsumer subscribes to dest and buffers its messages for Receive.
func NewConsumer(s Session, dest *Destination, selector string, opts ...Option) (*MessageConsumer, error) {
	if dest == nil {
		return nil, fmt.Errorf("%w: consumer needs a destination", InvalidDestinationError{})
	}

	o := applyOptions(opts)
	c := newMessageConsumer(s, ConsumerRequest{Destination: dest, Selector: selector}, o.logger)

	if err := c.start(c.onMessage); err != nil {
		return nil, err
	}

	return c, nil
}

func newMessageConsumer(s Session, req ConsumerRequest, logger *zap.Logger) *MessageConsumer {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return &MessageConsumer{
		session: s,
		req:     req,
		queue:   newMessageQueue(),
		logger:  logger,
	}
}

// start registers the subscription with deliver as its callback.
func (c *MessageConsumer) start(deliver DeliveryFunc) error {
	sub, err := c.session.RegisterConsumer(c.req, deliver)
	if err != nil {
		return &ProviderError{Op: "register consumer", Err: err}
	}
	c.sub = sub

	return nil
}

// onMessage is the regular delivery path: the message becomes read-only and is queued.
func (c *MessageConsumer) onMessage(m *Message) {
	if m == nil {
		return
	}
	m.setReadOnly(true)
	c.queue.enqueue(m)
}

// ID returns the subscription identifier.
func (c *MessageConsumer) ID() string {
	return c.req.ID
}

// Destination returns the subscribed destination.
func (c *MessageConsumer) Destination() *Destination {
	return c.req.Destination
}

// MessageSelector returns the selector the subscription was opened with.
func (c *MessageConsumer) MessageSelector() string {
	return c.req.Selector
}

// QueueSize returns the number of messages waiting to be received.
func (c *MessageConsumer) QueueSize() int {
	return c.queue.len()
}

// ReceiveNoWait returns the next buffered message, or nil when none is waiting.
func (c *MessageConsumer) ReceiveNoWait() (*Message, error) {
	if c.isClosed.Load() {
		return nil, fmt.Errorf("%w: the consumer is closed", IllegalStateError{})
	}

	m, _, err := c.queue.tryDequeue()
	if err != nil {
		return nil, fmt.Errorf("%w: the consumer is closed", err)
	}

	return m, nil
}

// Receive blocks until a message is delivered, the consumer closes or ctx ends.
func (c *MessageConsumer) Receive(ctx context.Context) (*Message, error) {
	if c.isClosed.Load() {
		return nil, fmt.Errorf("%w: the consumer is closed", IllegalStateError{})
	}

	m, err := c.queue.waitDequeue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: the consumer is closed", err)
	}

	return m, nil
}

// Close ends the subscription. Calls after the first are no-ops.
func (c *MessageConsumer) Close() error {
	if !c.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	c.queue.close()

	if c.sub == nil {
		return nil
	}
	if err := c.session.CloseConsumer(c.sub); err != nil {
		return &ProviderError{Op: "close consumer", Err: err}
	}

	c.logger.Debug("consumer closed", zap.String("subscription", c.req.ID), zap.Stringer("destination", c.req.Destination))

	return nil
}
