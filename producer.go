// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

// CompletionListener is notified about the outcome of an asynchronous send.
type CompletionListener interface {
	OnCompletion(msg *Message)
	OnException(msg *Message, err error)
}

// MessageProducer validates destinations and fills delivery parameters before handing
// messages to its session.
//
// A producer created with a destination is bound to it; one created without accepts
// a destination on every send. Configuration is not meant to be changed concurrently.
type MessageProducer struct {
	session Session
	logger  *zap.Logger

	destination *Destination
	flexible    bool

	deliveryMode     broker.DeliveryMode
	priority         int
	timeToLive       time.Duration
	disableMessageID bool
	disableTimestamp bool

	// isClosed indicates whether the producer has been closed.
	isClosed atomic.Bool
}

// NewProducer returns a producer bound to dest, or a flexible one when dest is nil.
func NewProducer(s Session, dest *Destination, opts ...Option) *MessageProducer {
	o := applyOptions(opts)

	return &MessageProducer{
		session:      s,
		logger:       o.logger,
		destination:  dest,
		flexible:     dest == nil,
		deliveryMode: broker.Persistent,
		priority:     DefaultPriority,
		timeToLive:   DefaultTimeToLive,
	}
}

// Send sends msg to the bound destination with the producer defaults.
func (p *MessageProducer) Send(ctx context.Context, msg broker.Message) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	return p.send(ctx, p.destination, msg, p.deliveryMode, p.priority, p.timeToLive, false)
}

// SendWith sends msg to the bound destination with explicit delivery parameters.
func (p *MessageProducer) SendWith(ctx context.Context, msg broker.Message, mode broker.DeliveryMode, priority int, ttl time.Duration) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	return p.send(ctx, p.destination, msg, mode, priority, ttl, false)
}

// SendTo sends msg to dest with the producer defaults.
// A bound producer only accepts its own destination.
func (p *MessageProducer) SendTo(ctx context.Context, dest broker.Destination, msg broker.Message) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	return p.send(ctx, dest, msg, p.deliveryMode, p.priority, p.timeToLive, true)
}

// SendToWith sends msg to dest with explicit delivery parameters.
func (p *MessageProducer) SendToWith(ctx context.Context, dest broker.Destination, msg broker.Message, mode broker.DeliveryMode, priority int, ttl time.Duration) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	return p.send(ctx, dest, msg, mode, priority, ttl, true)
}

// SendAsync is declared for completeness and always fails.
func (p *MessageProducer) SendAsync(context.Context, broker.Destination, broker.Message, CompletionListener) error {
	return fmt.Errorf("%w: asynchronous send", UnsupportedOperationError{})
}

func (p *MessageProducer) send(ctx context.Context, dest broker.Destination, msg broker.Message, mode broker.DeliveryMode, priority int, ttl time.Duration, checkBinding bool) error {
	if isNilDestination(dest) {
		return fmt.Errorf("%w: nil destination", InvalidDestinationError{})
	}
	if msg == nil {
		return fmt.Errorf("%w: nil message", MessageFormatError{})
	}

	prefixes := p.prefixes()

	target, err := ResolveDestination(prefixes, dest)
	if err != nil {
		return err
	}
	if checkBinding && !p.flexible && !target.Equal(p.destination) {
		return fmt.Errorf("%w: producer is bound to %s, got %s", UnsupportedOperationError{}, p.destination, target)
	}

	out, err := TransformMessage(prefixes, msg)
	if err != nil {
		return err
	}
	p.stamp(out, target, mode, priority, ttl)

	err = p.session.Send(ctx, target, out, SendParams{
		DeliveryMode:     mode,
		Priority:         priority,
		TimeToLive:       ttl,
		DisableMessageID: p.disableMessageID,
	})
	if err != nil {
		return &ProviderError{Op: "send to " + target.String(), Err: err}
	}

	// the sender sees the envelope it was sent with
	if in, ok := msg.(*Message); ok {
		in.messageID = out.messageID
		in.destination = target
		in.deliveryMode = out.deliveryMode
		in.priority = out.priority
		in.expiration = out.expiration
		in.timestamp = out.timestamp
	}

	p.logger.Debug("message sent", zap.String("message_id", out.messageID), zap.Stringer("destination", target))

	return nil
}

func (p *MessageProducer) stamp(m *Message, dest *Destination, mode broker.DeliveryMode, priority int, ttl time.Duration) {
	now := time.Now().UnixMilli()

	m.destination = dest
	m.deliveryMode = mode
	m.priority = priority

	m.expiration = 0
	if ttl > 0 {
		m.expiration = now + ttl.Milliseconds()
	}

	m.timestamp = 0
	if !p.disableTimestamp {
		m.timestamp = now
	}

	m.messageID = ""
	if !p.disableMessageID {
		m.messageID = "ID:" + uuid.NewString()
	}
}

func (p *MessageProducer) prefixes() Prefixes {
	if conn := p.session.Connection(); conn != nil {
		return conn.Prefixes()
	}
	return DefaultPrefixes()
}

func (p *MessageProducer) checkClosed() error {
	if p.isClosed.Load() {
		return fmt.Errorf("%w: the producer is closed", IllegalStateError{})
	}
	return nil
}

// Destination returns the bound destination, nil for a flexible producer without one.
func (p *MessageProducer) Destination() (*Destination, error) {
	if err := p.checkClosed(); err != nil {
		return nil, err
	}
	return p.destination, nil
}

// SetDestination applies the binding rule of SendTo. A flexible producer stores the
// resolved destination; a bound one only accepts the destination it already has.
func (p *MessageProducer) SetDestination(dest broker.Destination) error {
	if err := p.checkClosed(); err != nil {
		return err
	}

	target, err := ResolveDestination(p.prefixes(), dest)
	if err != nil {
		return err
	}

	if !p.flexible {
		if !target.Equal(p.destination) {
			return fmt.Errorf("%w: producer is bound to %s", UnsupportedOperationError{}, p.destination)
		}
		return nil
	}

	p.destination = target

	return nil
}

// DeliveryMode returns the default delivery mode.
func (p *MessageProducer) DeliveryMode() (broker.DeliveryMode, error) {
	if err := p.checkClosed(); err != nil {
		return 0, err
	}
	return p.deliveryMode, nil
}

// SetDeliveryMode sets the default delivery mode.
func (p *MessageProducer) SetDeliveryMode(mode broker.DeliveryMode) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	p.deliveryMode = mode
	return nil
}

// Priority returns the default priority.
func (p *MessageProducer) Priority() (int, error) {
	if err := p.checkClosed(); err != nil {
		return 0, err
	}
	return p.priority, nil
}

// SetPriority sets the default priority.
func (p *MessageProducer) SetPriority(priority int) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	p.priority = priority
	return nil
}

// TimeToLive returns the default time to live; zero means messages never expire.
func (p *MessageProducer) TimeToLive() (time.Duration, error) {
	if err := p.checkClosed(); err != nil {
		return 0, err
	}
	return p.timeToLive, nil
}

// SetTimeToLive sets the default time to live.
func (p *MessageProducer) SetTimeToLive(ttl time.Duration) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	p.timeToLive = ttl
	return nil
}

// DisableMessageID reports whether sends skip message id generation.
func (p *MessageProducer) DisableMessageID() (bool, error) {
	if err := p.checkClosed(); err != nil {
		return false, err
	}
	return p.disableMessageID, nil
}

// SetDisableMessageID toggles message id generation.
func (p *MessageProducer) SetDisableMessageID(v bool) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	p.disableMessageID = v
	return nil
}

// DisableMessageTimestamp reports whether sends skip the timestamp.
func (p *MessageProducer) DisableMessageTimestamp() (bool, error) {
	if err := p.checkClosed(); err != nil {
		return false, err
	}
	return p.disableTimestamp, nil
}

// SetDisableMessageTimestamp toggles timestamping.
func (p *MessageProducer) SetDisableMessageTimestamp(v bool) error {
	if err := p.checkClosed(); err != nil {
		return err
	}
	p.disableTimestamp = v
	return nil
}

// DeliveryDelay is not supported.
func (p *MessageProducer) DeliveryDelay() (time.Duration, error) {
	return 0, fmt.Errorf("%w: delivery delay", UnsupportedOperationError{})
}

// SetDeliveryDelay is not supported.
func (p *MessageProducer) SetDeliveryDelay(time.Duration) error {
	return fmt.Errorf("%w: delivery delay", UnsupportedOperationError{})
}

// Close marks the producer closed and removes it from its session.
func (p *MessageProducer) Close() error {
	if !p.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	p.session.RemoveProducer(p)

	return nil
}
