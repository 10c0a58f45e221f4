// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BrowserState is the lifecycle stage of a QueueBrowser.
type BrowserState uint8

const (
	// BrowserIdle means no subscription is open.
	BrowserIdle BrowserState = iota
	// BrowserScanning means the subscription is open and the end of the scan was not seen.
	BrowserScanning
	// BrowserDone means the scan ended or the session stopped.
	BrowserDone
	// BrowserClosed is terminal.
	BrowserClosed
)

func (s BrowserState) String() string {
	switch s {
	case BrowserIdle:
		return "idle"
	case BrowserScanning:
		return "scanning"
	case BrowserDone:
		return "done"
	case BrowserClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Enumeration is the pull view over a browse.
type Enumeration interface {
	// HasMoreElements reports whether NextElement will return a message.
	HasMoreElements() bool

	// NextElement returns the next message, or nil when the scan is over.
	NextElement() *Message
}

// QueueBrowser scans the messages of a queue without consuming them.
//
// The scan ends when the broker delivers the end of browse marker, or when the session
// stops. Iteration never blocks longer than one wait quantum before checking both again.
type QueueBrowser struct {
	session  Session
	queue    *Destination
	selector string

	logger      *zap.Logger
	waitQuantum time.Duration
	endHeader   string
	endToken    string

	mu       sync.Mutex
	consumer *MessageConsumer
	state    BrowserState

	// browseDone is set by the delivery goroutine once the scan is complete.
	browseDone atomic.Bool
	isClosed   atomic.Bool
	// available is broadcast on every delivery, sentinel included.
	available *signal
}

// NewQueueBrowser returns an idle browser; the subscription is opened by Enumeration.
func NewQueueBrowser(s Session, queue *Destination, selector string, opts ...Option) (*QueueBrowser, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: browser needs a queue", InvalidDestinationError{})
	}
	if queue.IsTopic() {
		return nil, fmt.Errorf("%w: cannot browse topic %s", InvalidDestinationError{}, queue)
	}

	o := applyOptions(opts)

	return &QueueBrowser{
		session:     s,
		queue:       queue,
		selector:    selector,
		logger:      o.logger,
		waitQuantum: o.waitQuantum,
		endHeader:   o.browserHeader,
		endToken:    o.browserEnd,
		available:   newSignal(),
	}, nil
}

// Queue returns the browsed queue.
func (b *QueueBrowser) Queue() (*Destination, error) {
	if b.isClosed.Load() {
		return nil, fmt.Errorf("%w: the browser is closed", IllegalStateError{})
	}
	return b.queue, nil
}

// MessageSelector returns the selector the browser filters with.
func (b *QueueBrowser) MessageSelector() (string, error) {
	if b.isClosed.Load() {
		return "", fmt.Errorf("%w: the browser is closed", IllegalStateError{})
	}
	return b.selector, nil
}

// State returns the current lifecycle stage.
func (b *QueueBrowser) State() BrowserState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BrowserScanning && b.browseDone.Load() {
		return BrowserDone
	}
	return b.state
}

// Enumeration opens the subscription if none is open and returns the browser's pull view.
func (b *QueueBrowser) Enumeration() (Enumeration, error) {
	if b.isClosed.Load() {
		return nil, fmt.Errorf("%w: the browser is closed", IllegalStateError{})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consumer == nil {
		c, err := b.createConsumer()
		if err != nil {
			return nil, err
		}
		b.consumer = c
		b.state = BrowserScanning
	}

	return b, nil
}

func (b *QueueBrowser) createConsumer() (*MessageConsumer, error) {
	b.browseDone.Store(false)

	c := newMessageConsumer(b.session, ConsumerRequest{
		ID:          uuid.NewString(),
		Destination: b.queue,
		Selector:    b.selector,
		Browser:     true,
	}, b.logger)

	if err := c.start(b.deliver(c)); err != nil {
		return nil, err
	}

	b.logger.Debug("browse started", zap.String("subscription", c.ID()), zap.Stringer("queue", b.queue))

	return c, nil
}

// deliver returns the delivery callback of consumer c.
func (b *QueueBrowser) deliver(c *MessageConsumer) DeliveryFunc {
	return func(m *Message) {
		if m == nil || m.Header(b.endHeader) == b.endToken {
			b.browseDone.Store(true)
		} else {
			c.onMessage(m)
		}
		b.available.broadcast()
	}
}

func (b *QueueBrowser) currentConsumer() *MessageConsumer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.consumer
}

// HasMoreElements reports whether a message is waiting. It blocks while the scan is running
// and nothing has arrived, one wait quantum at a time.
func (b *QueueBrowser) HasMoreElements() bool {
	for {
		wait := b.available.wait()

		c := b.currentConsumer()
		if c == nil {
			return false
		}
		if c.QueueSize() > 0 {
			return true
		}
		if b.finished() {
			b.teardown()
			return false
		}

		b.await(wait)
	}
}

// NextElement returns the next browsed message, or nil once the scan is over.
// Failures are reported to the connection instead of the caller.
func (b *QueueBrowser) NextElement() *Message {
	for {
		wait := b.available.wait()

		c := b.currentConsumer()
		if c == nil {
			return nil
		}

		m, err := c.ReceiveNoWait()
		if err != nil {
			// the consumer was torn down under us
			if b.isClosed.Load() || b.currentConsumer() != c {
				return nil
			}
			b.reportException(&ProviderError{Op: "browse " + b.queue.String(), Err: err})
			return nil
		}
		if m != nil {
			return m
		}
		if b.finished() {
			b.teardown()
			return nil
		}

		b.await(wait)
	}
}

// Messages returns the browse as a sequence. It opens the subscription on first use
// and yields nothing when the browser is closed.
func (b *QueueBrowser) Messages() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		if _, err := b.Enumeration(); err != nil {
			return
		}
		for {
			m := b.NextElement()
			if m == nil || !yield(m) {
				return
			}
		}
	}
}

// Close tears the subscription down and wakes every blocked iterator.
// It is safe to call more than once and from any goroutine.
func (b *QueueBrowser) Close() error {
	b.isClosed.Store(true)

	err := b.destroyConsumer()

	b.mu.Lock()
	b.state = BrowserClosed
	b.mu.Unlock()

	b.available.broadcast()

	return err
}

func (b *QueueBrowser) String() string {
	return fmt.Sprintf("QueueBrowser{queue: %s, selector: %q, state: %s}", b.queue, b.selector, b.State())
}

// finished reports whether the scan cannot produce more messages.
func (b *QueueBrowser) finished() bool {
	return b.browseDone.Load() || !b.session.IsStarted()
}

func (b *QueueBrowser) await(wait <-chan struct{}) {
	timer := time.NewTimer(b.waitQuantum)
	defer timer.Stop()

	select {
	case <-wait:
	case <-timer.C:
	}
}

func (b *QueueBrowser) teardown() {
	if err := b.destroyConsumer(); err != nil {
		b.logger.Warn("browse teardown", zap.Stringer("queue", b.queue), zap.Error(err))
	}
}

// destroyConsumer closes the open subscription, committing first on a transacted session.
// Only the caller that detaches the consumer does the work.
func (b *QueueBrowser) destroyConsumer() error {
	b.mu.Lock()
	c := b.consumer
	b.consumer = nil
	if c != nil && b.state == BrowserScanning {
		b.state = BrowserDone
	}
	b.mu.Unlock()

	if c == nil {
		return nil
	}

	var errs []error
	if b.session.Transacted() {
		if err := b.session.Commit(); err != nil {
			errs = append(errs, &ProviderError{Op: "commit", Err: err})
		}
	}
	if err := c.Close(); err != nil {
		errs = append(errs, err)
	}

	b.available.broadcast()

	b.logger.Debug("browse finished", zap.String("subscription", c.ID()), zap.Stringer("queue", b.queue))

	return errors.Join(errs...)
}

func (b *QueueBrowser) reportException(err error) {
	if conn := b.session.Connection(); conn != nil {
		conn.OnException(err)
		return
	}
	b.logger.Error("browse", zap.Error(err))
}
