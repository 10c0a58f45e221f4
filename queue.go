// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"sync"
)

// signal is a broadcast notification: every waiter holding the current channel is released
// when the channel is closed, and a fresh one is installed for the next round.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// wait returns the channel closed by the next broadcast.
func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

func (s *signal) broadcast() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// messageQueue is the unbounded pull queue fed by a delivery goroutine.
type messageQueue struct {
	mu       sync.Mutex
	items    []*Message
	closed   bool
	notEmpty *signal
}

func newMessageQueue() *messageQueue {
	return &messageQueue{notEmpty: newSignal()}
}

func (q *messageQueue) enqueue(m *Message) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, m)
	q.mu.Unlock()

	q.notEmpty.broadcast()
}

func (q *messageQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// tryDequeue returns false when the queue is empty; it fails once the queue is closed.
func (q *messageQueue) tryDequeue() (*Message, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, false, IllegalStateError{}
	}
	if len(q.items) == 0 {
		return nil, false, nil
	}

	m := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]

	return m, true, nil
}

// waitDequeue blocks until a message arrives, the queue closes or ctx ends.
func (q *messageQueue) waitDequeue(ctx context.Context) (*Message, error) {
	for {
		wait := q.notEmpty.wait()

		m, ok, err := q.tryDequeue()
		if err != nil || ok {
			return m, err
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *messageQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()

	q.notEmpty.broadcast()
}
