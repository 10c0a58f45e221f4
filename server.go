// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Receiver is the pull side a Listener serves from. MessageConsumer implements it.
type Receiver interface {
	Receive(ctx context.Context) (*Message, error)
	Close() error
}

// Listener encapsulates common parameters of a message subscriber.
//   - receiver: the consumer messages are pulled from.
//   - gos: desired number of concurrent goroutines used by an Instance.
//
// Listener itself does not process messages; it acts as a factory that
// creates an Instance where the real work happens.
type Listener struct {
	receiver Receiver
	gos      int
	logger   *zap.Logger
}

// NewListener constructs a Listener with a default parallelism level of 1.
func NewListener(receiver Receiver, opts ...Option) *Listener {
	o := applyOptions(opts)

	return &Listener{
		gos:      1,
		receiver: receiver,
		logger:   o.logger,
	}
}

// SetConcurrency sets the number of goroutines that will be spawned later
// inside an Instance. It validates the input (n >= 1) and clamps the value
// by runtime.GOMAXPROCS(0).
func (l *Listener) SetConcurrency(n int) error {
	if n < 1 {
		return fmt.Errorf("invalid goroutines count: %d", n)
	}

	l.gos = min(n, runtime.GOMAXPROCS(0))

	return nil
}

// Instance is a running listener created from Listener.
//   - workChan: channel through which the dispatcher feeds handler calls to the workers.
//   - wg:       WaitGroup for graceful shutdown synchronization.
//   - router:   destination → handler snapshot taken at Init time.
//   - done:     closed once ListenAndServe has drained its workers.
type Instance struct {
	workChan chan func()
	wg       sync.WaitGroup
	gos      int
	router   Router
	receiver Receiver
	logger   *zap.Logger

	stopping atomic.Bool
	done     chan struct{}
}

// Init takes a Router snapshot and returns a ready-to-run Instance.
// To start with another router, create a new Instance instead of mutating the old one.
func (l *Listener) Init(router Router) *Instance {
	return &Instance{
		workChan: make(chan func(), 1),
		gos:      l.gos,
		router:   maps.Clone(router),
		receiver: l.receiver,
		logger:   l.logger,
		done:     make(chan struct{}),
	}
}

// ListenAndServe starts the worker pool and dispatches received messages by destination
// until ctx ends or Shutdown is called. Receive errors other than those caused by
// shutdown are returned to the caller.
func (l *Instance) ListenAndServe(ctx context.Context) error {
	if len(l.router) == 0 {
		close(l.done)
		return EmptyRouteError{}
	}

	for range l.gos {
		l.wg.Add(1)

		go runner(l.workChan, &l.wg)
	}

	defer func() {
		close(l.workChan)
		l.wg.Wait()
		close(l.done)
	}()

	for {
		msg, err := l.receiver.Receive(ctx)
		if err != nil {
			if l.stopping.Load() || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		key := msg.Destination().String()

		handler, ok := l.router[key]
		if !ok {
			l.logger.Warn("drop message", zap.Error(UnroutedMessageError{}),
				zap.String("destination", key), zap.String("message_id", msg.MessageID()))

			continue
		}

		select {
		case l.workChan <- func() { handler(ctx, msg) }:
		case <-ctx.Done():
			return nil
		}
	}
}

// Shutdown initiates a graceful shutdown. It closes the receiver and waits either for
// the workers to finish or for the context to be canceled/expired.
func (l *Instance) Shutdown(ctx context.Context) error {
	if l.stopping.CompareAndSwap(false, true) {
		if err := l.receiver.Close(); err != nil {
			l.logger.Error("shutdown", zap.Error(fmt.Errorf("%w: %w", ConsumerCloseError{}, err)))
		}
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runner executes tasks from workChan and signals completion via WaitGroup.
func runner(workChan chan func(), wg *sync.WaitGroup) {
	for work := range workChan {
		work()
	}

	wg.Done()
}
