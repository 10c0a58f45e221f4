// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	jms "github.com/GwynCerbin/go_jms"
	"github.com/GwynCerbin/go_jms/pkg/selector"
)

// Session runs producers, consumers and browsers over RabbitMQ.
// It implements jms.Session and acts as their jms.Connection.
//
// Queues map onto the default exchange with the queue name as routing key; topics map
// onto SessionConfig.TopicExchange with the topic name as routing key. Selectors are
// applied on the client.
type Session struct {
	con    *Con
	cfg    SessionConfig
	logger *zap.Logger

	// pubMu serializes sends and transaction control on pubChan.
	pubMu sync.Mutex
	// pubChan is the channel used for publishing, in tx mode when transacted.
	pubChan *amqp091.Channel
	// notifyChan receives connection-close notifications for reconnection.
	notifyChan chan *amqp091.Error

	// runMu guards running, which is closed while the session is started.
	runMu   sync.Mutex
	running chan struct{}
	started atomic.Bool

	// isClosed indicates whether the session has been closed.
	isClosed atomic.Bool

	mu         sync.Mutex
	subs       map[string]*subscription
	producers  map[*jms.MessageProducer]struct{}
	onFailures func(error)
}

// subscription is one consumer or browse running in its own goroutine and channel.
type subscription struct {
	req      jms.ConsumerRequest
	selector *selector.Selector
	deliver  jms.DeliveryFunc

	ch     *amqp091.Channel
	notify chan *amqp091.Error
	queue  string

	stop chan struct{}
	done chan struct{}
	jobs sync.WaitGroup
}

// ID implements jms.Subscription.
func (s *subscription) ID() string {
	return s.req.ID
}

func newSession(c *Con, cfg SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rabbitChan, err := c.channel()
	if err != nil {
		return nil, fmt.Errorf("create session channel: %w", err)
	}

	if err = setupPublisher(rabbitChan, cfg); err != nil {
		_ = rabbitChan.Close()
		return nil, err
	}

	running := make(chan struct{})
	close(running)

	s := &Session{
		con:        c,
		cfg:        cfg,
		logger:     c.logger,
		pubChan:    rabbitChan,
		notifyChan: c.createNotifyChan(),
		running:    running,
		subs:       make(map[string]*subscription),
		producers:  make(map[*jms.MessageProducer]struct{}),
	}
	s.started.Store(true)

	return s, nil
}

// Send implements jms.Session. It handles reconnection transparently.
func (s *Session) Send(ctx context.Context, dest *jms.Destination, msg *jms.Message, params jms.SendParams) error {
	if s.isClosed.Load() {
		return SessionClosedError{}
	}

	pub, err := toPublishing(msg, params, s.cfg.AppId)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	exchange, key := s.route(dest)

	s.con.cons.Add(1)
	defer s.con.cons.Done()

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	for !s.isClosed.Load() {
		select {
		case <-s.con.stop:
			return ConnClosedError{}
		case val, ok := <-s.notifyChan:
			if !ok {
				return ConnClosedError{}
			}
			if err := s.reconnectInit(val); err != nil {
				s.logger.Warn("reconnect init", zap.Error(err))
			}
		default:
			err := s.publish(ctx, exchange, key, pub)
			if err == nil {
				return nil
			}
			if !errors.Is(err, amqp091.ErrClosed) {
				return fmt.Errorf("publish: %w", err)
			}
			if err = s.awaitPublisher(ctx); err != nil {
				return err
			}
		}
	}

	return SessionClosedError{}
}

// awaitPublisher replaces a closed publishing channel. When the connection itself is gone
// it waits for the reconnection loop.
func (s *Session) awaitPublisher(ctx context.Context) error {
	if err := s.reopenPublisher(); err == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.con.stop:
		return ConnClosedError{}
	case val, ok := <-s.notifyChan:
		if !ok {
			return ConnClosedError{}
		}
		return s.reconnectInit(val)
	}
}

// reconnectInit handles AMQP errors by re-establishing the publishing channel.
func (s *Session) reconnectInit(amqpErr *amqp091.Error) error {
	s.con.reconnect(amqpErr)
	s.notifyChan = s.con.createNotifyChan()

	return s.reopenPublisher()
}

func (s *Session) reopenPublisher() error {
	rabbitChan, err := s.con.channel()
	if err != nil {
		return fmt.Errorf("create publisher channel: %w", err)
	}

	if err = setupPublisher(rabbitChan, s.cfg); err != nil {
		return err
	}

	s.pubChan = rabbitChan

	return nil
}

// route returns the exchange and routing key dest is published to.
func (s *Session) route(dest *jms.Destination) (exchange, key string) {
	if dest.IsTopic() {
		return s.cfg.TopicExchange, dest.Name()
	}
	return "", dest.Name()
}

// RegisterConsumer implements jms.Session. Browse requests scan the queue with basic.get
// and requeue everything once the scan is over.
func (s *Session) RegisterConsumer(req jms.ConsumerRequest, deliver jms.DeliveryFunc) (jms.Subscription, error) {
	if s.isClosed.Load() {
		return nil, SessionClosedError{}
	}
	if req.Destination == nil {
		return nil, fmt.Errorf("%w: consumer needs a destination", jms.InvalidDestinationError{})
	}

	sel, err := selector.Compile(req.Selector)
	if err != nil {
		return nil, err
	}

	ch, err := s.con.channel()
	if err != nil {
		return nil, fmt.Errorf("create consumer channel: %w", err)
	}

	sub := &subscription{
		req:      req,
		selector: sel,
		deliver:  deliver,
		ch:       ch,
		notify:   s.con.createNotifyChan(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[req.ID] = sub
	s.mu.Unlock()

	s.con.cons.Add(1)

	if req.Browser {
		sub.queue = req.Destination.Name()
		go s.browse(sub)

		return sub, nil
	}

	deliveries, err := s.consume(sub)
	if err != nil {
		s.mu.Lock()
		delete(s.subs, req.ID)
		s.mu.Unlock()
		s.con.cons.Done()

		if cerr := ch.Close(); cerr != nil {
			s.logger.Debug("close channel", zap.Error(cerr))
		}

		return nil, err
	}

	go s.serve(sub, deliveries)

	return sub, nil
}

// consume starts basic.consume on the subscription channel. A topic gets its own
// exclusive queue bound to the topic exchange.
func (s *Session) consume(sub *subscription) (<-chan amqp091.Delivery, error) {
	if s.cfg.Prefetch > 0 {
		if err := sub.ch.Qos(s.cfg.Prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("set prefetch: %w", err)
		}
	}

	dest := sub.req.Destination
	sub.queue = dest.Name()

	if dest.IsTopic() {
		q, err := sub.ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return nil, fmt.Errorf("declare subscription queue: %w", err)
		}
		if err = sub.ch.QueueBind(q.Name, dest.Name(), s.cfg.TopicExchange, false, nil); err != nil {
			return nil, fmt.Errorf("bind subscription queue: %w", err)
		}
		sub.queue = q.Name
	}

	msgCh, err := sub.ch.Consume(sub.queue, sub.req.ID, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("create consumer msg channel: %w", err)
	}

	return msgCh, nil
}

// serve feeds deliveries to the subscription until it is closed.
func (s *Session) serve(sub *subscription, deliveries <-chan amqp091.Delivery) {
	defer func() {
		sub.jobs.Wait()
		close(sub.done)
		s.con.cons.Done()
	}()

	for {
		select {
		case <-sub.stop:
			return
		case <-s.con.stop:
			return
		case val, ok := <-sub.notify:
			if !ok {
				sub.notify = nil
				continue
			}
			next, err := s.resubscribe(sub, val)
			if err != nil {
				s.OnException(&jms.ProviderError{Op: "resubscribe " + sub.req.Destination.String(), Err: err})
				return
			}
			deliveries = next
		case d, ok := <-deliveries:
			if !ok {
				// the channel went away; a connection loss arrives on notify
				deliveries = nil
				continue
			}
			s.dispatch(sub, newDelivery(d, &sub.jobs))
		}
	}
}

// resubscribe waits for the connection to come back and consumes again on a fresh channel.
func (s *Session) resubscribe(sub *subscription, amqpErr *amqp091.Error) (<-chan amqp091.Delivery, error) {
	s.con.reconnect(amqpErr)
	sub.notify = s.con.createNotifyChan()

	rabbitChan, err := s.con.channel()
	if err != nil {
		return nil, fmt.Errorf("create consumer channel: %w", err)
	}
	sub.ch = rabbitChan

	return s.consume(sub)
}

func (s *Session) dispatch(sub *subscription, d *delivery) {
	msg, err := fromDelivery(s.cfg.Prefixes, s.cfg.TopicExchange, d.Delivery)
	if err != nil {
		s.OnException(&jms.ProviderError{Op: "decode delivery", Err: err})
		if err = d.reject(); err != nil {
			s.logger.Warn("reject delivery", zap.Error(err))
		}
		return
	}

	ok, err := sub.selector.Matches(msg)
	if err != nil || !ok {
		if err != nil {
			s.logger.Debug("selector", zap.Error(err))
		}
		// a topic subscription queue is private, so nothing else wants the message
		settle := d.nack
		if sub.req.Destination.IsTopic() {
			settle = d.ack
		}
		if err = settle(); err != nil {
			s.logger.Warn("settle filtered delivery", zap.Error(err))
		}
		return
	}

	if !s.waitStarted(sub.stop) {
		if err = d.nack(); err != nil {
			s.logger.Warn("requeue delivery", zap.Error(err))
		}
		return
	}

	sub.deliver(msg)

	if err = d.ack(); err != nil {
		s.logger.Warn("ack delivery", zap.Error(err))
	}
}

// browse scans the queue with basic.get, then requeues every fetched message and
// delivers the end of browse marker.
func (s *Session) browse(sub *subscription) {
	defer func() {
		close(sub.done)
		s.con.cons.Done()
	}()

	var last uint64

scan:
	for {
		select {
		case <-sub.stop:
			return
		case <-s.con.stop:
			return
		default:
		}

		d, ok, err := sub.ch.Get(sub.queue, false)
		if err != nil {
			s.OnException(&jms.ProviderError{Op: "browse " + sub.req.Destination.String(), Err: err})
			break scan
		}
		if !ok {
			break scan
		}
		last = d.DeliveryTag

		msg, err := fromDelivery(s.cfg.Prefixes, s.cfg.TopicExchange, d)
		if err != nil {
			s.OnException(&jms.ProviderError{Op: "decode delivery", Err: err})
			continue
		}
		if match, err := sub.selector.Matches(msg); err != nil || !match {
			continue
		}

		sub.deliver(msg)
	}

	if last != 0 {
		if err := sub.ch.Nack(last, true, true); err != nil {
			s.logger.Warn("requeue browsed messages", zap.Error(err))
		}
	}

	end := jms.NewMessage()
	end.SetHeader(jms.HeaderBrowser, jms.BrowserEnd)
	sub.deliver(end)
}

// CloseConsumer implements jms.Session.
func (s *Session) CloseConsumer(sub jms.Subscription) error {
	s.mu.Lock()
	running, ok := s.subs[sub.ID()]
	delete(s.subs, sub.ID())
	s.mu.Unlock()

	if !ok {
		return UnknownSubscriptionError{}
	}

	close(running.stop)
	<-running.done

	if !running.req.Browser {
		if err := running.ch.Cancel(running.req.ID, false); err != nil && !errors.Is(err, amqp091.ErrClosed) {
			s.logger.Debug("cancel consumer", zap.Error(err))
		}
	}

	if err := running.ch.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
		return fmt.Errorf("close consumer channel: %w", err)
	}

	return nil
}

// Start resumes message delivery.
func (s *Session) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.started.CompareAndSwap(false, true) {
		close(s.running)
	}
}

// Stop pauses message delivery. Browses in progress end at their next liveness check.
func (s *Session) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.started.CompareAndSwap(true, false) {
		s.running = make(chan struct{})
	}
}

// waitStarted blocks while the session is stopped. It returns false when stop closes first.
func (s *Session) waitStarted(stop <-chan struct{}) bool {
	s.runMu.Lock()
	running := s.running
	s.runMu.Unlock()

	select {
	case <-running:
		return true
	case <-stop:
		return false
	case <-s.con.stop:
		return false
	}
}

// IsStarted implements jms.Session.
func (s *Session) IsStarted() bool {
	return s.started.Load()
}

// Transacted implements jms.Session.
func (s *Session) Transacted() bool {
	return s.cfg.Transacted
}

// Commit implements jms.Session.
func (s *Session) Commit() error {
	if !s.cfg.Transacted {
		return fmt.Errorf("%w: session is not transacted", jms.IllegalStateError{})
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if err := s.pubChan.TxCommit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Rollback discards the sends of the current transaction.
func (s *Session) Rollback() error {
	if !s.cfg.Transacted {
		return fmt.Errorf("%w: session is not transacted", jms.IllegalStateError{})
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if err := s.pubChan.TxRollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

// CreateTemporaryQueue declares a server named, exclusive queue living as long as the connection.
func (s *Session) CreateTemporaryQueue() (*jms.Destination, error) {
	var name string

	err := s.con.withChannel(func(ch *amqp091.Channel) error {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare temporary queue: %w", err)
		}
		name = q.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	return jms.NewTemporaryQueue(s.cfg.Prefixes.TempQueue, name), nil
}

// CreateProducer returns a producer tracked by the session; nil dest makes it flexible.
func (s *Session) CreateProducer(dest *jms.Destination) (*jms.MessageProducer, error) {
	if s.isClosed.Load() {
		return nil, SessionClosedError{}
	}

	p := jms.NewProducer(s, dest, jms.WithLogger(s.logger))

	s.mu.Lock()
	s.producers[p] = struct{}{}
	s.mu.Unlock()

	return p, nil
}

// CreateConsumer subscribes to dest.
func (s *Session) CreateConsumer(dest *jms.Destination, messageSelector string) (*jms.MessageConsumer, error) {
	if s.isClosed.Load() {
		return nil, SessionClosedError{}
	}
	return jms.NewConsumer(s, dest, messageSelector, jms.WithLogger(s.logger))
}

// CreateBrowser returns a browser over queue.
func (s *Session) CreateBrowser(queue *jms.Destination, messageSelector string, opts ...jms.Option) (*jms.QueueBrowser, error) {
	if s.isClosed.Load() {
		return nil, SessionClosedError{}
	}
	return jms.NewQueueBrowser(s, queue, messageSelector, append([]jms.Option{jms.WithLogger(s.logger)}, opts...)...)
}

// RemoveProducer implements jms.Session.
func (s *Session) RemoveProducer(p *jms.MessageProducer) {
	s.mu.Lock()
	delete(s.producers, p)
	s.mu.Unlock()
}

// Connection implements jms.Session.
func (s *Session) Connection() jms.Connection {
	return s
}

// SetExceptionListener installs f as the receiver of asynchronous failures.
func (s *Session) SetExceptionListener(f func(error)) {
	s.mu.Lock()
	s.onFailures = f
	s.mu.Unlock()
}

// OnException implements jms.Connection.
func (s *Session) OnException(err error) {
	s.logger.Error("session failure", zap.Error(err))

	s.mu.Lock()
	f := s.onFailures
	s.mu.Unlock()

	if f != nil {
		f(err)
	}
}

// Prefixes implements jms.Connection.
func (s *Session) Prefixes() jms.Prefixes {
	return s.cfg.Prefixes
}

// Close closes every producer and subscription of the session and its channel.
func (s *Session) Close() error {
	if !s.isClosed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	producers := make([]*jms.MessageProducer, 0, len(s.producers))
	for p := range s.producers {
		producers = append(producers, p)
	}
	subs := make([]*subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, p := range producers {
		_ = p.Close()
	}

	var errs []error
	for _, sub := range subs {
		if err := s.CloseConsumer(sub); err != nil && !errors.Is(err, UnknownSubscriptionError{}) {
			errs = append(errs, err)
		}
	}

	s.pubMu.Lock()
	if err := s.pubChan.Close(); err != nil && !errors.Is(err, amqp091.ErrClosed) {
		errs = append(errs, fmt.Errorf("close session channel: %w", err))
	}
	s.pubMu.Unlock()

	return errors.Join(errs...)
}
