// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package redistream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	jms "github.com/GwynCerbin/go_jms"
	"github.com/GwynCerbin/go_jms/pkg/selector"
)

// retryDelay is the pause after a failed XREAD before polling again.
const retryDelay = 200 * time.Millisecond

// Session runs producers, consumers and browsers over Redis Streams, one stream per
// destination. It implements jms.Session and acts as their jms.Connection.
//
// Entries are never deleted by consumers: every consumer sees every entry appended after
// it subscribed, so queues and topics behave alike. Sends are not transacted.
type Session struct {
	client redis.UniversalClient
	owned  bool
	cfg    Config
	logger *zap.Logger

	runMu   sync.Mutex
	running chan struct{}
	started atomic.Bool

	isClosed atomic.Bool
	wg       sync.WaitGroup

	mu          sync.Mutex
	subs        map[string]*subscription
	producers   map[*jms.MessageProducer]struct{}
	temporaries []string
	onFailures  func(error)
}

type subscription struct {
	req      jms.ConsumerRequest
	selector *selector.Selector
	deliver  jms.DeliveryFunc
	key      string

	cancel context.CancelFunc
	done   chan struct{}
}

// ID implements jms.Subscription.
func (s *subscription) ID() string {
	return s.req.ID
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New dials Redis and returns a session owning the client.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}

	s := newSession(client, cfg, opts)
	s.owned = true

	return s, nil
}

// NewWithClient returns a session over an existing client. Close leaves the client open.
func NewWithClient(client redis.UniversalClient, cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newSession(client, cfg, opts), nil
}

func newSession(client redis.UniversalClient, cfg Config, opts []Option) *Session {
	running := make(chan struct{})
	close(running)

	s := &Session{
		client:    client,
		cfg:       cfg,
		logger:    zap.NewNop(),
		running:   running,
		subs:      make(map[string]*subscription),
		producers: make(map[*jms.MessageProducer]struct{}),
	}
	s.started.Store(true)

	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}

	return s
}

// StreamKey returns the stream holding dest.
func (s *Session) StreamKey(dest *jms.Destination) string {
	return s.cfg.Namespace + ":" + dest.QualifiedName()
}

// Len returns the number of entries stored for dest.
func (s *Session) Len(ctx context.Context, dest *jms.Destination) (int64, error) {
	return s.client.XLen(ctx, s.StreamKey(dest)).Result()
}

// Send implements jms.Session.
func (s *Session) Send(ctx context.Context, dest *jms.Destination, msg *jms.Message, _ jms.SendParams) error {
	if s.isClosed.Load() {
		return fmt.Errorf("%w: session is closed", jms.IllegalStateError{})
	}

	vals, err := entryValues(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.StreamKey(dest),
		ID:     "*",
		Values: vals,
	}
	if s.cfg.MaxLenApprox > 0 {
		args.MaxLen = s.cfg.MaxLenApprox
		args.Approx = true
	}

	if err = s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}

// RegisterConsumer implements jms.Session. Consumers start after the last entry present
// at registration; browsers scan the whole stream.
func (s *Session) RegisterConsumer(req jms.ConsumerRequest, deliver jms.DeliveryFunc) (jms.Subscription, error) {
	if s.isClosed.Load() {
		return nil, fmt.Errorf("%w: session is closed", jms.IllegalStateError{})
	}
	if req.Destination == nil {
		return nil, fmt.Errorf("%w: consumer needs a destination", jms.InvalidDestinationError{})
	}

	sel, err := selector.Compile(req.Selector)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		req:      req,
		selector: sel,
		deliver:  deliver,
		key:      s.StreamKey(req.Destination),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	var last string
	if !req.Browser {
		if last, err = s.lastID(ctx, sub.key); err != nil {
			cancel()
			return nil, err
		}
	}

	s.mu.Lock()
	s.subs[req.ID] = sub
	s.mu.Unlock()

	s.wg.Add(1)
	if req.Browser {
		go s.browse(ctx, sub)
	} else {
		go s.consume(ctx, sub, last)
	}

	return sub, nil
}

// lastID returns the id of the newest entry of key, "0-0" for an empty stream.
func (s *Session) lastID(ctx context.Context, key string) (string, error) {
	res, err := s.client.XRevRangeN(ctx, key, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("xrevrange: %w", err)
	}
	if len(res) == 0 {
		return "0-0", nil
	}
	return res[0].ID, nil
}

// browse pages through the stream with XRANGE and ends with the end of browse marker.
func (s *Session) browse(ctx context.Context, sub *subscription) {
	defer func() {
		close(sub.done)
		s.wg.Done()
	}()

	start := "-"
	for {
		page, err := s.client.XRangeN(ctx, sub.key, start, "+", int64(s.cfg.BatchSize)).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.OnException(&jms.ProviderError{Op: "browse " + sub.req.Destination.String(), Err: err})
			break
		}

		for _, x := range page {
			if ctx.Err() != nil {
				return
			}
			if msg := s.accept(sub, x); msg != nil {
				sub.deliver(msg)
			}
		}

		if len(page) < s.cfg.BatchSize {
			break
		}
		if start, err = nextID(page[len(page)-1].ID); err != nil {
			s.OnException(&jms.ProviderError{Op: "browse " + sub.req.Destination.String(), Err: err})
			break
		}
	}

	end := jms.NewMessage()
	end.SetHeader(jms.HeaderBrowser, jms.BrowserEnd)
	sub.deliver(end)
}

// consume polls the stream with XREAD BLOCK until the subscription is closed.
func (s *Session) consume(ctx context.Context, sub *subscription, last string) {
	defer func() {
		close(sub.done)
		s.wg.Done()
	}()

	args := &redis.XReadArgs{
		Count: int64(s.cfg.BatchSize),
		Block: s.cfg.Block,
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		args.Streams = []string{sub.key, last}

		res, err := s.client.XRead(ctx, args).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				s.logger.Warn("xread", zap.String("stream", sub.key), zap.Error(err))
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					return
				}
			}
			continue
		}

		for _, str := range res {
			for _, x := range str.Messages {
				last = x.ID

				msg := s.accept(sub, x)
				if msg == nil {
					continue
				}
				if !s.waitStarted(ctx) {
					return
				}
				sub.deliver(msg)
			}
		}
	}
}

// accept decodes x and applies expiry and the selector. It returns nil for entries the
// subscription must skip.
func (s *Session) accept(sub *subscription, x redis.XMessage) *jms.Message {
	msg, err := decodeEntry(s.cfg.Prefixes, x)
	if err != nil {
		s.OnException(&jms.ProviderError{Op: "decode entry", Err: err})
		return nil
	}

	if exp := msg.Expiration(); exp > 0 && exp <= time.Now().UnixMilli() {
		s.logger.Debug("expired entry skipped", zap.String("stream", sub.key), zap.String("id", x.ID))
		return nil
	}

	ok, err := sub.selector.Matches(msg)
	if err != nil {
		s.logger.Debug("selector", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	return msg
}

// CloseConsumer implements jms.Session. It returns once no further delivery can happen.
func (s *Session) CloseConsumer(sub jms.Subscription) error {
	s.mu.Lock()
	running, ok := s.subs[sub.ID()]
	delete(s.subs, sub.ID())
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: unknown subscription %s", jms.IllegalStateError{}, sub.ID())
	}

	running.cancel()
	<-running.done

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

// Stop pauses message delivery to consumers.
func (s *Session) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.started.CompareAndSwap(true, false) {
		s.running = make(chan struct{})
	}
}

func (s *Session) waitStarted(ctx context.Context) bool {
	s.runMu.Lock()
	running := s.running
	s.runMu.Unlock()

	select {
	case <-running:
		return true
	case <-ctx.Done():
		return false
	}
}

// IsStarted implements jms.Session.
func (s *Session) IsStarted() bool {
	return s.started.Load()
}

// Transacted implements jms.Session. Redis Streams sessions never are.
func (s *Session) Transacted() bool {
	return false
}

// Commit implements jms.Session.
func (s *Session) Commit() error {
	return fmt.Errorf("%w: session is not transacted", jms.IllegalStateError{})
}

// CreateTemporaryQueue returns a uniquely named queue whose stream is deleted on Close.
func (s *Session) CreateTemporaryQueue() (*jms.Destination, error) {
	if s.isClosed.Load() {
		return nil, fmt.Errorf("%w: session is closed", jms.IllegalStateError{})
	}

	d := jms.NewTemporaryQueue(s.cfg.Prefixes.TempQueue, uuid.NewString())

	s.mu.Lock()
	s.temporaries = append(s.temporaries, s.StreamKey(d))
	s.mu.Unlock()

	return d, nil
}

// CreateProducer returns a producer tracked by the session; nil dest makes it flexible.
func (s *Session) CreateProducer(dest *jms.Destination) (*jms.MessageProducer, error) {
	if s.isClosed.Load() {
		return nil, fmt.Errorf("%w: session is closed", jms.IllegalStateError{})
	}

	p := jms.NewProducer(s, dest, jms.WithLogger(s.logger))

	s.mu.Lock()
	s.producers[p] = struct{}{}
	s.mu.Unlock()

	return p, nil
}

// CreateConsumer subscribes to dest.
func (s *Session) CreateConsumer(dest *jms.Destination, messageSelector string) (*jms.MessageConsumer, error) {
	return jms.NewConsumer(s, dest, messageSelector, jms.WithLogger(s.logger))
}

// CreateBrowser returns a browser over queue.
func (s *Session) CreateBrowser(queue *jms.Destination, messageSelector string, opts ...jms.Option) (*jms.QueueBrowser, error) {
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

// Close stops every subscription, drops temporary streams and, for sessions built
// with New, closes the client.
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
	temporaries := s.temporaries
	s.temporaries = nil
	s.mu.Unlock()

	for _, p := range producers {
		_ = p.Close()
	}
	for _, sub := range subs {
		_ = s.CloseConsumer(sub)
	}
	s.wg.Wait()

	var errs []error
	if len(temporaries) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.client.Del(ctx, temporaries...).Err(); err != nil {
			errs = append(errs, fmt.Errorf("delete temporary streams: %w", err))
		}
		cancel()
	}

	if s.owned {
		if err := s.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close client: %w", err))
		}
	}

	return errors.Join(errs...)
}

func ping(c redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if strings.ToUpper(res) != "PONG" {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
