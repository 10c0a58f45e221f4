// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

type fakeSubscription string

func (s fakeSubscription) ID() string { return string(s) }

type fakeConnection struct {
	mu   sync.Mutex
	errs []error
}

func (c *fakeConnection) OnException(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *fakeConnection) Prefixes() Prefixes { return DefaultPrefixes() }

func (c *fakeConnection) exceptions() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

type sentMessage struct {
	dest   *Destination
	msg    *Message
	params SendParams
}

// fakeSession records every collaborator call. onRegister, when set, runs inside
// RegisterConsumer and may deliver synchronously.
type fakeSession struct {
	conn       *fakeConnection
	transacted bool
	sendErr    error
	onRegister func(req ConsumerRequest, deliver DeliveryFunc)

	started atomic.Bool
	commits atomic.Int32
	closes  atomic.Int32

	mu        sync.Mutex
	sent      []sentMessage
	requests  []ConsumerRequest
	delivers  []DeliveryFunc
	removed   []*MessageProducer
	callOrder []string
}

func newFakeSession() *fakeSession {
	s := &fakeSession{conn: &fakeConnection{}}
	s.started.Store(true)
	return s
}

func (s *fakeSession) Send(_ context.Context, dest *Destination, msg *Message, params SendParams) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.mu.Lock()
	s.sent = append(s.sent, sentMessage{dest: dest, msg: msg, params: params})
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) RegisterConsumer(req ConsumerRequest, deliver DeliveryFunc) (Subscription, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.delivers = append(s.delivers, deliver)
	s.mu.Unlock()

	if s.onRegister != nil {
		s.onRegister(req, deliver)
	}
	return fakeSubscription(req.ID), nil
}

func (s *fakeSession) CloseConsumer(Subscription) error {
	s.closes.Add(1)
	s.record("close")
	return nil
}

func (s *fakeSession) IsStarted() bool  { return s.started.Load() }
func (s *fakeSession) Transacted() bool { return s.transacted }

func (s *fakeSession) Commit() error {
	s.commits.Add(1)
	s.record("commit")
	return nil
}

func (s *fakeSession) RemoveProducer(p *MessageProducer) {
	s.mu.Lock()
	s.removed = append(s.removed, p)
	s.mu.Unlock()
}

func (s *fakeSession) Connection() Connection { return s.conn }

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	s.callOrder = append(s.callOrder, call)
	s.mu.Unlock()
}

func (s *fakeSession) lastDeliver() DeliveryFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delivers[len(s.delivers)-1]
}

func (s *fakeSession) sentMessages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

func (s *fakeSession) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.callOrder...)
}

func endOfBrowse() *Message {
	m := NewMessage()
	m.SetHeader(HeaderBrowser, BrowserEnd)
	return m
}

// foreignDestination is a destination of another provider.
type foreignDestination struct {
	kind broker.DestinationKind
	name string
}

func (d foreignDestination) Kind() broker.DestinationKind { return d.kind }
func (d foreignDestination) Name() string                 { return d.name }

// foreignMessage is a message of another provider supporting every body kind.
type foreignMessage struct {
	kind    broker.PayloadKind
	env     broker.Envelope
	envErr  error
	props   map[string]any
	propErr error

	text    string
	data    []byte
	readErr error
	entries map[string]any
	values  []any
	object  any

	pos int
}

func (m *foreignMessage) Kind() broker.PayloadKind { return m.kind }

func (m *foreignMessage) Envelope() (broker.Envelope, error) { return m.env, m.envErr }

func (m *foreignMessage) PropertyNames() ([]string, error) {
	names := make([]string, 0, len(m.props))
	for k := range m.props {
		names = append(names, k)
	}
	return names, nil
}

func (m *foreignMessage) Property(name string) (any, error) {
	if m.propErr != nil {
		return nil, m.propErr
	}
	return m.props[name], nil
}

func (m *foreignMessage) Text() (string, error) { return m.text, nil }

func (m *foreignMessage) Reset() error {
	m.pos = 0
	return nil
}

func (m *foreignMessage) ReadByte() (byte, error) {
	if m.pos >= len(m.data) {
		if m.readErr != nil {
			return 0, m.readErr
		}
		return 0, broker.ErrEndOfPayload
	}
	c := m.data[m.pos]
	m.pos++
	return c, nil
}

func (m *foreignMessage) MapNames() ([]string, error) {
	names := make([]string, 0, len(m.entries))
	for k := range m.entries {
		names = append(names, k)
	}
	return names, nil
}

func (m *foreignMessage) MapEntry(name string) (any, error) { return m.entries[name], nil }

func (m *foreignMessage) ReadObject() (any, error) {
	if m.pos >= len(m.values) {
		if m.readErr != nil {
			return nil, m.readErr
		}
		return nil, broker.ErrEndOfPayload
	}
	v := m.values[m.pos]
	m.pos++
	return v, nil
}

func (m *foreignMessage) Object() (any, error) { return m.object, nil }
