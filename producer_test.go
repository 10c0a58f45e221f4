// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

func TestProducer_BoundDestination(t *testing.T) {
	ctx := context.Background()
	p := DefaultPrefixes()
	s := newFakeSession()
	a := NewQueue(p.Queue, "a")

	prod := NewProducer(s, a)

	err := prod.SendTo(ctx, NewQueue(p.Queue, "b"), NewTextMessage("x"))
	assert.ErrorIs(t, err, UnsupportedOperationError{})

	err = prod.SendTo(ctx, foreignDestination{kind: broker.Topic, name: "a"}, NewTextMessage("x"))
	assert.ErrorIs(t, err, UnsupportedOperationError{})

	require.NoError(t, prod.SendTo(ctx, NewQueue(p.Queue, "a"), NewTextMessage("x")))
	require.NoError(t, prod.Send(ctx, NewTextMessage("y")))

	sent := s.sentMessages()
	require.Len(t, sent, 2)
	assert.True(t, sent[0].dest.Equal(a))
	assert.True(t, sent[1].dest.Equal(a))
}

func TestProducer_Flexible(t *testing.T) {
	ctx := context.Background()
	p := DefaultPrefixes()
	s := newFakeSession()

	prod := NewProducer(s, nil)

	require.NoError(t, prod.SendTo(ctx, NewQueue(p.Queue, "a"), NewTextMessage("x")))
	require.NoError(t, prod.SendTo(ctx, foreignDestination{kind: broker.Topic, name: "b"}, NewTextMessage("x")))

	sent := s.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "/topic/b", sent[1].dest.QualifiedName())

	assert.ErrorIs(t, prod.Send(ctx, NewTextMessage("x")), InvalidDestinationError{})
	assert.ErrorIs(t, prod.SendTo(ctx, nil, NewTextMessage("x")), InvalidDestinationError{})

	require.NoError(t, prod.SetDestination(NewTopic(p.Topic, "c")))
	require.NoError(t, prod.Send(ctx, NewTextMessage("x")))
	assert.Equal(t, "/topic/c", s.sentMessages()[2].dest.QualifiedName())
}

func TestProducer_SetDestinationBound(t *testing.T) {
	p := DefaultPrefixes()
	prod := NewProducer(newFakeSession(), NewQueue(p.Queue, "a"))

	assert.NoError(t, prod.SetDestination(NewQueue(p.Queue, "a")))
	assert.ErrorIs(t, prod.SetDestination(NewQueue(p.Queue, "b")), UnsupportedOperationError{})
}

func TestProducer_SetDestinationNil(t *testing.T) {
	p := DefaultPrefixes()
	var none *Destination

	for name, prod := range map[string]*MessageProducer{
		"flexible": NewProducer(newFakeSession(), nil),
		"bound":    NewProducer(newFakeSession(), NewQueue(p.Queue, "a")),
	} {
		t.Run(name, func(t *testing.T) {
			before, err := prod.Destination()
			require.NoError(t, err)

			assert.ErrorIs(t, prod.SetDestination(nil), InvalidDestinationError{})
			assert.ErrorIs(t, prod.SetDestination(none), InvalidDestinationError{})

			after, err := prod.Destination()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestProducer_Stamping(t *testing.T) {
	ctx := context.Background()
	s := newFakeSession()
	dest := NewQueue(DefaultPrefixes().Queue, "a")
	prod := NewProducer(s, dest)

	msg := NewTextMessage("x")
	require.NoError(t, prod.SendWith(ctx, msg, broker.NonPersistent, 8, time.Minute))

	sent := s.sentMessages()
	require.Len(t, sent, 1)
	out := sent[0]

	assert.NotSame(t, msg, out.msg)
	assert.Equal(t, SendParams{DeliveryMode: broker.NonPersistent, Priority: 8, TimeToLive: time.Minute}, out.params)
	assert.True(t, strings.HasPrefix(out.msg.MessageID(), "ID:"))
	assert.Positive(t, out.msg.Timestamp())
	assert.Equal(t, out.msg.Timestamp()+time.Minute.Milliseconds(), out.msg.Expiration())
	assert.Equal(t, 8, out.msg.Priority())
	assert.False(t, out.msg.IsPersistent())

	// written back onto the caller's message
	assert.Equal(t, out.msg.MessageID(), msg.MessageID())
	assert.True(t, msg.Destination().Equal(dest))
	assert.Equal(t, 8, msg.Priority())
}

func TestProducer_DisabledStamps(t *testing.T) {
	ctx := context.Background()
	s := newFakeSession()
	prod := NewProducer(s, NewQueue(DefaultPrefixes().Queue, "a"))

	require.NoError(t, prod.SetDisableMessageID(true))
	require.NoError(t, prod.SetDisableMessageTimestamp(true))
	require.NoError(t, prod.Send(ctx, NewTextMessage("x")))

	out := s.sentMessages()[0]
	assert.True(t, out.params.DisableMessageID)
	assert.Empty(t, out.msg.MessageID())
	assert.Zero(t, out.msg.Timestamp())
	assert.Zero(t, out.msg.Expiration())
}

func TestProducer_ProviderError(t *testing.T) {
	s := newFakeSession()
	s.sendErr = errors.New("broken pipe")
	prod := NewProducer(s, NewQueue(DefaultPrefixes().Queue, "a"))

	err := prod.Send(context.Background(), NewTextMessage("x"))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, s.sendErr)
}

func TestProducer_Closed(t *testing.T) {
	ctx := context.Background()
	s := newFakeSession()
	prod := NewProducer(s, NewQueue(DefaultPrefixes().Queue, "a"))

	require.NoError(t, prod.Close())
	require.NoError(t, prod.Close())

	s.mu.Lock()
	assert.Len(t, s.removed, 1)
	s.mu.Unlock()

	calls := map[string]func() error{
		"Send":                       func() error { return prod.Send(ctx, NewTextMessage("x")) },
		"SendTo":                     func() error { return prod.SendTo(ctx, NewQueue("", "a"), NewTextMessage("x")) },
		"Destination":                func() error { _, err := prod.Destination(); return err },
		"SetDestination":             func() error { return prod.SetDestination(NewQueue("", "a")) },
		"DeliveryMode":               func() error { _, err := prod.DeliveryMode(); return err },
		"SetDeliveryMode":            func() error { return prod.SetDeliveryMode(broker.Persistent) },
		"Priority":                   func() error { _, err := prod.Priority(); return err },
		"SetPriority":                func() error { return prod.SetPriority(1) },
		"TimeToLive":                 func() error { _, err := prod.TimeToLive(); return err },
		"SetTimeToLive":              func() error { return prod.SetTimeToLive(time.Second) },
		"DisableMessageID":           func() error { _, err := prod.DisableMessageID(); return err },
		"SetDisableMessageID":        func() error { return prod.SetDisableMessageID(true) },
		"DisableMessageTimestamp":    func() error { _, err := prod.DisableMessageTimestamp(); return err },
		"SetDisableMessageTimestamp": func() error { return prod.SetDisableMessageTimestamp(true) },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), IllegalStateError{})
		})
	}
	assert.Empty(t, s.sentMessages())
}

func TestProducer_Unsupported(t *testing.T) {
	prod := NewProducer(newFakeSession(), nil)

	_, err := prod.DeliveryDelay()
	assert.ErrorIs(t, err, UnsupportedOperationError{})
	assert.ErrorIs(t, prod.SetDeliveryDelay(time.Second), UnsupportedOperationError{})
	assert.ErrorIs(t, prod.SendAsync(context.Background(), NewQueue("", "a"), NewTextMessage("x"), nil), UnsupportedOperationError{})
}

func TestProducer_Defaults(t *testing.T) {
	prod := NewProducer(newFakeSession(), nil)

	mode, err := prod.DeliveryMode()
	require.NoError(t, err)
	assert.Equal(t, broker.Persistent, mode)

	priority, err := prod.Priority()
	require.NoError(t, err)
	assert.Equal(t, DefaultPriority, priority)

	ttl, err := prod.TimeToLive()
	require.NoError(t, err)
	assert.Zero(t, ttl)
}
