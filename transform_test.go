// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

func TestTransformMessage_ForeignText(t *testing.T) {
	src := &foreignMessage{
		kind:  broker.KindText,
		text:  "hello",
		props: map[string]any{"k": "v"},
		env: broker.Envelope{
			MessageID:    "ID:1",
			Destination:  foreignDestination{kind: broker.Queue, name: "orders"},
			ReplyTo:      foreignDestination{kind: broker.TemporaryQueue, name: "reply"},
			DeliveryMode: broker.NonPersistent,
			Priority:     7,
			Timestamp:    1000,
		},
	}

	m, err := TransformMessage(DefaultPrefixes(), src)
	require.NoError(t, err)

	text, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	names, err := m.PropertyNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, names)
	v, err := m.Property("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	assert.Equal(t, "ID:1", m.MessageID())
	assert.Equal(t, "/queue/orders", m.Destination().QualifiedName())
	assert.Equal(t, "/temp-queue/reply", m.ReplyTo().QualifiedName())
	assert.False(t, m.IsPersistent())
	assert.Equal(t, 7, m.Priority())
	assert.Equal(t, int64(1000), m.Timestamp())
}

func TestTransformMessage_InternalIsCopied(t *testing.T) {
	src := NewTextMessage("hello")
	require.NoError(t, src.SetProperty("k", "v"))

	m, err := TransformMessage(DefaultPrefixes(), src)
	require.NoError(t, err)
	require.NotSame(t, src, m)

	text, err := m.Text()
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, m.SetProperty("k", "changed"))
	v, err := src.Property("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v, "property maps are not shared")
}

func TestTransformMessage_Bytes(t *testing.T) {
	src := &foreignMessage{kind: broker.KindBytes, data: []byte{0x01, 0x02, 0x03}}

	m, err := TransformMessage(DefaultPrefixes(), src)
	require.NoError(t, err)
	require.NoError(t, m.Reset())

	var got []byte
	for {
		c, err := m.ReadByte()
		if errors.Is(err, broker.ErrEndOfPayload) {
			break
		}
		require.NoError(t, err)
		got = append(got, c)
	}
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got)
}

func TestTransformMessage_BytesReadFailure(t *testing.T) {
	src := &foreignMessage{kind: broker.KindBytes, data: []byte{0x01}, readErr: errors.New("socket reset")}

	m, err := TransformMessage(DefaultPrefixes(), src)
	require.NoError(t, err)
	require.NoError(t, m.Reset())

	c, err := m.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), c)
	_, err = m.ReadByte()
	assert.ErrorIs(t, err, broker.ErrEndOfPayload)
}

func TestTransformMessage_StreamReadFailure(t *testing.T) {
	src := &foreignMessage{kind: broker.KindStream, values: []any{"x"}, readErr: errors.New("socket reset")}

	m, err := TransformMessage(DefaultPrefixes(), src)
	require.NoError(t, err)

	first, err := m.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "x", first)
	_, err = m.ReadObject()
	assert.ErrorIs(t, err, broker.ErrEndOfPayload)
}

func TestTransformMessage_MapAndStream(t *testing.T) {
	p := DefaultPrefixes()

	m, err := TransformMessage(p, &foreignMessage{kind: broker.KindMap, entries: map[string]any{"a": int64(1), "b": "x"}})
	require.NoError(t, err)
	names, err := m.MapNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
	v, err := m.MapEntry("a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	m, err = TransformMessage(p, &foreignMessage{kind: broker.KindStream, values: []any{"x", true}})
	require.NoError(t, err)
	first, err := m.ReadObject()
	require.NoError(t, err)
	second, err := m.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, []any{"x", true}, []any{first, second})
	_, err = m.ReadObject()
	assert.ErrorIs(t, err, broker.ErrEndOfPayload)

	// a nil value ends the stream
	m, err = TransformMessage(p, &foreignMessage{kind: broker.KindStream, values: []any{"x", nil, "lost"}})
	require.NoError(t, err)
	first, err = m.ReadObject()
	require.NoError(t, err)
	assert.Equal(t, "x", first)
	_, err = m.ReadObject()
	assert.ErrorIs(t, err, broker.ErrEndOfPayload)
}

func TestTransformMessage_NoneKind(t *testing.T) {
	m, err := TransformMessage(DefaultPrefixes(), &foreignMessage{kind: broker.KindNone})
	require.NoError(t, err)
	assert.Equal(t, broker.KindNone, m.Kind())
}

func TestTransformMessage_Failures(t *testing.T) {
	p := DefaultPrefixes()

	_, err := TransformMessage(p, nil)
	assert.ErrorIs(t, err, TransformationFailureError{})

	envErr := errors.New("envelope unavailable")
	_, err = TransformMessage(p, &foreignMessage{kind: broker.KindText, envErr: envErr})
	assert.ErrorIs(t, err, TransformationFailureError{})
	assert.ErrorIs(t, err, envErr)

	_, err = TransformMessage(p, &foreignMessage{
		kind:    broker.KindText,
		props:   map[string]any{"k": "v"},
		propErr: errors.New("property unavailable"),
	})
	assert.ErrorIs(t, err, TransformationFailureError{})

	_, err = TransformMessage(p, &foreignMessage{
		kind: broker.KindText,
		env:  broker.Envelope{Destination: foreignDestination{kind: 9, name: "x"}},
	})
	assert.ErrorIs(t, err, TransformationFailureError{})
	assert.ErrorIs(t, err, InvalidDestinationError{})
}
