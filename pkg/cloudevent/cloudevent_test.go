// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package cloudevent

import (
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jms "github.com/GwynCerbin/go_jms"
	"github.com/GwynCerbin/go_jms/pkg/broker"
)

var eventTime = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func jsonEvent(t *testing.T) cloudevents.Event {
	t.Helper()

	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetType("order.created")
	e.SetSource("/billing")
	e.SetSubject("order-42")
	e.SetTime(eventTime)
	e.SetExtension("tenant", "acme")
	e.SetExtension("retries", 3)
	require.NoError(t, e.SetData("application/json", []byte(`{"id":42}`)))

	return e
}

func TestWrap_Text(t *testing.T) {
	p := jms.DefaultPrefixes()
	queue := jms.NewQueue(p.Queue, "events")

	w := Wrap(jsonEvent(t), queue)
	assert.Equal(t, broker.KindText, w.Kind())

	msg, err := jms.TransformMessage(p, w)
	require.NoError(t, err)

	text, err := msg.Text()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42}`, text)

	assert.Equal(t, "evt-1", msg.MessageID())
	assert.Equal(t, "order.created", msg.Type())
	assert.Equal(t, eventTime.UnixMilli(), msg.Timestamp())
	assert.True(t, msg.IsPersistent())
	assert.Equal(t, jms.DefaultPriority, msg.Priority())
	assert.Equal(t, queue.QualifiedName(), msg.Destination().QualifiedName())

	for name, want := range map[string]any{
		PropSource:                 "/billing",
		PropSubject:                "order-42",
		PropDataContentType:        "application/json",
		PropertyPrefix + "tenant":  "acme",
		PropertyPrefix + "retries": int32(3),
	} {
		v, err := msg.Property(name)
		require.NoError(t, err)
		assert.Equal(t, want, v, name)
	}
}

func TestWrap_Bytes(t *testing.T) {
	e := cloudevents.NewEvent()
	e.SetID("evt-2")
	e.SetType("blob")
	e.SetSource("/store")
	require.NoError(t, e.SetData("application/octet-stream", []byte{0xCA, 0xFE}))

	w := Wrap(e, nil)
	assert.Equal(t, broker.KindBytes, w.Kind())

	msg, err := jms.TransformMessage(jms.DefaultPrefixes(), w)
	require.NoError(t, err)

	n, err := msg.BodyLength()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Nil(t, msg.Destination())

	// the wrapper rewinds on every transformation
	again, err := jms.TransformMessage(jms.DefaultPrefixes(), w)
	require.NoError(t, err)
	n, err = again.BodyLength()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestWrap_NoData(t *testing.T) {
	e := cloudevents.NewEvent()
	e.SetID("evt-3")
	e.SetType("ping")
	e.SetSource("/health")

	w := Wrap(e, nil)
	assert.Equal(t, broker.KindNone, w.Kind())

	msg, err := jms.TransformMessage(jms.DefaultPrefixes(), w)
	require.NoError(t, err)
	assert.Equal(t, broker.KindNone, msg.Kind())
	assert.Zero(t, msg.Timestamp())
}

func TestIsTextual(t *testing.T) {
	tests := map[string]bool{
		"":                             false,
		"text/plain":                   true,
		"text/csv; charset=utf-8":      true,
		"application/json":             true,
		"application/cloudevents+json": true,
		"application/xml":              true,
		"application/octet-stream":     false,
		"image/png":                    false,
		";;":                           false,
	}

	for ct, want := range tests {
		assert.Equal(t, want, isTextual(ct), ct)
	}
}

func TestToEvent(t *testing.T) {
	p := jms.DefaultPrefixes()

	msg := jms.NewTextMessage("hello")
	msg.SetMessageID("ID:9")
	msg.SetType("greeting")
	msg.SetTimestamp(eventTime.UnixMilli())
	msg.SetDestination(jms.NewQueue(p.Queue, "orders"))
	require.NoError(t, msg.SetProperty("Tenant-ID", "acme"))
	require.NoError(t, msg.SetProperty("attempt", 2))
	require.NoError(t, msg.SetProperty("ratio", 0.5))
	require.NoError(t, msg.SetProperty("source", "shadowed"))

	e, err := ToEvent(msg, "/greeter")
	require.NoError(t, err)

	assert.Equal(t, "ID:9", e.ID())
	assert.Equal(t, "greeting", e.Type())
	assert.Equal(t, "/greeter", e.Source())
	assert.Equal(t, "/queue/orders", e.Subject())
	assert.True(t, eventTime.Equal(e.Time()))
	assert.Equal(t, "text/plain; charset=utf-8", e.DataContentType())
	assert.Equal(t, []byte("hello"), e.Data())

	ext := e.Extensions()
	assert.Equal(t, "acme", ext["tenantid"])
	assert.Equal(t, int32(2), ext["attempt"])
	assert.Equal(t, "0.5", ext["ratio"])
	assert.NotContains(t, ext, "source")
}

func TestToEvent_Defaults(t *testing.T) {
	msg := jms.NewMapMessage()
	require.NoError(t, msg.SetMapEntry("a", 1))

	e, err := ToEvent(msg, "/maps")
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID())
	assert.Equal(t, "jms.map", e.Type())
	assert.Equal(t, "application/json", e.DataContentType())
	assert.JSONEq(t, `{"a":1}`, string(e.Data()))
	assert.True(t, e.Time().IsZero())
}

func TestToEvent_MissingSource(t *testing.T) {
	_, err := ToEvent(jms.NewTextMessage("x"), "")
	assert.ErrorIs(t, err, jms.MessageFormatError{})
}

func TestRoundTrip(t *testing.T) {
	in := jsonEvent(t)

	msg, err := jms.TransformMessage(jms.DefaultPrefixes(), Wrap(in, nil))
	require.NoError(t, err)

	out, err := ToEvent(msg, "")
	require.NoError(t, err)

	assert.Equal(t, in.ID(), out.ID())
	assert.Equal(t, in.Type(), out.Type())
	assert.Equal(t, in.Source(), out.Source())
	assert.Equal(t, in.Subject(), out.Subject())
	assert.Equal(t, in.DataContentType(), out.DataContentType())
	assert.True(t, in.Time().Equal(out.Time()))
	assert.JSONEq(t, string(in.Data()), string(out.Data()))
	assert.Equal(t, in.Extensions(), out.Extensions())
}
