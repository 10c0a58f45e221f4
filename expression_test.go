// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

func TestPropertyExpression_ReservedWinsOverProperty(t *testing.T) {
	m := NewTextMessage("x")
	m.SetPriority(9)
	require.NoError(t, m.SetProperty("JMSPriority", "shadow"))

	v, err := NewPropertyExpression("JMSPriority").Evaluate(m)
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestPropertyExpression_UserProperty(t *testing.T) {
	m := NewMessage()
	require.NoError(t, m.SetProperty("region", "eu"))

	v, err := NewPropertyExpression("region").Evaluate(m)
	require.NoError(t, err)
	assert.Equal(t, "eu", v)

	v, err = NewPropertyExpression("missing").Evaluate(m)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = NewPropertyExpression("region").Evaluate(nil)
	assert.ErrorIs(t, err, IllegalStateError{})
}

func TestPropertyExpression_Accessors(t *testing.T) {
	p := DefaultPrefixes()

	m := NewMessage()
	m.SetDestination(NewQueue(p.Queue, "orders"))
	m.SetReplyTo(NewTopic(p.Topic, "replies"))
	m.SetType("order")
	m.SetDeliveryMode(broker.NonPersistent)
	m.SetCorrelationID("c-1")
	m.SetExpiration(5000)
	m.SetTimestamp(1000)
	m.SetRedelivered(true)
	m.SetRedeliveryCounter(2)

	tests := map[string]any{
		"JMSDestination":    "/queue/orders",
		"JMSReplyTo":        "/topic/replies",
		"JMSType":           "order",
		"JMSDeliveryMode":   1,
		"JMSPriority":       DefaultPriority,
		"JMSMessageID":      nil,
		"JMSTimestamp":      int64(1000),
		"JMSCorrelationID":  "c-1",
		"JMSExpiration":     int64(5000),
		"JMSRedelivered":    true,
		"JMSXDeliveryCount": 3,
	}

	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			e := NewPropertyExpression(name)
			assert.True(t, e.IsReserved())

			got, err := e.Evaluate(m)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			got, err = e.Evaluate(nil)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestPropertyExpression_Equality(t *testing.T) {
	assert.True(t, NewPropertyExpression("a").Equal(NewPropertyExpression("a")))
	assert.False(t, NewPropertyExpression("a").Equal(NewPropertyExpression("b")))
	assert.False(t, NewPropertyExpression("jmspriority").IsReserved())

	set := map[PropertyExpression]struct{}{NewPropertyExpression("JMSType"): {}}
	_, ok := set[NewPropertyExpression("JMSType")]
	assert.True(t, ok)
}
