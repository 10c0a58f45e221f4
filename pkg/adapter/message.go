// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

// delivery wraps an AMQP delivery and tracks acknowledgment state.
// It uses sync.Once to ensure the WaitGroup is decremented only once upon ack/nack/reject.
type delivery struct {
	// Delivery holds the original AMQP delivery metadata and payload.
	amqp091.Delivery
	// Once prevents multiple Done calls on the WaitGroup.
	sync.Once
	// wg tracks the number of in-flight messages for graceful shutdown.
	wg *sync.WaitGroup
}

func newDelivery(d amqp091.Delivery, wg *sync.WaitGroup) *delivery {
	wg.Add(1)
	return &delivery{Delivery: d, wg: wg}
}

func (d *delivery) done() {
	d.Do(func() {
		d.wg.Done()
	})
}

// ack acknowledges successful processing of the message.
func (d *delivery) ack() error {
	defer d.done()

	return d.Ack(false)
}

// nack negatively acknowledges the message and puts it back on the queue.
func (d *delivery) nack() error {
	defer d.done()

	return d.Nack(false, true)
}

// reject drops a message that cannot be decoded.
func (d *delivery) reject() error {
	defer d.done()

	return d.Reject(false)
}
