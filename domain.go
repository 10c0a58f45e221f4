// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GwynCerbin/go_jms/pkg/broker"
)

type domain uint8

const (
	domainQueue domain = iota + 1
	domainTopic
)

func (d domain) String() string {
	if d == domainTopic {
		return "TopicSession"
	}
	return "QueueSession"
}

// domainSession creates destinations, consumers and producers on a session restricted
// to one messaging domain. Operations of the other domain fail with IllegalStateError.
type domainSession struct {
	session Session
	domain  domain
	opts    []Option
}

// QueueSession is a session restricted to point-to-point messaging.
type QueueSession struct {
	domainSession
}

// TopicSession is a session restricted to publish and subscribe messaging.
type TopicSession struct {
	domainSession
}

// NewQueueSession restricts s to queues.
func NewQueueSession(s Session, opts ...Option) *QueueSession {
	return &QueueSession{domainSession{session: s, domain: domainQueue, opts: opts}}
}

// NewTopicSession restricts s to topics.
func NewTopicSession(s Session, opts ...Option) *TopicSession {
	return &TopicSession{domainSession{session: s, domain: domainTopic, opts: opts}}
}

// Session returns the wrapped session.
func (d *domainSession) Session() Session {
	return d.session
}

func (d *domainSession) require(want domain) error {
	if d.domain != want {
		return fmt.Errorf("%w: operation not supported by a %s", IllegalStateError{}, d.domain)
	}
	return nil
}

func (d *domainSession) prefixes() Prefixes {
	if conn := d.session.Connection(); conn != nil {
		return conn.Prefixes()
	}
	return DefaultPrefixes()
}

// CreateQueue returns the queue called name.
func (d *domainSession) CreateQueue(name string) (*Destination, error) {
	if err := d.require(domainQueue); err != nil {
		return nil, err
	}
	return NewQueue(d.prefixes().Queue, name), nil
}

// CreateTemporaryQueue returns a queue with a generated name.
func (d *domainSession) CreateTemporaryQueue() (*Destination, error) {
	if err := d.require(domainQueue); err != nil {
		return nil, err
	}
	return NewTemporaryQueue(d.prefixes().TempQueue, uuid.NewString()), nil
}

// CreateTopic returns the topic called name.
func (d *domainSession) CreateTopic(name string) (*Destination, error) {
	if err := d.require(domainTopic); err != nil {
		return nil, err
	}
	return NewTopic(d.prefixes().Topic, name), nil
}

// CreateTemporaryTopic returns a topic with a generated name.
func (d *domainSession) CreateTemporaryTopic() (*Destination, error) {
	if err := d.require(domainTopic); err != nil {
		return nil, err
	}
	return NewTemporaryTopic(d.prefixes().TempTopic, uuid.NewString()), nil
}

// CreateBrowser returns an idle browser over queue.
func (d *domainSession) CreateBrowser(queue *Destination, selector string) (*QueueBrowser, error) {
	if err := d.require(domainQueue); err != nil {
		return nil, err
	}
	return NewQueueBrowser(d.session, queue, selector, d.opts...)
}

// CreateReceiver subscribes to queue.
func (d *domainSession) CreateReceiver(queue *Destination, selector string) (*QueueReceiver, error) {
	if err := d.require(domainQueue); err != nil {
		return nil, err
	}
	if queue != nil && queue.IsTopic() {
		return nil, fmt.Errorf("%w: %s is not a queue", InvalidDestinationError{}, queue)
	}

	c, err := NewConsumer(d.session, queue, selector, d.opts...)
	if err != nil {
		return nil, err
	}

	return &QueueReceiver{MessageConsumer: c}, nil
}

// CreateSender returns a producer bound to queue, or a flexible one when queue is nil.
func (d *domainSession) CreateSender(queue *Destination) (*QueueSender, error) {
	if err := d.require(domainQueue); err != nil {
		return nil, err
	}
	return &QueueSender{MessageProducer: NewProducer(d.session, queue, d.opts...)}, nil
}

// CreateSubscriber subscribes to topic.
func (d *domainSession) CreateSubscriber(topic *Destination, selector string) (*TopicSubscriber, error) {
	if err := d.require(domainTopic); err != nil {
		return nil, err
	}
	if topic != nil && topic.IsQueue() {
		return nil, fmt.Errorf("%w: %s is not a topic", InvalidDestinationError{}, topic)
	}

	c, err := NewConsumer(d.session, topic, selector, d.opts...)
	if err != nil {
		return nil, err
	}

	return &TopicSubscriber{MessageConsumer: c}, nil
}

// CreatePublisher returns a producer bound to topic, or a flexible one when topic is nil.
func (d *domainSession) CreatePublisher(topic *Destination) (*TopicPublisher, error) {
	if err := d.require(domainTopic); err != nil {
		return nil, err
	}
	return &TopicPublisher{MessageProducer: NewProducer(d.session, topic, d.opts...)}, nil
}

// QueueReceiver is a consumer of a queue.
type QueueReceiver struct {
	*MessageConsumer
}

// Queue returns the consumed queue.
func (r *QueueReceiver) Queue() (*Destination, error) {
	if r.isClosed.Load() {
		return nil, fmt.Errorf("%w: the receiver is closed", IllegalStateError{})
	}
	return r.Destination(), nil
}

// TopicSubscriber is a consumer of a topic.
type TopicSubscriber struct {
	*MessageConsumer
}

// Topic returns the subscribed topic.
func (s *TopicSubscriber) Topic() (*Destination, error) {
	if s.isClosed.Load() {
		return nil, fmt.Errorf("%w: the subscriber is closed", IllegalStateError{})
	}
	return s.Destination(), nil
}

// QueueSender is a producer of queue messages.
type QueueSender struct {
	*MessageProducer
}

// Queue returns the bound queue.
func (s *QueueSender) Queue() (*Destination, error) {
	return s.MessageProducer.Destination()
}

// TopicPublisher is a producer of topic messages.
type TopicPublisher struct {
	*MessageProducer
}

// Topic returns the bound topic.
func (p *TopicPublisher) Topic() (*Destination, error) {
	return p.MessageProducer.Destination()
}

// Publish sends msg to the bound topic.
func (p *TopicPublisher) Publish(ctx context.Context, msg broker.Message) error {
	return p.Send(ctx, msg)
}

// PublishWith sends msg to the bound topic with explicit delivery parameters.
func (p *TopicPublisher) PublishWith(ctx context.Context, msg broker.Message, mode broker.DeliveryMode, priority int, ttl time.Duration) error {
	return p.SendWith(ctx, msg, mode, priority, ttl)
}

// PublishTo sends msg to topic.
func (p *TopicPublisher) PublishTo(ctx context.Context, topic broker.Destination, msg broker.Message) error {
	return p.SendTo(ctx, topic, msg)
}

// PublishToWith sends msg to topic with explicit delivery parameters.
func (p *TopicPublisher) PublishToWith(ctx context.Context, topic broker.Destination, msg broker.Message, mode broker.DeliveryMode, priority int, ttl time.Duration) error {
	return p.SendToWith(ctx, topic, msg, mode, priority, ttl)
}
