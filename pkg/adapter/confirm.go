// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// firstDelay is the initial pause for the exponential back-off.
// Value is expressed in nanoseconds: 0xFFFFF = 1 048 575 ns ≈ 1.05 ms.
const firstDelay time.Duration = 0xFFFFF

// maxDelayMask is the saturation limit for the back-off delay.
// 0x7FFFFFF = 134 217 727 ns ≈ 134 ms.
// Because it is of the form 2ⁿ−1 (all lower 27 bits set),
// you can compactly grow the delay with
//
//	delay = maxDelayMask & (delay<<1 | 1)
//
// which doubles the delay (delay<<1), guarantees it never
// becomes zero (| 1), and clips everything beyond 134 ms (&).
const maxDelayMask time.Duration = 0x7FFFFFF

// nextDelay grows a back-off delay, see maxDelayMask.
func nextDelay(delay time.Duration) time.Duration {
	return maxDelayMask & (delay<<1 | 1)
}

// setupPublisher puts a freshly opened publishing channel in tx or confirm mode.
func setupPublisher(ch *amqp091.Channel, cfg SessionConfig) error {
	switch {
	case cfg.Transacted:
		if err := ch.Tx(); err != nil {
			return fmt.Errorf("select tx mode: %w", err)
		}
	case cfg.Confirm:
		if err := ch.Confirm(false); err != nil {
			return fmt.Errorf("confirm channel for publisher: %w", err)
		}
	}

	return nil
}

// publish sends pub on the session channel. In confirm mode it waits for the broker
// and republishes negatively confirmed messages with exponential back-off.
func (s *Session) publish(ctx context.Context, exchange, key string, pub amqp091.Publishing) error {
	if !s.cfg.Confirm {
		return s.pubChan.PublishWithContext(ctx, exchange, key, false, false, pub)
	}

	delay := firstDelay
	for {
		conf, err := s.pubChan.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, pub)
		if err != nil {
			return err
		}

		success, err := conf.WaitContext(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}

		s.logger.Debug("publish nacked by broker", zap.String("routing_key", key), zap.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.con.stop:
			timer.Stop()
			return ConnClosedError{}
		case <-timer.C:
		}

		delay = nextDelay(delay)
	}
}
