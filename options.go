// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import (
	"time"

	"go.uber.org/zap"
)

type options struct {
	logger        *zap.Logger
	waitQuantum   time.Duration
	browserHeader string
	browserEnd    string
}

func defaultOptions() options {
	return options{
		logger:        zap.NewNop(),
		waitQuantum:   DefaultWaitQuantum,
		browserHeader: HeaderBrowser,
		browserEnd:    BrowserEnd,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures producers, consumers, browsers and listeners.
type Option func(*options)

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWaitQuantum bounds a single browser wait. Non-positive values are ignored.
func WithWaitQuantum(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.waitQuantum = d
		}
	}
}

// WithBrowseMarker overrides the header and token marking the end of a browse.
func WithBrowseMarker(header, token string) Option {
	return func(o *options) {
		o.browserHeader = header
		o.browserEnd = token
	}
}
