// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

import "context"

// Handler processes one received message.
type Handler func(ctx context.Context, msg *Message)

// Router maps qualified destination names to handlers.
type Router map[string]Handler

func NewRouter() Router {
	return make(Router)
}

func (r Router) Add(dest *Destination, f Handler) {
	r[dest.QualifiedName()] = f
}
