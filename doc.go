// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

// Package jms is the client core of a JMS style messaging API for STOMP brokers.
//
// It models destinations and messages, converts messages of other providers,
// evaluates selector properties, validates producer sends and runs queue browses.
// Network transport is left to a Session implementation such as pkg/adapter or
// pkg/redistream.
package jms
