// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

// ConnClosedError is returned when operations are attempted on a closed connection.
type ConnClosedError struct{}

// SessionClosedError is returned when a closed session is used.
type SessionClosedError struct{}

// UnknownSubscriptionError is returned when a subscription was not opened by the session
// or has already been closed.
type UnknownSubscriptionError struct{}

// InvalidConfigError is returned when a session configuration cannot be applied.
type InvalidConfigError struct{}

// Error implements the error interface for ConnClosedError.
// It indicates the client explicitly closed the connection.
func (e ConnClosedError) Error() string {
	return "connection closed by client"
}

// Error implements the error interface for SessionClosedError.
func (SessionClosedError) Error() string {
	return "session already closed, unable to provide"
}

// Error implements the error interface for UnknownSubscriptionError.
func (UnknownSubscriptionError) Error() string {
	return "unknown subscription"
}

func (InvalidConfigError) Error() string {
	return "invalid session config"
}
