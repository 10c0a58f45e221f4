// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package jms

// InvalidDestinationError is returned when a destination is nil or cannot be classified.
type InvalidDestinationError struct{}

// UnsupportedOperationError is returned for operations this client declares but does not serve,
// and for sends that do not match the destination a producer is bound to.
type UnsupportedOperationError struct{}

// IllegalStateError is returned when an operation is attempted on a closed object
// or is not allowed for the session domain.
type IllegalStateError struct{}

// TransformationFailureError is returned when envelope or property copy fails
// while converting a foreign message.
type TransformationFailureError struct{}

// MessageFormatError is returned when a value or body call does not fit the message kind.
type MessageFormatError struct{}

// MessageNotWriteableError is returned when a read-only message is modified.
type MessageNotWriteableError struct{}

// EmptyRouteError is returned by ListenAndServe when no route was registered.
type EmptyRouteError struct{}

// UnroutedMessageError is reported for messages without a matching route.
type UnroutedMessageError struct{}

// ConsumerCloseError is reported when the listener fails to close its receiver.
type ConsumerCloseError struct{}

// ProviderError wraps a failure surfaced by the session or transport collaborator.
type ProviderError struct {
	Op  string
	Err error
}

func (InvalidDestinationError) Error() string {
	return "invalid destination"
}

func (UnsupportedOperationError) Error() string {
	return "unsupported operation"
}

func (IllegalStateError) Error() string {
	return "illegal state"
}

func (TransformationFailureError) Error() string {
	return "message transformation failed"
}

func (MessageFormatError) Error() string {
	return "message format mismatch"
}

func (MessageNotWriteableError) Error() string {
	return "message is read-only"
}

func (EmptyRouteError) Error() string {
	return "empty route"
}

func (UnroutedMessageError) Error() string {
	return "unrouted message"
}

func (ConsumerCloseError) Error() string {
	return "close consumer, dropped with error"
}

// Error implements the error interface for ProviderError.
func (e *ProviderError) Error() string {
	if e.Op == "" {
		return "provider: " + e.Err.Error()
	}
	return "provider: " + e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the collaborator error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}
