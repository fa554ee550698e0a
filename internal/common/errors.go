// Package common defines shared constants and sentinel errors used across
// agent and server layers of WearSync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Transport-level errors (sync error taxonomy).
	ErrUnreachable           = errors.New("endpoint unreachable")
	ErrRejected              = errors.New("endpoint rejected batch")
	ErrCapabilityUnavailable = errors.New("link capability unavailable")

	// Orchestrator flow control.
	ErrShuttingDown = errors.New("shutting down")
)
