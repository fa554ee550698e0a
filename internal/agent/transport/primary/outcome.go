package primary

import (
	"fmt"

	"github.com/dmitrijs2005/wearsync/internal/common"
)

// OutcomeKind classifies the result of a batch submit.
type OutcomeKind string

const (
	// OutcomeAccepted means the endpoint confirmed delivery.
	OutcomeAccepted OutcomeKind = "ACCEPTED"
	// OutcomeRejected means the endpoint explicitly declined the batch.
	// Retryable, but the message is surfaced to the caller.
	OutcomeRejected OutcomeKind = "REJECTED"
	// OutcomeUnreachable means a network-layer failure: refused connection,
	// timeout, DNS or socket error. Always retryable.
	OutcomeUnreachable OutcomeKind = "UNREACHABLE"
)

// Outcome is the result of Driver.Submit.
type Outcome struct {
	Kind        OutcomeKind
	SyncedCount int
	Message     string
	Cause       error
}

// Accepted reports a confirmed delivery of n records.
func Accepted(n int) Outcome {
	return Outcome{Kind: OutcomeAccepted, SyncedCount: n}
}

// Rejected reports an explicit decline with the server's message.
func Rejected(message string) Outcome {
	return Outcome{Kind: OutcomeRejected, Message: message}
}

// Unreachable reports a network-layer failure.
func Unreachable(cause error) Outcome {
	return Outcome{Kind: OutcomeUnreachable, Cause: cause}
}

// Err maps the outcome onto the shared sentinel taxonomy so callers can
// classify failures with errors.Is. Accepted maps to nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeRejected:
		if o.Message != "" {
			return fmt.Errorf("%w: %s", common.ErrRejected, o.Message)
		}
		return common.ErrRejected
	case OutcomeUnreachable:
		if o.Cause != nil {
			return fmt.Errorf("%w: %v", common.ErrUnreachable, o.Cause)
		}
		return common.ErrUnreachable
	default:
		return nil
	}
}
