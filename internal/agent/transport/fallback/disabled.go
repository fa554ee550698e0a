package fallback

import "github.com/dmitrijs2005/wearsync/internal/common"

// DisabledLink is a Link for builds without a radio integration.
// Advertising always fails with common.ErrCapabilityUnavailable, so the
// orchestrator treats the fallback path as unavailable for that attempt.
type DisabledLink struct {
	events chan Event
}

// NewDisabledLink returns a link whose capability is permanently absent.
func NewDisabledLink() *DisabledLink {
	return &DisabledLink{events: make(chan Event)}
}

func (l *DisabledLink) StartAdvertising() error {
	return common.ErrCapabilityUnavailable
}

func (l *DisabledLink) StopAdvertising() {}

func (l *DisabledLink) Events() <-chan Event { return l.events }
