package models

// SyncMethod identifies which transport completed (or failed) the last
// sync attempt.
type SyncMethod string

const (
	MethodNone     SyncMethod = "NONE"
	MethodPrimary  SyncMethod = "PRIMARY"
	MethodFallback SyncMethod = "FALLBACK"
)

// SyncState is the published status snapshot. It is recomputed and
// republished after every sync attempt and every ingestion.
//
// LastSyncTimestamp is monotonically non-decreasing and advances only
// after a transport reports success.
type SyncState struct {
	LastSyncTimestamp int64      `json:"lastSyncTimestamp"`
	PendingCount      int        `json:"pendingCount"`
	LastMethod        SyncMethod `json:"lastMethod"`
	LastSuccess       bool       `json:"lastSuccess"`
	LastError         string     `json:"lastError,omitempty"`
}
