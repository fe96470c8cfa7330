package request

import "time"

// HistoryAction names a lifecycle event recorded in a request's history.
type HistoryAction string

const (
	ActionCreated      HistoryAction = "created"
	ActionAccepted     HistoryAction = "accepted"
	ActionRejected     HistoryAction = "rejected"
	ActionInProgress   HistoryAction = "in_progress"
	ActionCompleted    HistoryAction = "completed"
	ActionCancelled    HistoryAction = "cancelled"
	ActionDateProposed HistoryAction = "date_proposed"
)

// HistoryEntry is an immutable audit record of a single lifecycle event.
// Entries are appended in order and never edited or removed.
type HistoryEntry struct {
	Action       HistoryAction `json:"action"`
	Timestamp    time.Time     `json:"timestamp"`
	Note         string        `json:"note,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	ProposedDate *time.Time    `json:"proposed_date,omitempty"`
}
