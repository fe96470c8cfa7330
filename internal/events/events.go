package events

import (
	"time"

	"github.com/google/uuid"
)

// Kafka topics.
const (
	TopicRequestEvents    = "request.events"
	TopicModerationEvents = "moderation.events"
)

// Event types published on request.events.
const (
	RequestCreated      = "request.created"
	RequestAccepted     = "request.accepted"
	RequestRejected     = "request.rejected"
	RequestDateProposed = "request.date_proposed"
	RequestUpdated      = "request.updated"
	RequestStarted      = "request.started"
	RequestCompleted    = "request.completed"
	RequestCancelled    = "request.cancelled"
	RequestRated        = "request.rated"
	RequestReported     = "request.reported"

	RequestReportResolved  = "request.report_resolved"
	RequestReportDismissed = "request.report_dismissed"
)

// Event types consumed from moderation.events.
const (
	ReportResolved  = "report.resolved"
	ReportDismissed = "report.dismissed"
)

// RequestCreatedEvent is published when a client files a new request.
type RequestCreatedEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	ServiceID     uuid.UUID `json:"service_id"`
	ClientID      uuid.UUID `json:"client_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	PreferredDate time.Time `json:"preferred_date"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RequestStatusEvent is published on accept, start and complete transitions.
type RequestStatusEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	ClientID      uuid.UUID `json:"client_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RequestRejectedEvent is published when a provider rejects a request.
type RequestRejectedEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	ClientID      uuid.UUID `json:"client_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RequestDateProposedEvent is published when a provider proposes a new date.
type RequestDateProposedEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	ClientID      uuid.UUID `json:"client_id"`
	ProviderID    uuid.UUID `json:"provider_id"`
	ProposedDate  time.Time `json:"proposed_date"`
	Note          string    `json:"note,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RequestCancelledEvent is published when either side cancels a request.
type RequestCancelledEvent struct {
	RequestID     uuid.UUID `json:"request_id"`
	RequestNumber string    `json:"request_number"`
	CancelledBy   uuid.UUID `json:"cancelled_by"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RequestRatedEvent is published when a client rates a completed request.
type RequestRatedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	ClientID   uuid.UUID `json:"client_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Value      int       `json:"value"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RequestReportedEvent is published when a moderation report is filed.
type RequestReportedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	ReportID   uuid.UUID `json:"report_id"`
	Category   string    `json:"category"`
	ReportedBy uuid.UUID `json:"reported_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RequestReportClosedEvent is published after a report is resolved or dismissed.
type RequestReportClosedEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	ReportID   uuid.UUID `json:"report_id"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ReportModerationEvent is consumed when the moderation team closes a report.
type ReportModerationEvent struct {
	RequestID  uuid.UUID `json:"request_id"`
	ReportID   uuid.UUID `json:"report_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
