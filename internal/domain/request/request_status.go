package request

import "fmt"

// RequestStatus represents the current state of a service request in its lifecycle.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusAccepted   RequestStatus = "accepted"
	StatusRejected   RequestStatus = "rejected"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// validTransitions defines the state machine for request status transitions.
var validTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusRejected:   {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is a recognized request status.
func (s RequestStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s RequestStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the request can be cancelled from this status.
func (s RequestStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// String returns the string representation of the status.
func (s RequestStatus) String() string {
	return string(s)
}

// ParseRequestStatus converts a string to a RequestStatus, returning an error if invalid.
func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid request status: %s", s)
	}
	return status, nil
}
