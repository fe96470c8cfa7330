package request

import "time"

// Rating is the client's post-completion score for a request.
// At most one rating exists per request; it is immutable once set.
type Rating struct {
	Value     int       `json:"value"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
