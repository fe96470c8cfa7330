package request

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportStatus represents the moderation state of a filed report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusInReview  ReportStatus = "in_review"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// IsActive returns true while the report still blocks new reports on the request.
func (s ReportStatus) IsActive() bool {
	return s == ReportStatusPending || s == ReportStatusInReview
}

// ReportCategory classifies what a report is about. Clients and providers
// each have their own set of categories; "other" is shared.
type ReportCategory string

const (
	// Filed by clients against providers.
	CategoryNotCompleted ReportCategory = "not_completed"
	CategoryPoorQuality  ReportCategory = "poor_quality"
	CategoryBehavior     ReportCategory = "behavior"
	CategoryPriceIssue   ReportCategory = "price_issue"
	CategoryNoShow       ReportCategory = "no_show"
	CategoryFraud        ReportCategory = "fraud"

	// Filed by providers against clients.
	CategoryFakeRequest           ReportCategory = "fake_request"
	CategoryInappropriateBehavior ReportCategory = "inappropriate_behavior"
	CategoryPaymentIssue          ReportCategory = "payment_issue"
	CategoryDangerousConditions   ReportCategory = "dangerous_conditions"
	CategorySpam                  ReportCategory = "spam"

	CategoryOther ReportCategory = "other"
)

var reportCategories = map[ReportCategory]struct{}{
	CategoryNotCompleted:          {},
	CategoryPoorQuality:           {},
	CategoryBehavior:              {},
	CategoryPriceIssue:            {},
	CategoryNoShow:                {},
	CategoryFraud:                 {},
	CategoryFakeRequest:           {},
	CategoryInappropriateBehavior: {},
	CategoryPaymentIssue:          {},
	CategoryDangerousConditions:   {},
	CategorySpam:                  {},
	CategoryOther:                 {},
}

// IsValid returns true if the category is recognized.
func (c ReportCategory) IsValid() bool {
	_, exists := reportCategories[c]
	return exists
}

// ParseReportCategory converts a string to a ReportCategory, returning an error if invalid.
func ParseReportCategory(s string) (ReportCategory, error) {
	category := ReportCategory(s)
	if !category.IsValid() {
		return "", fmt.Errorf("invalid report category: %s", s)
	}
	return category, nil
}

// Report is a moderation report filed against a request. Multiple reports
// may exist per request, but never more than one in an active status.
type Report struct {
	ID          uuid.UUID      `json:"id"`
	Category    ReportCategory `json:"category"`
	Description string         `json:"description"`
	Status      ReportStatus   `json:"status"`
	ReportedBy  uuid.UUID      `json:"reported_by"`
	CreatedAt   time.Time      `json:"created_at"`
}
