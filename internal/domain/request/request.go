package request

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/stamin-up/service-requests/pkg/domain"
)

const requestNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	minAddressLen     = 5
	minPhoneDigits    = 8
	minDescriptionLen = 10
	minRejectReasonLen = 10
	minReportDescLen  = 20
)

// ServiceRequest is the aggregate root for the request domain: a client's
// booking of a provider's service at a time and place.
type ServiceRequest struct {
	id            uuid.UUID
	requestNumber string
	serviceID     uuid.UUID
	clientID      uuid.UUID
	providerID    uuid.UUID
	status        RequestStatus

	preferredDate time.Time
	address       string
	contactPhone  string
	description   string
	amountCents   int64
	currency      string

	rejectionReason string
	cancelNote      string

	history []HistoryEntry
	rating  *Rating
	reports []Report

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateRequestNumber creates a request number in the format "SR-XXXXXX".
func generateRequestNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(requestNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate request number: %w", err)
		}
		result[i] = requestNumberChars[n.Int64()]
	}
	return "SR-" + string(result), nil
}

// countDigits returns how many decimal digits the string contains.
func countDigits(s string) int {
	count := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			count++
		}
	}
	return count
}

// validPhone accepts digits plus the separators commonly typed into phone fields.
func validPhone(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == ' ' || r == '-' || r == '+' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return countDigits(s) >= minPhoneDigits
}

// NewServiceRequest creates a new ServiceRequest aggregate with status=pending
// and an initial "created" history entry.
func NewServiceRequest(
	serviceID uuid.UUID,
	clientID uuid.UUID,
	providerID uuid.UUID,
	preferredDate time.Time,
	address string,
	contactPhone string,
	description string,
	amountCents int64,
	currency string,
) (*ServiceRequest, error) {
	if serviceID == uuid.Nil {
		return nil, domain.NewValidationError("service ID is required")
	}
	if clientID == uuid.Nil {
		return nil, domain.NewValidationError("client ID is required")
	}
	if providerID == uuid.Nil {
		return nil, domain.NewValidationError("provider ID is required")
	}
	now := time.Now().UTC()
	if !preferredDate.After(now) {
		return nil, domain.NewValidationError("preferred date must be in the future")
	}
	if len(address) < minAddressLen {
		return nil, domain.NewValidationError(
			fmt.Sprintf("address must be at least %d characters", minAddressLen))
	}
	if !validPhone(contactPhone) {
		return nil, domain.NewValidationError(
			fmt.Sprintf("contact phone must contain at least %d digits", minPhoneDigits))
	}
	if len(description) < minDescriptionLen {
		return nil, domain.NewValidationError(
			fmt.Sprintf("description must be at least %d characters", minDescriptionLen))
	}
	if amountCents <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}

	requestNumber, err := generateRequestNumber()
	if err != nil {
		return nil, err
	}

	return &ServiceRequest{
		id:            uuid.New(),
		requestNumber: requestNumber,
		serviceID:     serviceID,
		clientID:      clientID,
		providerID:    providerID,
		status:        StatusPending,
		preferredDate: preferredDate.UTC(),
		address:       address,
		contactPhone:  contactPhone,
		description:   description,
		amountCents:   amountCents,
		currency:      currency,
		history: []HistoryEntry{{
			Action:    ActionCreated,
			Timestamp: now,
			Note:      "service request created",
		}},
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructServiceRequest rebuilds a ServiceRequest from persistence data (no validation).
func ReconstructServiceRequest(
	id uuid.UUID,
	requestNumber string,
	serviceID uuid.UUID,
	clientID uuid.UUID,
	providerID uuid.UUID,
	status RequestStatus,
	preferredDate time.Time,
	address string,
	contactPhone string,
	description string,
	amountCents int64,
	currency string,
	rejectionReason string,
	cancelNote string,
	history []HistoryEntry,
	rating *Rating,
	reports []Report,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *ServiceRequest {
	return &ServiceRequest{
		id:              id,
		requestNumber:   requestNumber,
		serviceID:       serviceID,
		clientID:        clientID,
		providerID:      providerID,
		status:          status,
		preferredDate:   preferredDate,
		address:         address,
		contactPhone:    contactPhone,
		description:     description,
		amountCents:     amountCents,
		currency:        currency,
		rejectionReason: rejectionReason,
		cancelNote:      cancelNote,
		history:         history,
		rating:          rating,
		reports:         reports,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// --- Getters ---

// ID returns the request's unique identifier.
func (r *ServiceRequest) ID() uuid.UUID { return r.id }

// RequestNumber returns the human-readable request number.
func (r *ServiceRequest) RequestNumber() string { return r.requestNumber }

// ServiceID returns the booked service's ID.
func (r *ServiceRequest) ServiceID() uuid.UUID { return r.serviceID }

// ClientID returns the requesting client's user ID.
func (r *ServiceRequest) ClientID() uuid.UUID { return r.clientID }

// ProviderID returns the provider's user ID.
func (r *ServiceRequest) ProviderID() uuid.UUID { return r.providerID }

// Status returns the current request status.
func (r *ServiceRequest) Status() RequestStatus { return r.status }

// PreferredDate returns the date the service should be performed.
func (r *ServiceRequest) PreferredDate() time.Time { return r.preferredDate }

// Address returns the service address.
func (r *ServiceRequest) Address() string { return r.address }

// ContactPhone returns the client's contact phone.
func (r *ServiceRequest) ContactPhone() string { return r.contactPhone }

// Description returns the work description.
func (r *ServiceRequest) Description() string { return r.description }

// AmountCents returns the agreed amount in cents.
func (r *ServiceRequest) AmountCents() int64 { return r.amountCents }

// Currency returns the currency code.
func (r *ServiceRequest) Currency() string { return r.currency }

// RejectionReason returns the reason given on rejection, empty otherwise.
func (r *ServiceRequest) RejectionReason() string { return r.rejectionReason }

// CancelNote returns the cancellation note, empty if not cancelled.
func (r *ServiceRequest) CancelNote() string { return r.cancelNote }

// History returns the ordered lifecycle ledger. The returned slice is a copy.
func (r *ServiceRequest) History() []HistoryEntry {
	history := make([]HistoryEntry, len(r.history))
	copy(history, r.history)
	return history
}

// Rating returns the client's rating, or nil if not yet rated.
func (r *ServiceRequest) Rating() *Rating { return r.rating }

// Reports returns the filed reports in filing order. The returned slice is a copy.
func (r *ServiceRequest) Reports() []Report {
	reports := make([]Report, len(r.reports))
	copy(reports, r.reports)
	return reports
}

// Version returns the entity version for optimistic locking.
func (r *ServiceRequest) Version() int64 { return r.version }

// CreatedAt returns the creation timestamp.
func (r *ServiceRequest) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (r *ServiceRequest) UpdatedAt() time.Time { return r.updatedAt }

// --- Derived state ---

// HasRating returns true if the request has been rated.
func (r *ServiceRequest) HasRating() bool { return r.rating != nil }

// CanRate returns true if the client may rate this request now.
func (r *ServiceRequest) CanRate() bool {
	return r.status == StatusCompleted && r.rating == nil
}

// HasActiveReport returns true while an unresolved report is open.
func (r *ServiceRequest) HasActiveReport() bool {
	for _, report := range r.reports {
		if report.Status.IsActive() {
			return true
		}
	}
	return false
}

// ActiveReportCount returns how many reports are still unresolved.
func (r *ServiceRequest) ActiveReportCount() int {
	count := 0
	for _, report := range r.reports {
		if report.Status.IsActive() {
			count++
		}
	}
	return count
}

// CanReport returns true if a new report may be filed against this request.
func (r *ServiceRequest) CanReport() bool {
	if r.status != StatusCompleted && r.status != StatusInProgress {
		return false
	}
	return !r.HasActiveReport()
}

// --- Behavior ---

func (r *ServiceRequest) appendHistory(entry HistoryEntry) {
	r.history = append(r.history, entry)
}

// Accept transitions the request from pending to accepted.
func (r *ServiceRequest) Accept() error {
	if !r.status.CanTransitionTo(StatusAccepted) {
		return domain.NewInvalidStateError(string(r.status), string(StatusAccepted))
	}
	now := time.Now().UTC()
	r.status = StatusAccepted
	r.appendHistory(HistoryEntry{
		Action:    ActionAccepted,
		Timestamp: now,
		Note:      "request accepted by provider",
	})
	r.updatedAt = now
	return nil
}

// Reject transitions the request from pending to rejected with a reason.
func (r *ServiceRequest) Reject(reason string) error {
	if len(reason) < minRejectReasonLen {
		return domain.NewValidationError(
			fmt.Sprintf("rejection reason must be at least %d characters", minRejectReasonLen))
	}
	if !r.status.CanTransitionTo(StatusRejected) {
		return domain.NewInvalidStateError(string(r.status), string(StatusRejected))
	}
	now := time.Now().UTC()
	r.status = StatusRejected
	r.rejectionReason = reason
	r.appendHistory(HistoryEntry{
		Action:    ActionRejected,
		Timestamp: now,
		Note:      "request rejected",
		Reason:    reason,
	})
	r.updatedAt = now
	return nil
}

// ProposeDate records a provider-proposed date on a pending request.
// The request stays pending; the preferred date moves to the proposal.
func (r *ServiceRequest) ProposeDate(newDate time.Time, note string) error {
	if r.status != StatusPending {
		return domain.NewInvalidStateError(string(r.status), string(StatusPending))
	}
	now := time.Now().UTC()
	if !newDate.After(now) {
		return domain.NewValidationError("proposed date must be in the future")
	}
	if note == "" {
		note = "provider proposed a new date"
	}
	proposed := newDate.UTC()
	r.preferredDate = proposed
	r.appendHistory(HistoryEntry{
		Action:       ActionDateProposed,
		Timestamp:    now,
		Note:         note,
		ProposedDate: &proposed,
	})
	r.updatedAt = now
	return nil
}

// Edit updates the amount and/or preferred date of a pending request.
func (r *ServiceRequest) Edit(amountCents *int64, preferredDate *time.Time) error {
	if r.status != StatusPending {
		return domain.NewInvalidStateError(string(r.status), string(StatusPending))
	}
	now := time.Now().UTC()
	if amountCents != nil && *amountCents <= 0 {
		return domain.NewValidationError("amount must be positive")
	}
	if preferredDate != nil && !preferredDate.After(now) {
		return domain.NewValidationError("preferred date must be in the future")
	}
	if amountCents != nil {
		r.amountCents = *amountCents
	}
	if preferredDate != nil {
		r.preferredDate = preferredDate.UTC()
	}
	r.updatedAt = now
	return nil
}

// Start transitions the request from accepted to in_progress.
func (r *ServiceRequest) Start() error {
	if !r.status.CanTransitionTo(StatusInProgress) {
		return domain.NewInvalidStateError(string(r.status), string(StatusInProgress))
	}
	now := time.Now().UTC()
	r.status = StatusInProgress
	r.appendHistory(HistoryEntry{
		Action:    ActionInProgress,
		Timestamp: now,
		Note:      "service started",
	})
	r.updatedAt = now
	return nil
}

// Complete transitions the request from in_progress to completed.
func (r *ServiceRequest) Complete() error {
	if !r.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError(string(r.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	r.status = StatusCompleted
	r.appendHistory(HistoryEntry{
		Action:    ActionCompleted,
		Timestamp: now,
		Note:      "service completed",
	})
	r.updatedAt = now
	return nil
}

// Cancel transitions the request to cancelled if it is not in a terminal state.
func (r *ServiceRequest) Cancel(note string) error {
	if !r.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(r.status), string(StatusCancelled))
	}
	now := time.Now().UTC()
	r.status = StatusCancelled
	r.cancelNote = note
	r.appendHistory(HistoryEntry{
		Action:    ActionCancelled,
		Timestamp: now,
		Note:      "request cancelled",
		Reason:    note,
	})
	r.updatedAt = now
	return nil
}

// Rate records the client's rating on a completed request.
func (r *ServiceRequest) Rate(value int, comment string) (*Rating, error) {
	if value < 1 || value > 5 {
		return nil, domain.NewValidationError("rating value must be between 1 and 5")
	}
	if r.status != StatusCompleted {
		return nil, domain.NewInvalidStateError(string(r.status), string(StatusCompleted))
	}
	if r.rating != nil {
		return nil, domain.NewAlreadyRatedError(r.id.String())
	}
	r.rating = &Rating{
		Value:     value,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	r.updatedAt = r.rating.CreatedAt
	return r.rating, nil
}

// FileReport files a new moderation report against the request.
func (r *ServiceRequest) FileReport(category ReportCategory, description string, reportedBy uuid.UUID) (*Report, error) {
	if !category.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid report category: %s", category))
	}
	if len(description) < minReportDescLen {
		return nil, domain.NewValidationError(
			fmt.Sprintf("report description must be at least %d characters", minReportDescLen))
	}
	if r.status != StatusCompleted && r.status != StatusInProgress {
		return nil, domain.NewInvalidStateError(string(r.status), "reported")
	}
	if r.HasActiveReport() {
		return nil, domain.NewActiveReportExistsError(r.id.String())
	}

	now := time.Now().UTC()
	report := Report{
		ID:          uuid.New(),
		Category:    category,
		Description: description,
		Status:      ReportStatusPending,
		ReportedBy:  reportedBy,
		CreatedAt:   now,
	}
	r.reports = append(r.reports, report)
	r.updatedAt = now
	return &report, nil
}

// ResolveReport marks an active report as resolved.
func (r *ServiceRequest) ResolveReport(reportID uuid.UUID) error {
	return r.closeReport(reportID, ReportStatusResolved)
}

// DismissReport marks an active report as dismissed.
func (r *ServiceRequest) DismissReport(reportID uuid.UUID) error {
	return r.closeReport(reportID, ReportStatusDismissed)
}

func (r *ServiceRequest) closeReport(reportID uuid.UUID, status ReportStatus) error {
	for i := range r.reports {
		if r.reports[i].ID != reportID {
			continue
		}
		if !r.reports[i].Status.IsActive() {
			return domain.NewInvalidStateError(string(r.reports[i].Status), string(status))
		}
		r.reports[i].Status = status
		r.updatedAt = time.Now().UTC()
		return nil
	}
	return domain.NewNotFoundError("Report", reportID.String())
}

// IncrementVersion bumps the version for optimistic locking.
func (r *ServiceRequest) IncrementVersion() {
	r.version++
	r.updatedAt = time.Now().UTC()
}
