package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/internal/events"
	"github.com/stamin-up/service-requests/pkg/domain"
	"github.com/stamin-up/service-requests/pkg/kafka"
)

// EventPublisher publishes CloudEvents to a topic. Satisfied by kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event kafka.CloudEvent) error
}

// CreateRequestInput holds the data needed to create a new service request.
type CreateRequestInput struct {
	ServiceID     uuid.UUID `json:"service_id" binding:"required"`
	ProviderID    uuid.UUID `json:"provider_id" binding:"required"`
	PreferredDate time.Time `json:"preferred_date" binding:"required"`
	Address       string    `json:"address" binding:"required"`
	ContactPhone  string    `json:"contact_phone" binding:"required"`
	Description   string    `json:"description" binding:"required"`
	AmountCents   int64     `json:"amount_cents" binding:"required"`
}

// EditRequestInput holds the updatable fields of a pending request.
type EditRequestInput struct {
	AmountCents   *int64     `json:"amount_cents"`
	PreferredDate *time.Time `json:"preferred_date"`
}

// RequestDTO is the response representation of a service request.
type RequestDTO struct {
	ID              uuid.UUID                    `json:"id"`
	RequestNumber   string                       `json:"request_number"`
	ServiceID       uuid.UUID                    `json:"service_id"`
	ClientID        uuid.UUID                    `json:"client_id"`
	ProviderID      uuid.UUID                    `json:"provider_id"`
	Status          string                       `json:"status"`
	PreferredDate   time.Time                    `json:"preferred_date"`
	Address         string                       `json:"address"`
	ContactPhone    string                       `json:"contact_phone"`
	Description     string                       `json:"description"`
	AmountCents     int64                        `json:"amount_cents"`
	Currency        string                       `json:"currency"`
	RejectionReason string                       `json:"rejection_reason,omitempty"`
	CancelNote      string                       `json:"cancel_note,omitempty"`
	History         []requestDomain.HistoryEntry `json:"history"`
	Rating          *requestDomain.Rating        `json:"rating,omitempty"`
	Reports         []requestDomain.Report       `json:"reports,omitempty"`
	CanRate         bool                         `json:"can_rate"`
	CanReport       bool                         `json:"can_report"`
	Version         int64                        `json:"version"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

// RequestStatsDTO holds request statistics for the admin dashboard.
type RequestStatsDTO struct {
	TotalRequests int64            `json:"total_requests"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// defaultCurrency is the currency all amounts are quoted in.
const defaultCurrency = "MXN"

// RequestService is the application service orchestrating request lifecycle use cases.
type RequestService struct {
	repo     requestDomain.RequestRepository
	producer EventPublisher
	logger   *zap.Logger
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	repo requestDomain.RequestRepository,
	producer EventPublisher,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		repo:     repo,
		producer: producer,
		logger:   logger,
	}
}

// CreateRequest creates a new service request for the given client.
func (s *RequestService) CreateRequest(ctx context.Context, clientID uuid.UUID, input CreateRequestInput) (*RequestDTO, error) {
	req, err := requestDomain.NewServiceRequest(
		input.ServiceID,
		clientID,
		input.ProviderID,
		input.PreferredDate,
		input.Address,
		input.ContactPhone,
		input.Description,
		input.AmountCents,
		defaultCurrency,
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	evt := events.RequestCreatedEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		ServiceID:     req.ServiceID(),
		ClientID:      req.ClientID(),
		ProviderID:    req.ProviderID(),
		PreferredDate: req.PreferredDate(),
		AmountCents:   req.AmountCents(),
		Currency:      req.Currency(),
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestCreated, req.ID().String(), evt)

	result := toRequestDTO(req)
	return &result, nil
}

// AcceptRequest moves a pending request to accepted.
func (s *RequestService) AcceptRequest(ctx context.Context, requestID uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Accept(); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, events.RequestAccepted, req)

	result := toRequestDTO(req)
	return &result, nil
}

// RejectRequest moves a pending request to rejected with a reason.
func (s *RequestService) RejectRequest(ctx context.Context, requestID uuid.UUID, reason string) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Reject(reason); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	evt := events.RequestRejectedEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		ClientID:      req.ClientID(),
		ProviderID:    req.ProviderID(),
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestRejected, req.ID().String(), evt)

	result := toRequestDTO(req)
	return &result, nil
}

// ProposeDate records a provider-proposed date on a pending request.
func (s *RequestService) ProposeDate(ctx context.Context, requestID uuid.UUID, newDate time.Time, note string) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.ProposeDate(newDate, note); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	evt := events.RequestDateProposedEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		ClientID:      req.ClientID(),
		ProviderID:    req.ProviderID(),
		ProposedDate:  req.PreferredDate(),
		Note:          note,
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestDateProposed, req.ID().String(), evt)

	result := toRequestDTO(req)
	return &result, nil
}

// EditRequest updates the amount and/or preferred date of a pending request.
func (s *RequestService) EditRequest(ctx context.Context, requestID uuid.UUID, input EditRequestInput) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Edit(input.AmountCents, input.PreferredDate); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, events.RequestUpdated, req)

	result := toRequestDTO(req)
	return &result, nil
}

// StartService moves an accepted request to in_progress.
func (s *RequestService) StartService(ctx context.Context, requestID uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Start(); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, events.RequestStarted, req)

	result := toRequestDTO(req)
	return &result, nil
}

// CompleteService moves an in_progress request to completed.
func (s *RequestService) CompleteService(ctx context.Context, requestID uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Complete(); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishStatusEvent(ctx, events.RequestCompleted, req)

	result := toRequestDTO(req)
	return &result, nil
}

// CancelRequest cancels a request that is not yet in a terminal state.
func (s *RequestService) CancelRequest(ctx context.Context, requestID, cancelledBy uuid.UUID, reason string) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := req.Cancel(reason); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	evt := events.RequestCancelledEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		CancelledBy:   cancelledBy,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestCancelled, req.ID().String(), evt)

	result := toRequestDTO(req)
	return &result, nil
}

// RateService records the client's rating on a completed request.
func (s *RequestService) RateService(ctx context.Context, requestID, clientID uuid.UUID, value int, comment string) (*requestDomain.Rating, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if req.ClientID() != clientID {
		return nil, domain.NewForbiddenError("request does not belong to this client")
	}

	rating, err := req.Rate(value, comment)
	if err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	evt := events.RequestRatedEvent{
		RequestID:  req.ID(),
		ClientID:   req.ClientID(),
		ProviderID: req.ProviderID(),
		Value:      rating.Value,
		OccurredAt: time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestRated, req.ID().String(), evt)

	return rating, nil
}

// FileReport files a moderation report against a request.
func (s *RequestService) FileReport(ctx context.Context, requestID, reportedBy uuid.UUID, category, description string) (*requestDomain.Report, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	parsed, err := requestDomain.ParseReportCategory(category)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	report, err := req.FileReport(parsed, description, reportedBy)
	if err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	evt := events.RequestReportedEvent{
		RequestID:  req.ID(),
		ReportID:   report.ID,
		Category:   string(report.Category),
		ReportedBy: reportedBy,
		OccurredAt: time.Now().UTC(),
	}
	s.publishEvent(ctx, events.RequestReported, req.ID().String(), evt)

	return report, nil
}

// ResolveReport marks an active report as resolved (moderation decision).
func (s *RequestService) ResolveReport(ctx context.Context, requestID, reportID uuid.UUID) error {
	return s.closeReport(ctx, requestID, reportID, true)
}

// DismissReport marks an active report as dismissed (moderation decision).
func (s *RequestService) DismissReport(ctx context.Context, requestID, reportID uuid.UUID) error {
	return s.closeReport(ctx, requestID, reportID, false)
}

func (s *RequestService) closeReport(ctx context.Context, requestID, reportID uuid.UUID, resolved bool) error {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return err
	}

	eventType := events.RequestReportDismissed
	closedStatus := requestDomain.ReportStatusDismissed
	if resolved {
		eventType = events.RequestReportResolved
		closedStatus = requestDomain.ReportStatusResolved
		err = req.ResolveReport(reportID)
	} else {
		err = req.DismissReport(reportID)
	}
	if err != nil {
		return err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return err
	}

	evt := events.RequestReportClosedEvent{
		RequestID:  req.ID(),
		ReportID:   reportID,
		Status:     string(closedStatus),
		OccurredAt: time.Now().UTC(),
	}
	s.publishEvent(ctx, eventType, req.ID().String(), evt)

	return nil
}

// GetRequest retrieves a single request by ID.
func (s *RequestService) GetRequest(ctx context.Context, requestID uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	result := toRequestDTO(req)
	return &result, nil
}

// GetClientRequests retrieves paginated requests filed by a client.
func (s *RequestService) GetClientRequests(ctx context.Context, clientID uuid.UUID, filter requestDomain.ListFilter, page, limit int) (*domain.PaginatedResult[RequestDTO], error) {
	requests, total, err := s.repo.FindByClientID(ctx, clientID, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// GetProviderRequests retrieves paginated requests assigned to a provider.
func (s *RequestService) GetProviderRequests(ctx context.Context, providerID uuid.UUID, filter requestDomain.ListFilter, page, limit int) (*domain.PaginatedResult[RequestDTO], error) {
	requests, total, err := s.repo.FindByProviderID(ctx, providerID, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// ListAllRequests returns a paginated list of all requests (admin).
func (s *RequestService) ListAllRequests(ctx context.Context, filter requestDomain.ListFilter, page, limit int) ([]RequestDTO, int64, error) {
	requests, total, err := s.repo.ListAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	dtos := make([]RequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toRequestDTO(req)
	}
	return dtos, total, nil
}

// GetRequestStats returns aggregate request statistics (admin).
func (s *RequestService) GetRequestStats(ctx context.Context) (*RequestStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get request stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &RequestStatsDTO{
		TotalRequests: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func toRequestDTO(req *requestDomain.ServiceRequest) RequestDTO {
	return RequestDTO{
		ID:              req.ID(),
		RequestNumber:   req.RequestNumber(),
		ServiceID:       req.ServiceID(),
		ClientID:        req.ClientID(),
		ProviderID:      req.ProviderID(),
		Status:          string(req.Status()),
		PreferredDate:   req.PreferredDate(),
		Address:         req.Address(),
		ContactPhone:    req.ContactPhone(),
		Description:     req.Description(),
		AmountCents:     req.AmountCents(),
		Currency:        req.Currency(),
		RejectionReason: req.RejectionReason(),
		CancelNote:      req.CancelNote(),
		History:         req.History(),
		Rating:          req.Rating(),
		Reports:         req.Reports(),
		CanRate:         req.CanRate(),
		CanReport:       req.CanReport(),
		Version:         req.Version(),
		CreatedAt:       req.CreatedAt(),
		UpdatedAt:       req.UpdatedAt(),
	}
}

func (s *RequestService) publishStatusEvent(ctx context.Context, eventType string, req *requestDomain.ServiceRequest) {
	evt := events.RequestStatusEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		ClientID:      req.ClientID(),
		ProviderID:    req.ProviderID(),
		Status:        string(req.Status()),
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, eventType, req.ID().String(), evt)
}

func (s *RequestService) publishEvent(ctx context.Context, eventType, key string, data interface{}) {
	if s.producer == nil {
		return
	}

	cloudEvent, err := kafka.NewCloudEvent("service-requests", eventType, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, events.TopicRequestEvents, cloudEvent); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", events.TopicRequestEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
