package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/pkg/domain"
)

// RequestModel is the GORM model for the service_requests table.
// History, rating and reports live in JSONB columns: they are always
// read and written with their parent row, never independently.
type RequestModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RequestNumber   string          `gorm:"uniqueIndex;not null;size:20"`
	ServiceID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	ClientID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProviderID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status          string          `gorm:"not null;size:30;index"`
	PreferredDate   time.Time       `gorm:"not null"`
	Address         string          `gorm:"not null;size:500"`
	ContactPhone    string          `gorm:"not null;size:30"`
	Description     string          `gorm:"not null;size:2000"`
	AmountCents     int64           `gorm:"not null"`
	Currency        string          `gorm:"not null;size:3;default:'MXN'"`
	RejectionReason string          `gorm:"size:500"`
	CancelNote      string          `gorm:"size:500"`
	History         json.RawMessage `gorm:"type:jsonb;not null"`
	Rating          json.RawMessage `gorm:"type:jsonb"`
	Reports         json.RawMessage `gorm:"type:jsonb"`
	Version         int64           `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null;index"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RequestModel) TableName() string {
	return "service_requests"
}

// GormRequestRepository is the GORM-based implementation of RequestRepository.
type GormRequestRepository struct {
	db *gorm.DB
}

// NewGormRequestRepository creates a new GormRequestRepository.
func NewGormRequestRepository(db *gorm.DB) *GormRequestRepository {
	return &GormRequestRepository{db: db}
}

// FindByID retrieves a request by its unique identifier.
func (r *GormRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*requestDomain.ServiceRequest, error) {
	var model RequestModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ServiceRequest", id.String())
		}
		return nil, fmt.Errorf("failed to find request by ID: %w", err)
	}
	return toDomainRequest(&model)
}

// FindByNumber retrieves a request by its request number.
func (r *GormRequestRepository) FindByNumber(ctx context.Context, number string) (*requestDomain.ServiceRequest, error) {
	var model RequestModel
	if err := r.db.WithContext(ctx).Where("request_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("ServiceRequest", number)
		}
		return nil, fmt.Errorf("failed to find request by number: %w", err)
	}
	return toDomainRequest(&model)
}

// FindByClientID retrieves requests filed by a client, newest first.
func (r *GormRequestRepository) FindByClientID(ctx context.Context, clientID uuid.UUID, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	return r.findWhere(ctx, "client_id = ?", clientID, filter, page, limit)
}

// FindByProviderID retrieves requests assigned to a provider, newest first.
func (r *GormRequestRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	return r.findWhere(ctx, "provider_id = ?", providerID, filter, page, limit)
}

func (r *GormRequestRepository) findWhere(ctx context.Context, cond string, arg uuid.UUID, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&RequestModel{}).Where(cond, arg)
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	var models []RequestModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find requests: %w", err)
	}

	requests := make([]*requestDomain.ServiceRequest, len(models))
	for i, m := range models {
		req, err := toDomainRequest(&m)
		if err != nil {
			return nil, 0, err
		}
		requests[i] = req
	}

	return requests, total, nil
}

// Save persists a new request.
func (r *GormRequestRepository) Save(ctx context.Context, req *requestDomain.ServiceRequest) error {
	model, err := toRequestModel(req)
	if err != nil {
		return fmt.Errorf("failed to convert request to model: %w", err)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

// Update persists changes to an existing request with optimistic locking.
func (r *GormRequestRepository) Update(ctx context.Context, req *requestDomain.ServiceRequest) error {
	model, err := toRequestModel(req)
	if err != nil {
		return fmt.Errorf("failed to convert request to model: %w", err)
	}

	// Only update if the version matches (current version - 1 since IncrementVersion was called)
	expectedVersion := req.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&RequestModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"preferred_date":   model.PreferredDate,
			"address":          model.Address,
			"contact_phone":    model.ContactPhone,
			"description":      model.Description,
			"amount_cents":     model.AmountCents,
			"currency":         model.Currency,
			"rejection_reason": model.RejectionReason,
			"cancel_note":      model.CancelNote,
			"history":          model.History,
			"rating":           model.Rating,
			"reports":          model.Reports,
			"version":          model.Version,
			"updated_at":       model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update request: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return domain.NewConflictError("request was modified by another transaction")
	}

	return nil
}

// ListAll retrieves all requests with pagination (admin).
func (r *GormRequestRepository) ListAll(ctx context.Context, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&RequestModel{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count requests: %w", err)
	}

	var models []RequestModel
	offset := (page - 1) * limit
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list requests: %w", err)
	}

	requests := make([]*requestDomain.ServiceRequest, len(models))
	for i, m := range models {
		req, err := toDomainRequest(&m)
		if err != nil {
			return nil, 0, err
		}
		requests[i] = req
	}

	return requests, total, nil
}

// CountByStatus returns request counts grouped by status (admin).
func (r *GormRequestRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&RequestModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// --- Conversion Helpers ---

func toRequestModel(req *requestDomain.ServiceRequest) (*RequestModel, error) {
	historyJSON, err := json.Marshal(req.History())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	var ratingJSON json.RawMessage
	if req.Rating() != nil {
		data, err := json.Marshal(req.Rating())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal rating: %w", err)
		}
		ratingJSON = data
	}

	var reportsJSON json.RawMessage
	if reports := req.Reports(); len(reports) > 0 {
		data, err := json.Marshal(reports)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal reports: %w", err)
		}
		reportsJSON = data
	}

	return &RequestModel{
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
		History:         historyJSON,
		Rating:          ratingJSON,
		Reports:         reportsJSON,
		Version:         req.Version(),
		CreatedAt:       req.CreatedAt(),
		UpdatedAt:       req.UpdatedAt(),
	}, nil
}

func toDomainRequest(m *RequestModel) (*requestDomain.ServiceRequest, error) {
	var history []requestDomain.HistoryEntry
	if err := json.Unmarshal(m.History, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	var rating *requestDomain.Rating
	if len(m.Rating) > 0 {
		var rt requestDomain.Rating
		if err := json.Unmarshal(m.Rating, &rt); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rating: %w", err)
		}
		rating = &rt
	}

	var reports []requestDomain.Report
	if len(m.Reports) > 0 {
		if err := json.Unmarshal(m.Reports, &reports); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reports: %w", err)
		}
	}

	status, err := requestDomain.ParseRequestStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return requestDomain.ReconstructServiceRequest(
		m.ID,
		m.RequestNumber,
		m.ServiceID,
		m.ClientID,
		m.ProviderID,
		status,
		m.PreferredDate,
		m.Address,
		m.ContactPhone,
		m.Description,
		m.AmountCents,
		m.Currency,
		m.RejectionReason,
		m.CancelNote,
		history,
		rating,
		reports,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
