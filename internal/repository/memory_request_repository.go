package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/pkg/domain"
)

// MemoryRequestRepository is an in-memory implementation of RequestRepository.
// It applies the same optimistic-versioning contract as the GORM repository:
// an Update against a stale version returns Conflict and changes nothing.
// Useful for tests and for running the service without a database.
type MemoryRequestRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*requestDomain.ServiceRequest
}

// NewMemoryRequestRepository creates an empty MemoryRequestRepository.
func NewMemoryRequestRepository() *MemoryRequestRepository {
	return &MemoryRequestRepository{
		requests: make(map[uuid.UUID]*requestDomain.ServiceRequest),
	}
}

// snapshot returns a defensive copy so callers never alias stored state.
func snapshot(req *requestDomain.ServiceRequest) *requestDomain.ServiceRequest {
	var rating *requestDomain.Rating
	if req.Rating() != nil {
		r := *req.Rating()
		rating = &r
	}
	return requestDomain.ReconstructServiceRequest(
		req.ID(),
		req.RequestNumber(),
		req.ServiceID(),
		req.ClientID(),
		req.ProviderID(),
		req.Status(),
		req.PreferredDate(),
		req.Address(),
		req.ContactPhone(),
		req.Description(),
		req.AmountCents(),
		req.Currency(),
		req.RejectionReason(),
		req.CancelNote(),
		req.History(),
		rating,
		req.Reports(),
		req.Version(),
		req.CreatedAt(),
		req.UpdatedAt(),
	)
}

// FindByID retrieves a request by its unique identifier.
func (r *MemoryRequestRepository) FindByID(_ context.Context, id uuid.UUID) (*requestDomain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, domain.NewNotFoundError("ServiceRequest", id.String())
	}
	return snapshot(req), nil
}

// FindByNumber retrieves a request by its request number.
func (r *MemoryRequestRepository) FindByNumber(_ context.Context, number string) (*requestDomain.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, req := range r.requests {
		if req.RequestNumber() == number {
			return snapshot(req), nil
		}
	}
	return nil, domain.NewNotFoundError("ServiceRequest", number)
}

// FindByClientID retrieves requests filed by a client, newest first.
func (r *MemoryRequestRepository) FindByClientID(_ context.Context, clientID uuid.UUID, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	return r.list(func(req *requestDomain.ServiceRequest) bool {
		return req.ClientID() == clientID
	}, filter, page, limit)
}

// FindByProviderID retrieves requests assigned to a provider, newest first.
func (r *MemoryRequestRepository) FindByProviderID(_ context.Context, providerID uuid.UUID, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	return r.list(func(req *requestDomain.ServiceRequest) bool {
		return req.ProviderID() == providerID
	}, filter, page, limit)
}

// ListAll retrieves all requests, newest first (admin).
func (r *MemoryRequestRepository) ListAll(_ context.Context, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	return r.list(func(*requestDomain.ServiceRequest) bool { return true }, filter, page, limit)
}

func (r *MemoryRequestRepository) list(match func(*requestDomain.ServiceRequest) bool, filter requestDomain.ListFilter, page, limit int) ([]*requestDomain.ServiceRequest, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*requestDomain.ServiceRequest
	for _, req := range r.requests {
		if !match(req) {
			continue
		}
		if filter.Status != "" && req.Status() != filter.Status {
			continue
		}
		matched = append(matched, req)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt().After(matched[j].CreatedAt())
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	result := make([]*requestDomain.ServiceRequest, 0, end-start)
	for _, req := range matched[start:end] {
		result = append(result, snapshot(req))
	}
	return result, total, nil
}

// CountByStatus returns request counts grouped by status (admin).
func (r *MemoryRequestRepository) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, req := range r.requests {
		counts[string(req.Status())]++
	}
	return counts, nil
}

// Save persists a new request.
func (r *MemoryRequestRepository) Save(_ context.Context, req *requestDomain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.ID()]; exists {
		return domain.NewConflictError("request already exists")
	}
	r.requests[req.ID()] = snapshot(req)
	return nil
}

// Update persists changes to an existing request with optimistic locking.
func (r *MemoryRequestRepository) Update(_ context.Context, req *requestDomain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.requests[req.ID()]
	if !ok {
		return domain.NewNotFoundError("ServiceRequest", req.ID().String())
	}

	// Same contract as the SQL repository: the caller bumped the version,
	// so the stored version must be exactly one behind.
	if current.Version() != req.Version()-1 {
		return domain.NewConflictError("request was modified by another writer")
	}

	r.requests[req.ID()] = snapshot(req)
	return nil
}
