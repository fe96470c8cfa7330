package request

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status RequestStatus
}

// RequestRepository defines the persistence contract for request aggregates.
// Update implementations must enforce optimistic locking per request ID:
// a stale version yields a Conflict error and leaves stored state unchanged.
type RequestRepository interface {
	// FindByID retrieves a request by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)

	// FindByNumber retrieves a request by its human-readable request number.
	FindByNumber(ctx context.Context, number string) (*ServiceRequest, error)

	// FindByClientID retrieves requests filed by a client, newest first.
	FindByClientID(ctx context.Context, clientID uuid.UUID, filter ListFilter, page, limit int) ([]*ServiceRequest, int64, error)

	// FindByProviderID retrieves requests assigned to a provider, newest first.
	FindByProviderID(ctx context.Context, providerID uuid.UUID, filter ListFilter, page, limit int) ([]*ServiceRequest, int64, error)

	// ListAll retrieves all requests, newest first (admin).
	ListAll(ctx context.Context, filter ListFilter, page, limit int) ([]*ServiceRequest, int64, error)

	// CountByStatus returns request counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new request.
	Save(ctx context.Context, req *ServiceRequest) error

	// Update persists changes to an existing request with optimistic locking.
	Update(ctx context.Context, req *ServiceRequest) error
}
