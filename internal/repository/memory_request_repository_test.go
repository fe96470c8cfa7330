package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/pkg/domain"
)

func newStoredRequest(t *testing.T, clientID, providerID uuid.UUID) *requestDomain.ServiceRequest {
	t.Helper()
	req, err := requestDomain.NewServiceRequest(
		uuid.New(),
		clientID,
		providerID,
		time.Now().Add(72*time.Hour),
		"Calle Morelos 45, Guadalajara",
		"+52 33 2211 0099",
		"Reparación de fuga en el baño principal",
		85000,
		"MXN",
	)
	require.NoError(t, err)
	return req
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRequestRepository()
	ctx := context.Background()
	req := newStoredRequest(t, uuid.New(), uuid.New())

	require.NoError(t, repo.Save(ctx, req))

	byID, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)
	assert.Equal(t, req.RequestNumber(), byID.RequestNumber())
	assert.Equal(t, req.Version(), byID.Version())

	byNumber, err := repo.FindByNumber(ctx, req.RequestNumber())
	require.NoError(t, err)
	assert.Equal(t, req.ID(), byNumber.ID())

	err = repo.Save(ctx, req)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRequestRepository()

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestMemoryRepository_SnapshotIsolation(t *testing.T) {
	repo := NewMemoryRequestRepository()
	ctx := context.Background()
	req := newStoredRequest(t, uuid.New(), uuid.New())
	require.NoError(t, repo.Save(ctx, req))

	// Mutating a loaded copy must not leak into the store until Update.
	loaded, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.Accept())

	stored, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)
	assert.Equal(t, requestDomain.StatusPending, stored.Status())
}

func TestMemoryRepository_Update_StaleVersionConflict(t *testing.T) {
	repo := NewMemoryRequestRepository()
	ctx := context.Background()
	req := newStoredRequest(t, uuid.New(), uuid.New())
	require.NoError(t, repo.Save(ctx, req))

	first, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)

	require.NoError(t, first.Accept())
	first.IncrementVersion()
	require.NoError(t, repo.Update(ctx, first))

	// The second copy still carries the old version; its write must lose.
	require.NoError(t, second.Cancel("cambio de planes"))
	second.IncrementVersion()
	err = repo.Update(ctx, second)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))

	stored, err := repo.FindByID(ctx, req.ID())
	require.NoError(t, err)
	assert.Equal(t, requestDomain.StatusAccepted, stored.Status())
	assert.Equal(t, int64(2), stored.Version())
}

func TestMemoryRepository_Update_NotFound(t *testing.T) {
	repo := NewMemoryRequestRepository()
	req := newStoredRequest(t, uuid.New(), uuid.New())
	req.IncrementVersion()

	err := repo.Update(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestMemoryRepository_ListFilterAndPagination(t *testing.T) {
	repo := NewMemoryRequestRepository()
	ctx := context.Background()
	clientID := uuid.New()

	var stored []*requestDomain.ServiceRequest
	for i := 0; i < 5; i++ {
		req := newStoredRequest(t, clientID, uuid.New())
		require.NoError(t, repo.Save(ctx, req))
		stored = append(stored, req)
		time.Sleep(2 * time.Millisecond)
	}
	// An unrelated client's request must not show up.
	require.NoError(t, repo.Save(ctx, newStoredRequest(t, uuid.New(), uuid.New())))

	accepted, err := repo.FindByID(ctx, stored[0].ID())
	require.NoError(t, err)
	require.NoError(t, accepted.Accept())
	accepted.IncrementVersion()
	require.NoError(t, repo.Update(ctx, accepted))

	page1, total, err := repo.FindByClientID(ctx, clientID, requestDomain.ListFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, stored[4].ID(), page1[0].ID())
	assert.Equal(t, stored[3].ID(), page1[1].ID())

	page3, total, err := repo.FindByClientID(ctx, clientID, requestDomain.ListFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page3, 1)
	assert.Equal(t, stored[0].ID(), page3[0].ID())

	empty, total, err := repo.FindByClientID(ctx, clientID, requestDomain.ListFilter{}, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, empty)

	pending, total, err := repo.FindByClientID(ctx, clientID,
		requestDomain.ListFilter{Status: requestDomain.StatusPending}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, pending, 4)
}

func TestMemoryRepository_CountByStatus(t *testing.T) {
	repo := NewMemoryRequestRepository()
	ctx := context.Background()

	first := newStoredRequest(t, uuid.New(), uuid.New())
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, newStoredRequest(t, uuid.New(), uuid.New())))

	loaded, err := repo.FindByID(ctx, first.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.Accept())
	loaded.IncrementVersion()
	require.NoError(t, repo.Update(ctx, loaded))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["pending"])
	assert.Equal(t, int64(1), counts["accepted"])
}
