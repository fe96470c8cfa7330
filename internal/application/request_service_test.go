package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	requestDomain "github.com/stamin-up/service-requests/internal/domain/request"
	"github.com/stamin-up/service-requests/internal/events"
	"github.com/stamin-up/service-requests/internal/repository"
	"github.com/stamin-up/service-requests/pkg/domain"
	"github.com/stamin-up/service-requests/pkg/kafka"
)

// capturingPublisher records every published event for assertions.
type capturingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *capturingPublisher) PublishEvent(_ context.Context, _ string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) byType(eventType string) []kafka.CloudEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []kafka.CloudEvent
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func newTestService() *RequestService {
	return NewRequestService(repository.NewMemoryRequestRepository(), nil, zap.NewNop())
}

func validInput() CreateRequestInput {
	return CreateRequestInput{
		ServiceID:     uuid.New(),
		ProviderID:    uuid.New(),
		PreferredDate: time.Now().Add(48 * time.Hour),
		Address:       "Av. Reforma 222, CDMX",
		ContactPhone:  "+52 55 8765 4321",
		Description:   "Instalación de lámparas en sala y comedor",
		AmountCents:   120000,
	}
}

func createRequest(t *testing.T, svc *RequestService) *RequestDTO {
	t.Helper()
	dto, err := svc.CreateRequest(context.Background(), uuid.New(), validInput())
	require.NoError(t, err)
	return dto
}

func TestCreateRequest_RoundTrip(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	clientID := uuid.New()

	created, err := svc.CreateRequest(ctx, clientID, validInput())
	require.NoError(t, err)

	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, clientID, created.ClientID)
	assert.Equal(t, "MXN", created.Currency)
	require.Len(t, created.History, 1)
	assert.Equal(t, requestDomain.ActionCreated, created.History[0].Action)

	fetched, err := svc.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, created.RequestNumber, fetched.RequestNumber)
	assert.Equal(t, created.Status, fetched.Status)
	assert.Equal(t, created.History, fetched.History)
}

func TestCreateRequest_PastDate(t *testing.T) {
	svc := newTestService()

	input := validInput()
	input.PreferredDate = time.Now().Add(-time.Hour)

	_, err := svc.CreateRequest(context.Background(), uuid.New(), input)
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestAcceptRequest_Idempotence(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	accepted, err := svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", accepted.Status)

	_, err = svc.AcceptRequest(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidState, domain.CodeOf(err))
}

func TestRejectRequest(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	_, err := svc.RejectRequest(ctx, created.ID, "no")
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	rejected, err := svc.RejectRequest(ctx, created.ID, "No tengo disponibilidad")
	require.NoError(t, err)
	assert.Equal(t, "rejected", rejected.Status)
	assert.Equal(t, "No tengo disponibilidad", rejected.RejectionReason)
	assert.Len(t, rejected.History, 2)
}

func TestProposeDate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	newDate := time.Now().Add(96 * time.Hour)
	updated, err := svc.ProposeDate(ctx, created.ID, newDate, "Mejor el sábado")
	require.NoError(t, err)

	assert.Equal(t, "pending", updated.Status)
	assert.WithinDuration(t, newDate, updated.PreferredDate, time.Second)
	require.Len(t, updated.History, 2)
	assert.Equal(t, requestDomain.ActionDateProposed, updated.History[1].Action)
	assert.Equal(t, "Mejor el sábado", updated.History[1].Note)
}

func TestEditRequest_OnlyWhilePending(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	amount := int64(99000)
	edited, err := svc.EditRequest(ctx, created.ID, EditRequestInput{AmountCents: &amount})
	require.NoError(t, err)
	assert.Equal(t, amount, edited.AmountCents)

	_, err = svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.EditRequest(ctx, created.ID, EditRequestInput{AmountCents: &amount})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidState, domain.CodeOf(err))
}

func TestCompleteAndRate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)
	clientID := created.ClientID

	_, err := svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.StartService(ctx, created.ID)
	require.NoError(t, err)

	completed, err := svc.CompleteService(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", completed.Status)
	assert.True(t, completed.CanRate)

	rating, err := svc.RateService(ctx, created.ID, clientID, 5, "Muy profesional")
	require.NoError(t, err)
	assert.Equal(t, 5, rating.Value)

	_, err = svc.RateService(ctx, created.ID, clientID, 3, "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeAlreadyRated, domain.CodeOf(err))

	// Rating persists with its parent.
	fetched, err := svc.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Rating)
	assert.Equal(t, 5, fetched.Rating.Value)
	assert.False(t, fetched.CanRate)
}

func TestRateService_WrongClient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	_, err := svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.StartService(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.CompleteService(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.RateService(ctx, created.ID, uuid.New(), 5, "")
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestFileReport_ActiveReportGuard(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	_, err := svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.StartService(ctx, created.ID)
	require.NoError(t, err)

	reporter := uuid.New()
	report, err := svc.FileReport(ctx, created.ID, reporter, "dangerous_conditions",
		"El lugar presenta condiciones inseguras de trabajo")
	require.NoError(t, err)
	assert.Equal(t, requestDomain.ReportStatusPending, report.Status)

	// Back-to-back second report is blocked.
	_, err = svc.FileReport(ctx, created.ID, reporter, "spam",
		"Solicitud duplicada enviada varias veces")
	require.Error(t, err)
	assert.Equal(t, domain.CodeActiveReportExists, domain.CodeOf(err))

	// After moderation resolves it, reporting opens up again.
	require.NoError(t, svc.ResolveReport(ctx, created.ID, report.ID))

	second, err := svc.FileReport(ctx, created.ID, reporter, "spam",
		"Solicitud duplicada enviada varias veces")
	require.NoError(t, err)
	require.NoError(t, svc.DismissReport(ctx, created.ID, second.ID))

	fetched, err := svc.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, fetched.Reports, 2)
	assert.True(t, fetched.CanReport)
}

func TestFileReport_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	_, err := svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.StartService(ctx, created.ID)
	require.NoError(t, err)

	_, err = svc.FileReport(ctx, created.ID, uuid.New(), "not_a_category",
		"una descripción con longitud suficiente")
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = svc.FileReport(ctx, created.ID, uuid.New(), "spam", "corta")
	require.Error(t, err)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestCloseReport_PublishesClosureEvent(t *testing.T) {
	publisher := &capturingPublisher{}
	svc := NewRequestService(repository.NewMemoryRequestRepository(), publisher, zap.NewNop())
	ctx := context.Background()

	created, err := svc.CreateRequest(ctx, uuid.New(), validInput())
	require.NoError(t, err)
	_, err = svc.AcceptRequest(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.StartService(ctx, created.ID)
	require.NoError(t, err)

	report, err := svc.FileReport(ctx, created.ID, uuid.New(), "no_show",
		"El proveedor no se presentó en la fecha acordada")
	require.NoError(t, err)

	require.NoError(t, svc.ResolveReport(ctx, created.ID, report.ID))

	resolved := publisher.byType(events.RequestReportResolved)
	require.Len(t, resolved, 1)
	var closedEvt events.RequestReportClosedEvent
	require.NoError(t, resolved[0].ParseData(&closedEvt))
	assert.Equal(t, created.ID, closedEvt.RequestID)
	assert.Equal(t, report.ID, closedEvt.ReportID)
	assert.Equal(t, "resolved", closedEvt.Status)

	// Dismissal of a second report publishes its own type.
	second, err := svc.FileReport(ctx, created.ID, uuid.New(), "spam",
		"Solicitud duplicada enviada varias veces")
	require.NoError(t, err)
	require.NoError(t, svc.DismissReport(ctx, created.ID, second.ID))

	dismissed := publisher.byType(events.RequestReportDismissed)
	require.Len(t, dismissed, 1)
	var dismissedEvt events.RequestReportClosedEvent
	require.NoError(t, dismissed[0].ParseData(&dismissedEvt))
	assert.Equal(t, second.ID, dismissedEvt.ReportID)
	assert.Equal(t, "dismissed", dismissedEvt.Status)
}

func TestCancelRequest_TerminalGuard(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	cancelled, err := svc.CancelRequest(ctx, created.ID, created.ClientID, "ya no lo necesito")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)

	_, err = svc.CancelRequest(ctx, created.ID, created.ClientID, "otra vez")
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidState, domain.CodeOf(err))
}

func TestGetRequest_NotFound(t *testing.T) {
	svc := newTestService()

	_, err := svc.GetRequest(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestListRequests_FilterAndOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	providerID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		input := validInput()
		input.ProviderID = providerID
		dto, err := svc.CreateRequest(ctx, uuid.New(), input)
		require.NoError(t, err)
		ids = append(ids, dto.ID)
		time.Sleep(2 * time.Millisecond) // distinct createdAt for ordering
	}

	_, err := svc.AcceptRequest(ctx, ids[1])
	require.NoError(t, err)

	all, err := svc.GetProviderRequests(ctx, providerID, requestDomain.ListFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	// Newest first.
	assert.Equal(t, ids[2], all.Items[0].ID)
	assert.Equal(t, ids[0], all.Items[2].ID)

	pending, err := svc.GetProviderRequests(ctx, providerID,
		requestDomain.ListFilter{Status: requestDomain.StatusPending}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending.Total)
	for _, item := range pending.Items {
		assert.Equal(t, "pending", item.Status)
	}
}

func TestGetRequestStats(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first := createRequest(t, svc)
	createRequest(t, svc)
	_, err := svc.AcceptRequest(ctx, first.ID)
	require.NoError(t, err)

	stats, err := svc.GetRequestStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.ByStatus["pending"])
	assert.Equal(t, int64(1), stats.ByStatus["accepted"])
}

func TestConcurrentAccept_ExactlyOneWins(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created := createRequest(t, svc)

	const writers = 2
	errs := make([]error, writers)
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AcceptRequest(ctx, created.ID)
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		// The loser sees either the state change or the lost version race.
		code := domain.CodeOf(err)
		assert.Contains(t,
			[]domain.ErrorCode{domain.CodeInvalidState, domain.CodeConflict}, code)
	}
	assert.Equal(t, 1, successes)

	fetched, err := svc.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", fetched.Status)
	assert.Len(t, fetched.History, 2)
}
