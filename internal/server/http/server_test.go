package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
	"github.com/hgj2025/cityinfo-sub001/internal/review"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal"
	"github.com/hgj2025/cityinfo-sub001/internal/temporal/workflows"
)

// testFixture bundles a server wired to mock dependencies for handler tests.
type testFixture struct {
	server         *Server
	tasks          *mockTaskRepository
	reviews        *mockReviewRepository
	places         *mockPlaceRepository
	workflowClient *mockWorkflowClient
	txRunner       *fakeTxRunner
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		tasks:          &mockTaskRepository{},
		reviews:        &mockReviewRepository{},
		places:         &mockPlaceRepository{},
		workflowClient: &mockWorkflowClient{},
		txRunner:       &fakeTxRunner{},
	}

	reviewService := review.NewService(f.txRunner, f.reviews, nil, zerolog.Nop(), nil)

	f.server = NewServer(
		Config{Address: "127.0.0.1:0", ShutdownTimeout: time.Second},
		f.workflowClient,
		workflows.CollectionWorkflow,
		f.tasks,
		reviewService,
		f.places,
		nil,
		zerolog.Nop(),
		nil,
	)
	return f
}

// do runs one request through the full router, middleware included.
func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

// --- workflow client double ---

type mockWorkflowClient struct {
	workflowID string
	runID      string
	startErr   error
	healthErr  error

	startedReqs []temporal.CollectionWorkflowRequest
}

func (m *mockWorkflowClient) StartCollectionWorkflow(_ context.Context, req temporal.CollectionWorkflowRequest, _ interface{}, _ interface{}) (string, string, error) {
	if m.startErr != nil {
		return "", "", m.startErr
	}
	m.startedReqs = append(m.startedReqs, req)
	return m.workflowID, m.runID, nil
}

func (m *mockWorkflowClient) QueryWorkflowProgress(context.Context, string, string) (int, error) {
	return 0, nil
}

func (m *mockWorkflowClient) Health(context.Context) error {
	return m.healthErr
}

// --- transaction runner double ---

// fakeTxRunner short-circuits the transaction with a canned error. Decision
// paths that need a live pgx.Tx are covered by the repository integration
// tests; handler tests only exercise the error mapping.
type fakeTxRunner struct {
	err    error
	called bool
}

func (f *fakeTxRunner) WithTransaction(_ context.Context, fn func(tx pgx.Tx) error) error {
	f.called = true
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// --- task repository mock ---

type mockTaskRepository struct {
	mock.Mock
}

func (m *mockTaskRepository) Create(ctx context.Context, task *domain.CollectionTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskRepository) Get(ctx context.Context, id uuid.UUID) (*domain.CollectionTask, error) {
	args := m.Called(ctx, id)
	if task := args.Get(0); task != nil {
		return task.(*domain.CollectionTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.CollectionTask, error) {
	args := m.Called(ctx, workflowID)
	if task := args.Get(0); task != nil {
		return task.(*domain.CollectionTask), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskRepository) Update(ctx context.Context, id uuid.UUID, fn func(*domain.CollectionTask) error) error {
	args := m.Called(ctx, id, fn)
	return args.Error(0)
}

func (m *mockTaskRepository) AppendStep(ctx context.Context, id uuid.UUID, entry domain.StepEntry) error {
	args := m.Called(ctx, id, entry)
	return args.Error(0)
}

func (m *mockTaskRepository) RecordAPICalls(ctx context.Context, id uuid.UUID, calls []domain.APICallRecord) error {
	args := m.Called(ctx, id, calls)
	return args.Error(0)
}

func (m *mockTaskRepository) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	args := m.Called(ctx, id, progress)
	return args.Error(0)
}

func (m *mockTaskRepository) SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error {
	args := m.Called(ctx, id, workflowID, runID)
	return args.Error(0)
}

func (m *mockTaskRepository) SetResponsePayload(ctx context.Context, id uuid.UUID, payload map[string]interface{}) error {
	args := m.Called(ctx, id, payload)
	return args.Error(0)
}

func (m *mockTaskRepository) Complete(ctx context.Context, id uuid.UUID, stats domain.TaskStats, parseError string) error {
	args := m.Called(ctx, id, stats, parseError)
	return args.Error(0)
}

func (m *mockTaskRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *mockTaskRepository) List(ctx context.Context, filter repository.TaskFilter) ([]*domain.CollectionTask, int64, error) {
	args := m.Called(ctx, filter)
	if tasks := args.Get(0); tasks != nil {
		return tasks.([]*domain.CollectionTask), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

// --- review repository mock ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, item *domain.ReviewItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockReviewRepository) CreateBatch(ctx context.Context, items []*domain.ReviewItem) error {
	args := m.Called(ctx, items)
	return args.Error(0)
}

func (m *mockReviewRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ReviewItem, error) {
	args := m.Called(ctx, id)
	if item := args.Get(0); item != nil {
		return item.(*domain.ReviewItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewRepository) List(ctx context.Context, filter repository.ItemFilter) ([]*domain.ReviewItem, int64, error) {
	args := m.Called(ctx, filter)
	if items := args.Get(0); items != nil {
		return items.([]*domain.ReviewItem), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockReviewRepository) Decide(ctx context.Context, id uuid.UUID, decision domain.ReviewDecision) (*domain.ReviewItem, error) {
	args := m.Called(ctx, id, decision)
	if item := args.Get(0); item != nil {
		return item.(*domain.ReviewItem), args.Error(1)
	}
	return nil, args.Error(1)
}

// --- place repository mock ---

type mockPlaceRepository struct {
	mock.Mock
}

func (m *mockPlaceRepository) GetOrCreateCity(ctx context.Context, name string) (*domain.City, error) {
	args := m.Called(ctx, name)
	if city := args.Get(0); city != nil {
		return city.(*domain.City), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlaceRepository) GetCity(ctx context.Context, id uuid.UUID) (*domain.City, error) {
	args := m.Called(ctx, id)
	if city := args.Get(0); city != nil {
		return city.(*domain.City), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlaceRepository) ListCities(ctx context.Context, limit, offset int) ([]*domain.City, int64, error) {
	args := m.Called(ctx, limit, offset)
	if cities := args.Get(0); cities != nil {
		return cities.([]*domain.City), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockPlaceRepository) CreateAttraction(ctx context.Context, a *domain.Attraction) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *mockPlaceRepository) CreateRestaurant(ctx context.Context, rest *domain.Restaurant) error {
	args := m.Called(ctx, rest)
	return args.Error(0)
}

func (m *mockPlaceRepository) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	args := m.Called(ctx, h)
	return args.Error(0)
}

func (m *mockPlaceRepository) ListAttractions(ctx context.Context, cityID uuid.UUID) ([]*domain.Attraction, error) {
	args := m.Called(ctx, cityID)
	if list := args.Get(0); list != nil {
		return list.([]*domain.Attraction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlaceRepository) ListRestaurants(ctx context.Context, cityID uuid.UUID) ([]*domain.Restaurant, error) {
	args := m.Called(ctx, cityID)
	if list := args.Get(0); list != nil {
		return list.([]*domain.Restaurant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlaceRepository) ListHotels(ctx context.Context, cityID uuid.UUID) ([]*domain.Hotel, error) {
	args := m.Called(ctx, cityID)
	if list := args.Get(0); list != nil {
		return list.([]*domain.Hotel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPlaceRepository) UpsertCityOverview(ctx context.Context, o *domain.CityOverview) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockPlaceRepository) GetCityOverview(ctx context.Context, cityID uuid.UUID) (*domain.CityOverview, error) {
	args := m.Called(ctx, cityID)
	if o := args.Get(0); o != nil {
		return o.(*domain.CityOverview), args.Error(1)
	}
	return nil, args.Error(1)
}
