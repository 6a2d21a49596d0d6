package chat

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-travel-book/app/observability/metrics"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

func TestMain(m *testing.M) {
	metrics.InitAppMetrics()
	os.Exit(m.Run())
}

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) CreateSession(ctx context.Context) (*types.ChatSession, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*types.ChatSession)
	return session, args.Error(1)
}

func (m *MockChatRepository) GetSession(ctx context.Context, id uuid.UUID) (*types.ChatSession, error) {
	args := m.Called(ctx, id)
	session, _ := args.Get(0).(*types.ChatSession)
	return session, args.Error(1)
}

func (m *MockChatRepository) UpdateMessages(ctx context.Context, id uuid.UUID, messages []types.ConversationMessage) error {
	return m.Called(ctx, id, messages).Error(0)
}

func (m *MockChatRepository) LinkTrip(ctx context.Context, sessionID, tripID uuid.UUID) error {
	return m.Called(ctx, sessionID, tripID).Error(0)
}

type MockTripRepository struct {
	mock.Mock
}

func (m *MockTripRepository) CreateTrip(ctx context.Context, req types.TripCreateRequest) (*types.Trip, error) {
	args := m.Called(ctx, req)
	t, _ := args.Get(0).(*types.Trip)
	return t, args.Error(1)
}

func (m *MockTripRepository) GetTrip(ctx context.Context, id uuid.UUID) (*types.Trip, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(*types.Trip)
	return t, args.Error(1)
}

func (m *MockTripRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status types.TripStatus, errorMessage *string) error {
	return m.Called(ctx, id, status, errorMessage).Error(0)
}

func (m *MockTripRepository) UpdatePlaceCoordinates(ctx context.Context, placeID int64, lat, lon float64) error {
	return m.Called(ctx, placeID, lat, lon).Error(0)
}

func (m *MockTripRepository) GetEnrichedData(ctx context.Context, id uuid.UUID) (*types.EnrichedData, error) {
	args := m.Called(ctx, id)
	data, _ := args.Get(0).(*types.EnrichedData)
	return data, args.Error(1)
}

func (m *MockTripRepository) MergeEnrichedData(ctx context.Context, id uuid.UUID, patch types.EnrichedData) error {
	return m.Called(ctx, id, patch).Error(0)
}

func (m *MockTripRepository) SetDocumentPath(ctx context.Context, id uuid.UUID, path string) error {
	return m.Called(ctx, id, path).Error(0)
}

func (m *MockTripRepository) ResetTrip(ctx context.Context, id uuid.UUID, req types.TripCreateRequest) error {
	return m.Called(ctx, id, req).Error(0)
}

type MockAIProvider struct {
	mock.Mock
}

func (m *MockAIProvider) GenerateResponse(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	args := m.Called(ctx, prompt, config)
	return args.String(0), args.Error(1)
}

func (m *MockAIProvider) GenerateJSON(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	args := m.Called(ctx, prompt, config)
	return args.String(0), args.Error(1)
}

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Start(tripID uuid.UUID)    { m.Called(tripID) }
func (m *MockPipeline) Finalize(tripID uuid.UUID) { m.Called(tripID) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *MockChatRepository, trips *MockTripRepository, ai *MockAIProvider, pipeline *MockPipeline) *ServiceImpl {
	return NewServiceImpl(repo, trips, ai, pipeline, testLogger())
}

const extractedItinerary = `{
	"title": "Tokyo in Three Days",
	"start_date": "2026-10-01",
	"end_date": "2026-10-03",
	"days": [
		{
			"day_number": 1,
			"start_location": "Hotel Gracery Shinjuku",
			"end_location": "Hotel Gracery Shinjuku",
			"places": [
				{"name": "Senso-ji", "category": "attraction", "city": "Tokyo", "country": "Japan"},
				{"name": "Ichiran Shibuya", "category": "dining", "city": "Tokyo", "country": "Japan"}
			]
		}
	]
}`

func TestSendMessage_NewSession(t *testing.T) {
	repo := new(MockChatRepository)
	ai := new(MockAIProvider)
	svc := newTestService(repo, new(MockTripRepository), ai, new(MockPipeline))

	sessionID := uuid.New()
	repo.On("CreateSession", mock.Anything).
		Return(&types.ChatSession{ID: sessionID, Messages: []types.ConversationMessage{}}, nil).Once()
	ai.On("GenerateResponse", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return len(prompt) > 0
	}), mock.Anything).Return("Tokyo is a great pick! How many days do you have?", nil).Once()
	repo.On("UpdateMessages", mock.Anything, sessionID, mock.MatchedBy(func(msgs []types.ConversationMessage) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == types.RoleUser && msgs[0].Content == "I want to visit Tokyo" &&
			msgs[1].Role == types.RoleAssistant
	})).Return(nil).Once()

	resp, err := svc.SendMessage(context.Background(), types.ChatMessageRequest{Message: "I want to visit Tokyo"})
	require.NoError(t, err)
	assert.Equal(t, sessionID, resp.SessionID)
	assert.Contains(t, resp.Reply, "Tokyo")

	repo.AssertExpectations(t)
	ai.AssertExpectations(t)
}

func TestSendMessage_KeepsHistoryInPrompt(t *testing.T) {
	repo := new(MockChatRepository)
	ai := new(MockAIProvider)
	svc := newTestService(repo, new(MockTripRepository), ai, new(MockPipeline))

	sessionID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).Return(&types.ChatSession{
		ID: sessionID,
		Messages: []types.ConversationMessage{
			{Role: types.RoleUser, Content: "I want to visit Tokyo"},
			{Role: types.RoleAssistant, Content: "How many days?"},
		},
	}, nil).Once()
	ai.On("GenerateResponse", mock.Anything, mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "User: I want to visit Tokyo") &&
			strings.Contains(prompt, "Assistant: How many days?") &&
			strings.Contains(prompt, "User: Three days")
	}), mock.Anything).Return("Perfect, three days it is.", nil).Once()
	repo.On("UpdateMessages", mock.Anything, sessionID, mock.MatchedBy(func(msgs []types.ConversationMessage) bool {
		return len(msgs) == 4
	})).Return(nil).Once()

	_, err := svc.SendMessage(context.Background(), types.ChatMessageRequest{SessionID: &sessionID, Message: "Three days"})
	require.NoError(t, err)
	ai.AssertExpectations(t)
}

func TestSendMessage_UnknownSession(t *testing.T) {
	repo := new(MockChatRepository)
	svc := newTestService(repo, new(MockTripRepository), new(MockAIProvider), new(MockPipeline))

	sessionID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).Return(nil, nil).Once()

	_, err := svc.SendMessage(context.Background(), types.ChatMessageRequest{SessionID: &sessionID, Message: "hello"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSendMessage_EmptyMessage(t *testing.T) {
	svc := newTestService(new(MockChatRepository), new(MockTripRepository), new(MockAIProvider), new(MockPipeline))

	_, err := svc.SendMessage(context.Background(), types.ChatMessageRequest{Message: ""})
	assert.ErrorIs(t, err, trip.ErrValidation)
}

func TestFinalize_CreatesTripAndStartsPipeline(t *testing.T) {
	repo := new(MockChatRepository)
	trips := new(MockTripRepository)
	ai := new(MockAIProvider)
	pipeline := new(MockPipeline)
	svc := newTestService(repo, trips, ai, pipeline)

	sessionID := uuid.New()
	tripID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).Return(&types.ChatSession{
		ID: sessionID,
		Messages: []types.ConversationMessage{
			{Role: types.RoleUser, Content: "Plan me three days in Tokyo"},
		},
	}, nil).Once()
	ai.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
		Return("```json\n"+extractedItinerary+"\n```", nil).Once()
	trips.On("CreateTrip", mock.Anything, mock.MatchedBy(func(req types.TripCreateRequest) bool {
		return req.Title == "Tokyo in Three Days" &&
			len(req.Days) == 1 && len(req.Days[0].Places) == 2 &&
			req.Days[0].Places[0].Category == types.CategoryAttraction
	})).Return(&types.Trip{ID: tripID, Status: types.TripStatusPending}, nil).Once()
	repo.On("LinkTrip", mock.Anything, sessionID, tripID).Return(nil).Once()
	trips.On("MergeEnrichedData", mock.Anything, tripID, mock.MatchedBy(func(patch types.EnrichedData) bool {
		hint, ok := patch.GeocodingHints["1:Senso-ji"]
		return ok && hint.City == "Tokyo" && hint.Country == "Japan"
	})).Return(nil).Once()
	pipeline.On("Start", tripID).Return().Once()

	resp, err := svc.Finalize(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, tripID, resp.TripID)
	assert.Equal(t, "Tokyo in Three Days", resp.Title)
	assert.Equal(t, types.TripStatusPending, resp.Status)

	repo.AssertExpectations(t)
	trips.AssertExpectations(t)
	pipeline.AssertExpectations(t)
}

func TestFinalize_ExistingTripIsReset(t *testing.T) {
	repo := new(MockChatRepository)
	trips := new(MockTripRepository)
	ai := new(MockAIProvider)
	pipeline := new(MockPipeline)
	svc := newTestService(repo, trips, ai, pipeline)

	sessionID := uuid.New()
	tripID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).Return(&types.ChatSession{
		ID:     sessionID,
		TripID: &tripID,
		Messages: []types.ConversationMessage{
			{Role: types.RoleUser, Content: "Actually, swap day one for Asakusa"},
		},
	}, nil).Once()
	ai.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
		Return(extractedItinerary, nil).Once()
	trips.On("ResetTrip", mock.Anything, tripID, mock.Anything).Return(nil).Once()
	trips.On("MergeEnrichedData", mock.Anything, tripID, mock.Anything).Return(nil).Once()
	pipeline.On("Start", tripID).Return().Once()

	resp, err := svc.Finalize(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, tripID, resp.TripID)

	trips.AssertNotCalled(t, "CreateTrip", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "LinkTrip", mock.Anything, mock.Anything, mock.Anything)
	trips.AssertExpectations(t)
	pipeline.AssertExpectations(t)
}

func TestFinalize_MalformedExtraction(t *testing.T) {
	repo := new(MockChatRepository)
	trips := new(MockTripRepository)
	ai := new(MockAIProvider)
	svc := newTestService(repo, trips, ai, new(MockPipeline))

	sessionID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).Return(&types.ChatSession{
		ID:       sessionID,
		Messages: []types.ConversationMessage{{Role: types.RoleUser, Content: "hi"}},
	}, nil).Once()
	ai.On("GenerateJSON", mock.Anything, mock.Anything, mock.Anything).
		Return("this is not json", nil).Once()

	_, err := svc.Finalize(context.Background(), sessionID)
	assert.ErrorIs(t, err, trip.ErrValidation)
	trips.AssertNotCalled(t, "CreateTrip", mock.Anything, mock.Anything)
}

func TestFinalize_EmptySession(t *testing.T) {
	repo := new(MockChatRepository)
	svc := newTestService(repo, new(MockTripRepository), new(MockAIProvider), new(MockPipeline))

	sessionID := uuid.New()
	repo.On("GetSession", mock.Anything, sessionID).
		Return(&types.ChatSession{ID: sessionID}, nil).Once()

	_, err := svc.Finalize(context.Background(), sessionID)
	assert.ErrorIs(t, err, trip.ErrValidation)
}

func TestFinalize_UnknownSession(t *testing.T) {
	repo := new(MockChatRepository)
	svc := newTestService(repo, new(MockTripRepository), new(MockAIProvider), new(MockPipeline))

	repo.On("GetSession", mock.Anything, mock.Anything).Return(nil, nil).Once()

	_, err := svc.Finalize(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
