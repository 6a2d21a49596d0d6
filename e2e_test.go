package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-travel-book/internal/api/chat"
	"github.com/FACorreiaa/go-travel-book/internal/api/geocoding"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/router"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

// fakeTripService simulates the pipeline surface: trips advance from pending
// to preview_ready when polled, and to rendering when confirmed.
type fakeTripService struct {
	mu    sync.Mutex
	trips map[uuid.UUID]*types.TripResponse
}

func newFakeTripService() *fakeTripService {
	return &fakeTripService{trips: make(map[uuid.UUID]*types.TripResponse)}
}

func (f *fakeTripService) CreateTrip(_ context.Context, req types.TripCreateRequest) (*types.TripCreateResponse, error) {
	if err := trip.ValidateTripInput(req); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.trips[id] = &types.TripResponse{ID: id, Title: req.Title, Status: types.TripStatusPending}
	return &types.TripCreateResponse{ID: id, Status: types.TripStatusPending}, nil
}

func (f *fakeTripService) GetTrip(_ context.Context, id uuid.UUID) (*types.TripResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	// Each poll moves the background work forward one visible step.
	if t.Status == types.TripStatusPending {
		t.Status = types.TripStatusPreviewReady
	}
	return t, nil
}

func (f *fakeTripService) ConfirmTrip(_ context.Context, id uuid.UUID) (*types.TripCreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return nil, trip.ErrNotFound
	}
	if t.Status != types.TripStatusPreviewReady {
		return nil, fmt.Errorf("%w: status is %q", trip.ErrNotReady, t.Status)
	}
	t.Status = types.TripStatusRendering
	return &types.TripCreateResponse{ID: id, Status: types.TripStatusRendering}, nil
}

func (f *fakeTripService) GetDocumentPath(_ context.Context, id uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trips[id]
	if !ok {
		return "", trip.ErrNotFound
	}
	if t.Status != types.TripStatusComplete {
		return "", fmt.Errorf("%w: document not generated yet", trip.ErrNotReady)
	}
	return "testdata/book.pdf", nil
}

type fakeChatService struct {
	mu       sync.Mutex
	sessions map[uuid.UUID][]types.ConversationMessage
}

func newFakeChatService() *fakeChatService {
	return &fakeChatService{sessions: make(map[uuid.UUID][]types.ConversationMessage)}
}

func (f *fakeChatService) SendMessage(_ context.Context, req types.ChatMessageRequest) (*types.ChatMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	if req.SessionID != nil {
		if _, ok := f.sessions[*req.SessionID]; !ok {
			return nil, chat.ErrSessionNotFound
		}
		id = *req.SessionID
	}
	f.sessions[id] = append(f.sessions[id],
		types.ConversationMessage{Role: types.RoleUser, Content: req.Message},
		types.ConversationMessage{Role: types.RoleAssistant, Content: "Sounds like a great trip."})
	return &types.ChatMessageResponse{SessionID: id, Reply: "Sounds like a great trip."}, nil
}

func (f *fakeChatService) Finalize(_ context.Context, sessionID uuid.UUID) (*types.FinalizeResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[sessionID]; !ok {
		return nil, chat.ErrSessionNotFound
	}
	return &types.FinalizeResponse{TripID: uuid.New(), Title: "Planned Trip", Status: types.TripStatusPending}, nil
}

func (f *fakeChatService) GetSession(_ context.Context, sessionID uuid.UUID) (*types.ChatSessionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs, ok := f.sessions[sessionID]
	if !ok {
		return nil, chat.ErrSessionNotFound
	}
	return &types.ChatSessionResponse{SessionID: sessionID, Messages: msgs}, nil
}

type fakeGeocodingService struct{}

func (fakeGeocodingService) Resolve(context.Context, string, string, string) (*types.GeocodedLocation, error) {
	return nil, nil
}

func (fakeGeocodingService) ResolveLodging(context.Context, string, string, string) (*types.GeocodedLocation, error) {
	return nil, nil
}

func (fakeGeocodingService) Preview(_ context.Context, query string, _ int) ([]types.SearchCandidate, error) {
	return []types.SearchCandidate{{Label: query, Latitude: 48.85, Longitude: 2.35, Relevance: 0.9}}, nil
}

// E2ETestSuite exercises the complete API workflow over a live test server.
type E2ETestSuite struct {
	suite.Suite
	server *httptest.Server
	client *http.Client
}

func (s *E2ETestSuite) SetupSuite() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	routes := router.SetupRouter(&router.Config{
		TripHandler:      trip.NewHandlerImpl(newFakeTripService(), logger),
		ChatHandler:      chat.NewHandlerImpl(newFakeChatService(), logger),
		GeocodingHandler: geocoding.NewHandlerImpl(fakeGeocodingService{}, logger),
	})
	s.server = httptest.NewServer(routes)
	s.client = s.server.Client()
}

func (s *E2ETestSuite) TearDownSuite() {
	s.server.Close()
}

func (s *E2ETestSuite) postJSON(path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	require.NoError(s.T(), err)
	resp, err := s.client.Post(s.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(s.T(), err)
	return resp
}

func (s *E2ETestSuite) getJSON(path string, dst any) *http.Response {
	resp, err := s.client.Get(s.server.URL + path)
	require.NoError(s.T(), err)
	if dst != nil {
		defer resp.Body.Close()
		require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp
}

func (s *E2ETestSuite) TestTripLifecycle() {
	resp := s.postJSON("/api/v1/trips", types.TripCreateRequest{
		Title: "Lisbon Getaway",
		Days: []types.DayInput{
			{DayNumber: 1, Places: []types.PlaceInput{
				{Name: "Castelo de S. Jorge", Category: types.CategoryAttraction},
			}},
		},
	})
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	var created types.TripCreateResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	s.Equal(types.TripStatusPending, created.Status)

	// Confirm is rejected until the preview is ready.
	resp = s.postJSON(fmt.Sprintf("/api/v1/trips/%s/confirm", created.ID), nil)
	resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)

	var fetched types.TripResponse
	resp = s.getJSON(fmt.Sprintf("/api/v1/trips/%s", created.ID), &fetched)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(types.TripStatusPreviewReady, fetched.Status)

	resp = s.postJSON(fmt.Sprintf("/api/v1/trips/%s/confirm", created.ID), nil)
	resp.Body.Close()
	s.Equal(http.StatusAccepted, resp.StatusCode)

	// Download is gated until the document exists.
	resp = s.getJSON(fmt.Sprintf("/api/v1/trips/%s/download", created.ID), nil)
	resp.Body.Close()
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *E2ETestSuite) TestTripValidationAndNotFound() {
	resp := s.postJSON("/api/v1/trips", types.TripCreateRequest{Title: ""})
	resp.Body.Close()
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)

	resp = s.getJSON(fmt.Sprintf("/api/v1/trips/%s", uuid.New()), nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp = s.getJSON("/api/v1/trips/not-a-uuid", nil)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *E2ETestSuite) TestChatWorkflow() {
	resp := s.postJSON("/api/v1/chat", types.ChatMessageRequest{Message: "Three days in Lisbon please"})
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var reply types.ChatMessageResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&reply))
	resp.Body.Close()
	s.NotEmpty(reply.Reply)

	var history types.ChatSessionResponse
	resp = s.getJSON(fmt.Sprintf("/api/v1/chat/%s", reply.SessionID), &history)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Len(history.Messages, 2)

	resp = s.postJSON(fmt.Sprintf("/api/v1/chat/%s/finalize", reply.SessionID), nil)
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)
	var finalized types.FinalizeResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&finalized))
	resp.Body.Close()
	s.Equal(types.TripStatusPending, finalized.Status)

	resp = s.postJSON(fmt.Sprintf("/api/v1/chat/%s/finalize", uuid.New()), nil)
	resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *E2ETestSuite) TestGeocodePreview() {
	var preview types.GeocodePreviewResponse
	resp := s.getJSON("/api/v1/geocode/preview?q=Alfama", &preview)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, preview.Total)

	resp = s.getJSON("/api/v1/geocode/preview", nil)
	resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *E2ETestSuite) TestHealth() {
	resp := s.getJSON("/health", nil)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestE2ETestSuite(t *testing.T) {
	suite.Run(t, new(E2ETestSuite))
}
