package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/go-travel-book/internal/api/chat"
	"github.com/FACorreiaa/go-travel-book/internal/api/geocoding"
	"github.com/FACorreiaa/go-travel-book/internal/api/trip"
	"github.com/FACorreiaa/go-travel-book/internal/router"
	"github.com/FACorreiaa/go-travel-book/internal/types"
)

func benchmarkRouter() chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return router.SetupRouter(&router.Config{
		TripHandler:      trip.NewHandlerImpl(newFakeTripService(), logger),
		ChatHandler:      chat.NewHandlerImpl(newFakeChatService(), logger),
		GeocodingHandler: geocoding.NewHandlerImpl(fakeGeocodingService{}, logger),
	})
}

func benchmarkTripBody(b *testing.B) []byte {
	body, err := json.Marshal(types.TripCreateRequest{
		Title: "Benchmark Trip",
		Days: []types.DayInput{
			{DayNumber: 1, Places: []types.PlaceInput{
				{Name: "Eiffel Tower", Category: types.CategoryAttraction},
				{Name: "Le Comptoir", Category: types.CategoryDining},
			}},
		},
	})
	if err != nil {
		b.Fatal(err)
	}
	return body
}

func BenchmarkCreateTrip(b *testing.B) {
	r := benchmarkRouter()
	body := benchmarkTripBody(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trips", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusAccepted {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

func BenchmarkGetTrip(b *testing.B) {
	r := benchmarkRouter()
	body := benchmarkTripBody(b)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trips", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var created types.TripCreateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		b.Fatal(err)
	}
	path := fmt.Sprintf("/api/v1/trips/%s", created.ID)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}

func BenchmarkGeocodePreview(b *testing.B) {
	r := benchmarkRouter()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/geocode/preview?q=Alfama", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			b.Fatalf("unexpected status %d", w.Code)
		}
	}
}
