package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easelhq/easel/internal/relay"
)

func TestHealthHandler(t *testing.T) {
	api := New(relay.NewHub())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.HealthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}

func TestStatsHandlerEmptyHub(t *testing.T) {
	api := New(relay.NewHub())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	api.StatsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["active_rooms"] != float64(0) {
		t.Errorf("Expected 0 active rooms, got %v", body["active_rooms"])
	}
	if body["active_clients"] != float64(0) {
		t.Errorf("Expected 0 active clients, got %v", body["active_clients"])
	}
}

func TestRoomsHandlerMethodNotAllowed(t *testing.T) {
	api := New(relay.NewHub())

	req := httptest.NewRequest(http.MethodPost, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	api.RoomsHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestRoomsHandlerEmpty(t *testing.T) {
	api := New(relay.NewHub())

	req := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	rec := httptest.NewRecorder()
	api.RoomsHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Rooms []struct {
			ID          string `json:"id"`
			ActiveUsers int    `json:"active_users"`
		} `json:"rooms"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(body.Rooms) != 0 {
		t.Errorf("Expected no rooms, got %d", len(body.Rooms))
	}
}
