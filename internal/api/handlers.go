package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/easelhq/easel/internal/relay"
)

type API struct {
	hub *relay.Hub
}

func New(hub *relay.Hub) *API {
	return &API{hub: hub}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

type roomResponse struct {
	ID          string `json:"id"`
	ActiveUsers int    `json:"active_users"`
}

// RoomsHandler lists the rooms with live clients. The relay holds no
// durable state; snapshot persistence happens client-side.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	active := a.hub.GetActiveRooms()
	rooms := make([]roomResponse, 0, len(active))
	for roomID, users := range active {
		rooms = append(rooms, roomResponse{ID: roomID, ActiveUsers: users})
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms": rooms,
	})
}
