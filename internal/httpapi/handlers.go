package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partyroom-backend/internal/engine"
	"github.com/DoyleJ11/partyroom-backend/internal/hub"
	"github.com/DoyleJ11/partyroom-backend/internal/session"
	"github.com/DoyleJ11/partyroom-backend/internal/ws"
)

const qrSize = 320

type healthResponse struct {
	Status      string         `json:"status"`
	Rooms       int            `json:"rooms"`
	Connections ws.Connections `json:"connections"`
}

type roomResponse struct {
	Room         engine.Snapshot   `json:"room"`
	Leaderboard  []engine.Standing `json:"leaderboard"`
	Clients      int               `json:"clients"`
	CountingDown bool              `json:"countingDown"`
}

func Healthz(h *hub.Hub, tracker *ws.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.Stats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "ok",
			Rooms:       stats.Rooms,
			Connections: tracker.Snapshot(),
		})
	}
}

func RoomSnapshot(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, h, log)
		if !ok {
			return
		}
		view, err := room.State(r.Context())
		if errors.Is(err, session.ErrClosed) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": hub.ErrRoomNotFound.Error()})
			return
		}
		if err != nil {
			log.Warn("room state", zap.String("room", room.Code()), zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "room unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, roomResponse{
			Room:         view.Room,
			Leaderboard:  view.Leaderboard,
			Clients:      view.NumClients,
			CountingDown: view.TimerArmed,
		})
	}
}

// RoomQR renders the player join link for a room as a PNG. Without a
// configured base URL the link is derived from the request.
func RoomQR(h *hub.Hub, baseURL string, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := lookupRoom(w, r, h, log)
		if !ok {
			return
		}

		base := baseURL
		if base == "" {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				scheme = proto
			}
			base = scheme + "://" + r.Host
		}
		link := base + "/?room=" + url.QueryEscape(room.Code())

		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			log.Error("qr generation failed", zap.String("room", room.Code()), zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}

func lookupRoom(w http.ResponseWriter, r *http.Request, h *hub.Hub, log *zap.Logger) (*session.Coordinator, bool) {
	room, err := h.Room(r.Context(), chi.URLParam(r, "code"))
	switch {
	case err == nil:
		return room, true
	case errors.Is(err, hub.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		log.Warn("room lookup", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "registry unavailable"})
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
