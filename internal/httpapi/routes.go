package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/partyroom-backend/internal/hub"
	"github.com/DoyleJ11/partyroom-backend/internal/ws"
)

type Deps struct {
	Hub         *hub.Hub
	WS          ws.Options
	JoinBaseURL string
	Logger      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.WS.Tracker == nil {
		d.WS.Tracker = ws.NewTracker()
	}
	if d.WS.Logger == nil {
		d.WS.Logger = d.Logger
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz(d.Hub, d.WS.Tracker))
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	r.Route("/rooms/{code}", func(r chi.Router) {
		r.Get("/", RoomSnapshot(d.Hub, d.Logger))
		r.Get("/qr.png", RoomQR(d.Hub, d.JoinBaseURL, d.Logger))
	})
	return r
}
