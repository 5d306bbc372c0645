package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/tuttifrutti/internal/room"
)

func addRoutes(r chi.Router, opts Options, logger *slog.Logger, engine *room.Engine, broker *Broker) {
	auth := newAuthenticator(opts.JWTSecret)
	limits := wsLimits{rate: opts.RateLimit, burst: opts.RateBurst}

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Tutti Frutti API", "/openapi.json", "/docs"))

	r.With(identityMiddleware(auth)).Get("/ws", handleWS(engine, broker, limits, logger))

	r.Route("/api/rooms/{code}", func(r chi.Router) {
		r.Get("/", handleRoomSnapshot(engine))
		r.Get("/qr", handleRoomQR(engine, opts.PublicURL))
	})
}
