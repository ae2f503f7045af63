package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/tillpoint/api/internal/handler"
	"github.com/tillpoint/api/internal/logging"
	"github.com/tillpoint/api/internal/middleware"
	"github.com/tillpoint/api/internal/ws"
)

type Config struct {
	JWTSecret    string
	OrderHandler *handler.OrderHandler
	AuthHandler  *handler.AuthHandler
	Hub          *ws.Hub
}

func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(logging.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	r.Post("/auth/login", cfg.AuthHandler.Login)

	// Token travels in the query string: browsers cannot set headers on
	// websocket dials.
	r.Get("/kds/stream", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(cfg.Hub, cfg.JWTSecret, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.JWTSecret))
		r.Use(middleware.RequireTenant)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", cfg.OrderHandler.Create)
			r.Get("/", cfg.OrderHandler.List)
			r.Get("/last-completed", cfg.OrderHandler.LastCompleted)

			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", cfg.OrderHandler.Get)
				r.Delete("/", cfg.OrderHandler.Delete)
				r.Post("/lines", cfg.OrderHandler.AddLine)
				r.Post("/transition", cfg.OrderHandler.Transition)
				r.Post("/pay", cfg.OrderHandler.Pay)
				r.Post("/void", cfg.OrderHandler.Void)
				r.Post("/park", cfg.OrderHandler.Park)
				r.Post("/cancel", cfg.OrderHandler.Cancel)
			})
		})
	})

	return r
}
