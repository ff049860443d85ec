package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds everything the HTTP API serves
type RouterConfig struct {
	Stock     *StockHandler
	Admin     *AdminHandler
	Stream    *StreamHub
	JWTSecret string
	AdminIDs  []int64
}

// NewRouter creates the HTTP router
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived connection, no request timeout
		if cfg.Stream != nil {
			r.Get("/stock/stream", cfg.Stream.ServeWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			if cfg.Stock != nil {
				r.Get("/stock", cfg.Stock.GetLatest)
			}

			if cfg.Admin != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(AdminAuth(cfg.JWTSecret, cfg.AdminIDs))
					r.Get("/stats", cfg.Admin.GetStats)
					r.Post("/broadcast", cfg.Admin.Broadcast)
				})
			}
		})
	})

	return r
}
