package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/ingest"
	"github.com/pulsewatch/pulsewatch/internal/store"
)

// NewRouter builds the ping-ingestion HTTP surface.
func NewRouter(cfg *config.Config, st store.Store, ing *ingest.Ingestor, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
	}))
	r.Use(SecurityHeadersMiddleware)

	limiter := NewRateLimiter(10, 30)
	limiter.CleanupOldLimiters()
	r.Use(RateLimitMiddleware(limiter))

	h := &pingHandler{cfg: cfg, store: st, ingestor: ing, log: log}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	for _, method := range []func(string, http.HandlerFunc){r.Get, r.Post, r.Head} {
		method("/ping/{code}", h.success)
		method("/ping/{code}/start", h.start)
		method("/ping/{code}/fail", h.fail)
		method("/ping/{code}/{exitstatus:[0-9]+}", h.exitStatus)
	}

	return r
}
