package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ReadinessCheck probes one dependency; the name appears in the /readyz body.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Router assembles the full HTTP surface.
func Router(h *Handlers, log zerolog.Logger, checks ...ReadinessCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(log))
	r.Use(RequestID())
	r.Use(CORS())
	r.Use(Metrics())

	r.Get("/healthz", liveness)
	r.Get("/readyz", readiness(checks))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", h.HandleResolve)
		r.Get("/scrape", h.HandleScrape)
		r.Get("/assessment", h.HandleAssessment)
		r.Get("/assessment/trend", h.HandleTrend)
		r.Get("/assessment/compare", h.HandleCompare)
	})
	return r
}

func liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func readiness(checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		out := map[string]string{}
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				status = http.StatusServiceUnavailable
				out[c.Name] = err.Error()
				continue
			}
			out[c.Name] = "ok"
		}
		writeJSON(w, status, out)
	}
}

// Run serves handler on addr until ctx is done, then drains in-flight
// requests.
func Run(ctx context.Context, addr string, handler http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
