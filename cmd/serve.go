package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/cache"
	"github.com/sells-group/lead-consensus/internal/model"
)

const (
	maxRequestBytes = 10 << 20
	maxRequestLeads = 1000
)

var servePort int

// batchRunner runs one batch of leads.
type batchRunner interface {
	Run(ctx context.Context, leads []model.Lead) *model.BatchResult
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP enrichment server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "serve", lookupEnv)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(ctx, env.Pipeline, env.Cache),
			ReadHeaderTimeout: 15 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the HTTP routes. Batches run under ctx so a shutdown
// cancels in-flight work.
func buildRouter(ctx context.Context, runner batchRunner, tracked *cache.Tracked) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/enrich", func(w http.ResponseWriter, req *http.Request) {
			var leads []model.Lead
			dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxRequestBytes))
			if err := dec.Decode(&leads); err != nil {
				writeError(w, http.StatusBadRequest, "request body must be a JSON array of leads")
				return
			}
			switch {
			case len(leads) == 0:
				writeError(w, http.StatusBadRequest, "at least one lead is required")
				return
			case len(leads) > maxRequestLeads:
				writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d leads per request", maxRequestLeads))
				return
			}

			// The batch outlives a dropped client but not a server shutdown.
			runCtx, cancel := context.WithCancel(context.WithoutCancel(req.Context()))
			defer cancel()
			stopOnShutdown := context.AfterFunc(ctx, cancel)
			defer stopOnShutdown()

			result := runner.Run(runCtx, leads)
			zap.L().Info("enrich request complete",
				zap.String("batch_id", result.ID),
				zap.String("request_id", middleware.GetReqID(req.Context())),
				zap.Int("total", result.Stats.Total),
				zap.Int("failed", result.Stats.Failed),
			)
			writeJSON(w, http.StatusOK, result)
		})

		r.Get("/cache/stats", func(w http.ResponseWriter, req *http.Request) {
			stats, err := tracked.Backend().Stats(req.Context())
			if err != nil {
				zap.L().Warn("cache stats failed", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "cache unavailable")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"counters": tracked.Counters(),
				"store":    stats,
			})
		})
	})

	return r
}

// loggingMiddleware logs each request with zap.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
