package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve extraction, records and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, false, true)
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
			Handler:           newServeHandler(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newServeHandler builds the HTTP API over an initialized environment.
func newServeHandler(env *extractEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		snap := env.Metrics.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"extraction": snap,
			"cache":      env.Gateway.CacheStats(),
			"breakers":   breakerStateStrings(env),
		})
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		filter := store.RecordFilter{
			Outcome: req.URL.Query().Get("outcome"),
			Profile: req.URL.Query().Get("profile"),
		}
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
				return
			}
			filter.Limit = n
		}
		if v := req.URL.Query().Get("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
				return
			}
			filter.Offset = n
		}

		recs, err := env.Store.ListRecords(req.Context(), filter)
		if err != nil {
			zap.L().Error("list records failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list records failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs, "count": len(recs)})
	})

	r.Post("/extract", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			DocumentID string `json:"document_id"`
			VendorHint string `json:"vendor_hint"`
			Text       string `json:"text"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.Text == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
			return
		}

		rec, err := env.Orchestrator.Process(req.Context(), model.Document{
			ID:         body.DocumentID,
			VendorHint: body.VendorHint,
			Text:       body.Text,
		})
		if err != nil {
			zap.L().Error("extraction failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "extraction failed"})
			return
		}
		if err := env.Store.SaveRecord(req.Context(), rec); err != nil {
			zap.L().Warn("failed to persist record", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Post("/cache/invalidate", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"invalidated": env.Gateway.InvalidateCache()})
	})

	return r
}

func breakerStateStrings(env *extractEnv) map[string]string {
	out := make(map[string]string)
	for name, state := range env.Gateway.BreakerStates() {
		out[name] = state.String()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
