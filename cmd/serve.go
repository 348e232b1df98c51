package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			zap.L().Info("status api listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/runs/{runID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			runID, err := strconv.ParseInt(chi.URLParam(req, "runID"), 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
				return
			}

			run, err := st.GetRun(req.Context(), runID)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			counts, err := st.TaskCounts(req.Context(), runID)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "task counts unavailable"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"run":   run,
				"tasks": counts,
			})
		})

		r.Get("/leads", func(w http.ResponseWriter, req *http.Request) {
			runID, err := strconv.ParseInt(chi.URLParam(req, "runID"), 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
				return
			}

			run, err := st.GetRun(req.Context(), runID)
			if err != nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
				return
			}
			leads, err := st.ListLeads(req.Context(), run.TenantID, runID)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "leads unavailable"})
				return
			}
			if leads == nil {
				leads = []model.Lead{}
			}
			writeJSON(w, http.StatusOK, leads)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
