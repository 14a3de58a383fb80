package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"slideapp/internal/core"
	"slideapp/pkg/reagent"
)

func newServeMetricsCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:     "serve-metrics",
		Aliases: []string{"serve"},
		Short:   "Serve the planning API under /api/ and Prometheus metrics on /metrics until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.MetricsAddr
			}
			return serve(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// newServerMux routes the planning API, metrics and health checks.
func newServerMux(svc *core.Service, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/api/", &apiHandler{svc: svc})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	return mux
}

func serve(ctx context.Context, a *app, addr string) error {
	srv := &http.Server{Addr: addr, Handler: newServerMux(a.svc, a.registry), ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("serving", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// apiHandler exposes the selection checks over JSON.
type apiHandler struct {
	svc *core.Service
}

type validateRequest struct {
	Serum     string   `json:"serum"`
	Primaries []string `json:"primaries"`
}

type checkSecondaryRequest struct {
	Secondary string   `json:"secondary"`
	Selected  []string `json:"selected"`
	Primaries []string `json:"primaries"`
}

type suggestRequest struct {
	Channels  []string `json:"channels"`
	Primaries []string `json:"primaries"`
}

type resultResponse struct {
	Valid      bool                `json:"valid"`
	Violations []reagent.Violation `json:"violations"`
}

func newResultResponse(res reagent.Result) resultResponse {
	out := resultResponse{Valid: !res.HasBlocking(), Violations: res.Violations}
	if out.Violations == nil {
		out.Violations = []reagent.Violation{}
	}
	return out
}

func (h *apiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch path {
	case "/api/validate":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		h.handleValidate(w, r)
	case "/api/check-secondary":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		h.handleCheckSecondary(w, r)
	case "/api/suggest":
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		h.handleSuggest(w, r)
	case "/api/defaults":
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		h.handleDefaults(w, r)
	default:
		writeError(w, http.StatusNotFound, "endpoint not found")
	}
}

func (h *apiHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Serum) == "" {
		writeError(w, http.StatusBadRequest, "serum host required")
		return
	}
	res, err := h.svc.ValidatePrimaries(r.Context(), req.Serum, req.Primaries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (h *apiHandler) handleCheckSecondary(w http.ResponseWriter, r *http.Request) {
	var req checkSecondaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Secondary) == "" {
		writeError(w, http.StatusBadRequest, "secondary name required")
		return
	}
	res, err := h.svc.CheckSecondary(r.Context(), req.Secondary, req.Selected, req.Primaries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultResponse(res))
}

func (h *apiHandler) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	assignments, err := h.svc.SuggestSecondaries(r.Context(), req.Channels, req.Primaries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions(assignments)})
}

func (h *apiHandler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serum := strings.TrimSpace(q.Get("serum"))
	if serum == "" {
		writeError(w, http.StatusBadRequest, "serum host required")
		return
	}
	width := 0
	if raw := q.Get("width"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "width must be a non-negative integer")
			return
		}
		width = n
	}
	names, err := h.svc.DefaultPrimaries(r.Context(), serum, width)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"primaries": names})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var nf core.ErrNotFound
	if errors.As(err, &nf) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
