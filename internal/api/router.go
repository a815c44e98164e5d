package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/searchforge/fusion_engine/internal/contract"
	"github.com/searchforge/fusion_engine/internal/controller"
	"github.com/searchforge/fusion_engine/internal/health"
	"github.com/searchforge/fusion_engine/obs"
)

const maxBodyBytes = 8 << 20

// Router wires the HTTP endpoints for the fusion engine.
type Router struct {
	controller *controller.Controller
	metrics    *obs.Metrics
}

// NewRouter constructs the HTTP router. metrics may be nil.
func NewRouter(ctrl *controller.Controller, metrics *obs.Metrics) (*chi.Mux, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("controller is required")
	}
	r := &Router{
		controller: ctrl,
		metrics:    metrics,
	}

	mux := chi.NewRouter()
	mux.Get("/healthz", r.handleHealthz)
	mux.Get("/readyz", health.Readyz(ctrl))
	mux.Post("/v1/fuse", r.handleFuse)
	mux.Post("/v1/similarity", r.handleSimilarity)

	return mux, nil
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) handleFuse(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	traceID := resolveTraceID(req)
	w.Header().Set(contract.TraceIDHeader, traceID)
	ctx := contract.WithTraceID(req.Context(), traceID)

	var body contract.FuseRequest
	if err := decodeBody(w, req, &body); err != nil {
		r.observe("/v1/fuse", contract.RetBadRequest, start, traceID)
		writeJSON(w, http.StatusBadRequest, contract.FuseResponse{
			RetCode: contract.RetBadRequest,
			Error:   err.Error(),
		})
		return
	}

	resp, _ := r.controller.Fuse(ctx, body)
	r.observe("/v1/fuse", resp.RetCode, start, traceID)
	writeJSON(w, statusFor(resp.RetCode), resp)
}

func (r *Router) handleSimilarity(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	traceID := resolveTraceID(req)
	w.Header().Set(contract.TraceIDHeader, traceID)
	ctx := contract.WithTraceID(req.Context(), traceID)

	var body contract.SimilarityRequest
	if err := decodeBody(w, req, &body); err != nil {
		r.observe("/v1/similarity", contract.RetBadRequest, start, traceID)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp, err := r.controller.Similarity(ctx, body)
	if err != nil {
		r.observe("/v1/similarity", contract.RetFusionFailed, start, traceID)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	r.observe("/v1/similarity", contract.RetOK, start, traceID)
	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) observe(route, code string, start time.Time, traceID string) {
	r.metrics.ObserveRequest(route, code, time.Since(start), traceID)
}

func resolveTraceID(req *http.Request) string {
	traceID := req.Header.Get(contract.TraceIDHeader)
	if traceID == "" {
		traceID = req.URL.Query().Get("trace_id")
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	return traceID
}

func decodeBody(w http.ResponseWriter, req *http.Request, dst any) error {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	dec := json.NewDecoder(req.Body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func statusFor(retCode string) int {
	switch retCode {
	case contract.RetOK:
		return http.StatusOK
	case contract.RetBadRequest:
		return http.StatusBadRequest
	case contract.RetRateLimited:
		return http.StatusTooManyRequests
	case contract.RetBudgetExceeded:
		return http.StatusGatewayTimeout
	case contract.RetFusionFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}
