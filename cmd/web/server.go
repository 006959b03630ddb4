package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"episode-studio/internal/assets"
	"episode-studio/internal/batch"
	"episode-studio/internal/models"
	"episode-studio/internal/notify"
	"episode-studio/internal/payload"
	"episode-studio/internal/provider"
	"episode-studio/internal/selector"
)

const (
	maxBodyBytes   = 1 << 20
	maxBatchItems  = 200
	generateNotify = "generate"
)

type server struct {
	factory        *payload.Factory
	library        assets.Library
	submitter      batch.Submitter
	runner         *batch.Runner
	coalescer      *notify.Coalescer
	requestTimeout time.Duration
	logger         *slog.Logger
}

type apiError struct {
	Error string `json:"error"`
}

type clipRequest struct {
	batch.Item
	// Args are quick overrides, e.g. "ar=9:16 10s strength=7".
	Args string `json:"args,omitempty"`
}

func (r clipRequest) item() batch.Item {
	if r.Args == "" {
		return r.Item
	}
	return r.Item.WithOverrides(payload.ParseOverrides(r.Args, payload.Overrides{}))
}

type generateResponse struct {
	Payload payload.Payload `json:"payload"`
	Task    provider.Task   `json:"task"`
}

type batchRequest struct {
	Items []clipRequest `json:"items"`
}

type familyInfo struct {
	Family       models.Family `json:"family"`
	DefaultModel string        `json:"default_model"`
}

type modelsResponse struct {
	Catalog  models.Catalog `json:"catalog"`
	Families []familyInfo   `json:"families"`
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/payload", s.handlePayload)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/batch", s.handleBatch)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return withLogging(mux, s.logger)
}

func (s *server) handlePayload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var req clipRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	p, err := batch.Build(ctx, s.library, s.factory, req.item())
	if err != nil {
		writeBuildError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}
	if s.submitter == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "provider is not configured"})
		return
	}

	var req clipRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item := req.item()

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	p, err := batch.Build(ctx, s.library, s.factory, item)
	if err != nil {
		writeBuildError(w, err)
		return
	}

	task, err := s.submitter.Submit(ctx, p)
	s.notify(item, p, task, err)
	if err != nil {
		s.logger.Error("submit failed", "request", p.RequestID, "model", p.Model, "err", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, apiError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Payload: p, Task: task})
}

func (s *server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	switch {
	case len(req.Items) == 0:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "items is empty"})
		return
	case len(req.Items) > maxBatchItems:
		writeJSON(w, http.StatusBadRequest, apiError{Error: "too many items"})
		return
	}

	items := make([]batch.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.item())
	}

	writeJSON(w, http.StatusOK, s.runner.Run(r.Context(), items))
}

func (s *server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "method not allowed"})
		return
	}

	cat := s.factory.Catalog()
	resp := modelsResponse{Catalog: cat}
	for _, f := range []models.Family{models.StandardVideo, models.TransitionVideo, models.FlatImage, models.DenseImage} {
		resp.Families = append(resp.Families, familyInfo{Family: f, DefaultModel: cat.DefaultModel(f)})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) notify(item batch.Item, p payload.Payload, task provider.Task, err error) {
	if s.coalescer == nil {
		return
	}
	res := notify.Result{
		Clip:     item.Clip.Title,
		Model:    p.Model,
		TaskID:   task.ID,
		Warnings: p.Warnings,
	}
	if err != nil {
		res.Err = err.Error()
	}
	s.coalescer.Add(generateNotify, res)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid json: " + err.Error()})
		return false
	}
	return true
}

func writeBuildError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, selector.ErrMalformedInput) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, apiError{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", time.Since(start).Milliseconds())
	})
}
