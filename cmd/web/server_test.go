package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"episode-studio/internal/assets"
	"episode-studio/internal/batch"
	"episode-studio/internal/clip"
	"episode-studio/internal/notify"
	"episode-studio/internal/payload"
	"episode-studio/internal/provider"
	"episode-studio/internal/selector"
)

type stubSubmitter struct {
	err error
}

func (s stubSubmitter) Submit(_ context.Context, p payload.Payload) (provider.Task, error) {
	if s.err != nil {
		return provider.Task{}, s.err
	}
	return provider.Task{ID: "task-1", RequestID: p.RequestID, Model: p.Model}, nil
}

type recorder struct {
	mu  sync.Mutex
	got []notify.Summary
}

func (r *recorder) Notify(_ context.Context, s notify.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, s)
	return nil
}

func newTestServer(sub batch.Submitter, n notify.Notifier) *server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib := assets.NewMemoryLibrary(
		clip.AssetRecord{Kind: clip.KindCharacter, Name: "Qiren", ImageURL: "http://qiren.png"},
		clip.AssetRecord{Kind: clip.KindLocation, Name: "Desert", ImageURL: "http://desert.png"},
	)
	factory := payload.NewFactory(payload.Options{Logger: logger})
	return &server{
		factory:   factory,
		library:   lib,
		submitter: sub,
		runner: batch.New(batch.Options{
			Library:   lib,
			Factory:   factory,
			Submitter: sub,
			Logger:    logger,
		}),
		coalescer:      notify.NewCoalescer(notify.CoalescerOptions{Debounce: time.Hour, Notifier: n}),
		requestTimeout: 5 * time.Second,
		logger:         logger,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const duelClip = `{"clip":{"title":"Duel","action":"Qiren draws","character":"Qiren","location":"Desert","model":"veo3"}`

func TestPayloadEndpoint(t *testing.T) {
	h := newTestServer(nil, nil).routes()

	rec := do(t, h, http.MethodPost, "/api/payload", duelClip+`,"args":"ar=9:16 10s"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p payload.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "veo3_fast", p.Model)
	assert.Equal(t, []string{"http://desert.png", "http://qiren.png"}, p.ImageURLs)
	assert.Equal(t, "9:16", p.AspectRatio)
	assert.Equal(t, 10, p.Duration)
	assert.NotEmpty(t, p.RequestID)
}

func TestPayloadEndpointRejects(t *testing.T) {
	h := newTestServer(nil, nil).routes()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/payload", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/payload", "{").Code)
}

func TestGenerateEndpoint(t *testing.T) {
	rec := &recorder{}
	s := newTestServer(stubSubmitter{}, rec)

	resp := do(t, s.routes(), http.MethodPost, "/api/generate", duelClip+`}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var out generateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Equal(t, "task-1", out.Task.ID)
	assert.Equal(t, out.Payload.RequestID, out.Task.RequestID)

	s.coalescer.Flush()
	require.Len(t, rec.got, 1)
	assert.Equal(t, generateNotify, rec.got[0].BatchID)
	assert.Equal(t, "Duel", rec.got[0].Results[0].Clip)
}

func TestGenerateEndpointProviderErrors(t *testing.T) {
	h := newTestServer(nil, nil).routes()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/api/generate", duelClip+`}`).Code)

	rec := &recorder{}
	s := newTestServer(stubSubmitter{err: fmt.Errorf("%w: code 500", provider.ErrRejected)}, rec)
	resp := do(t, s.routes(), http.MethodPost, "/api/generate", duelClip+`}`)
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	s.coalescer.Flush()
	require.Len(t, rec.got, 1)
	assert.Contains(t, rec.got[0].Results[0].Err, "code 500")
}

func TestBatchEndpoint(t *testing.T) {
	h := newTestServer(stubSubmitter{}, nil).routes()

	body := `{"items":[` + duelClip + `},{"clip":{"action":"the tide","model":"veo3_fast_s2e"},"images":["start.png","end.png"]}]}`
	resp := do(t, h, http.MethodPost, "/api/batch", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report batch.Report
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &report))
	require.Len(t, report.Outcomes, 2)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, "Duel", report.Outcomes[0].Clip)
	assert.Equal(t, payload.FramesToVideo, report.Outcomes[1].Payload.GenerationType)
	for _, o := range report.Outcomes {
		assert.Empty(t, o.Error)
		require.NotNil(t, o.Task)
	}

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/batch", `{"items":[]}`).Code)
}

func TestModelsEndpoint(t *testing.T) {
	h := newTestServer(nil, nil).routes()

	resp := do(t, h, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Families []struct {
			Family       string `json:"family"`
			DefaultModel string `json:"default_model"`
		} `json:"families"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Families, 4)
	assert.NotEmpty(t, out.Families[0].DefaultModel)
}

func TestHealthz(t *testing.T) {
	resp := do(t, newTestServer(nil, nil).routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestWriteBuildError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeBuildError(rec, fmt.Errorf("build payload: %w", selector.ErrMalformedInput))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = httptest.NewRecorder()
	writeBuildError(rec, assets.ErrNotFound)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
