package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"episode-studio/internal/models"
	"episode-studio/internal/payload"
)

// ErrRejected is returned when the provider answers but refuses the task.
var ErrRejected = errors.New("provider rejected task")

const createTaskPath = "/api/v1/jobs/createTask"

type Options struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	baseURL     string
	apiKey      string
	callbackURL string
	httpClient  *http.Client
	logger      *slog.Logger
}

// Task identifies a created generation task.
type Task struct {
	ID        string `json:"task_id"`
	RequestID string `json:"request_id"`
	Model     string `json:"model"`
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:     baseURL,
		apiKey:      strings.TrimSpace(opts.APIKey),
		callbackURL: strings.TrimSpace(opts.CallbackURL),
		httpClient:  httpClient,
		logger:      logger,
	}
}

// Submit creates a task for p. It does not wait for the result.
func (c *Client) Submit(ctx context.Context, p payload.Payload) (Task, error) {
	if c.apiKey == "" {
		return Task{}, errors.New("provider api key is empty")
	}
	if strings.TrimSpace(p.Model) == "" {
		return Task{}, errors.New("payload has no model")
	}

	body, err := json.Marshal(createTaskRequest{
		Model:       p.Model,
		CallbackURL: c.callbackURL,
		Input:       inputFor(p),
	})
	if err != nil {
		return Task{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+createTaskPath, bytes.NewReader(body))
	if err != nil {
		return Task{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("authorization", "Bearer "+c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Task{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return Task{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return Task{}, fmt.Errorf("%w: %s: %s", ErrRejected, httpResp.Status, strings.TrimSpace(string(rawBody)))
	}

	var decoded createTaskResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Task{}, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Code != http.StatusOK || strings.TrimSpace(decoded.Data.TaskID) == "" {
		return Task{}, fmt.Errorf("%w: code %d: %s", ErrRejected, decoded.Code, decoded.Msg)
	}

	c.logger.Info("task created",
		"task", decoded.Data.TaskID,
		"request", p.RequestID,
		"model", p.Model,
		"images", len(p.ImageURLs),
	)

	return Task{
		ID:        decoded.Data.TaskID,
		RequestID: p.RequestID,
		Model:     p.Model,
	}, nil
}

type createTaskRequest struct {
	Model       string `json:"model"`
	CallbackURL string `json:"callBackUrl,omitempty"`
	Input       any    `json:"input"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type videoInput struct {
	Prompt            string   `json:"prompt"`
	ImageURLs         []string `json:"imageUrls,omitempty"`
	GenerationType    string   `json:"generationType,omitempty"`
	AspectRatio       string   `json:"aspectRatio,omitempty"`
	Duration          string   `json:"duration,omitempty"`
	Seeds             *int64   `json:"seeds,omitempty"`
	EnableFallback    bool     `json:"enableFallback"`
	EnableTranslation bool     `json:"enableTranslation"`
}

type flatInput struct {
	Prompt        string   `json:"prompt"`
	ImageURLs     []string `json:"image_urls,omitempty"`
	AspectRatio   string   `json:"aspect_ratio,omitempty"`
	GuidanceScale *float64 `json:"guidance_scale,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
}

type denseInput struct {
	Prompt       string   `json:"prompt"`
	ImageInput   []string `json:"image_input"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	Resolution   string   `json:"resolution,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	Seed         *int64   `json:"seed,omitempty"`
}

func inputFor(p payload.Payload) any {
	switch p.Family {
	case models.FlatImage:
		return flatInput{
			Prompt:        p.Prompt,
			ImageURLs:     p.ImageURLs,
			AspectRatio:   p.AspectRatio,
			GuidanceScale: p.GuidanceScale,
			Seed:          p.Seed,
		}
	case models.DenseImage:
		images := p.ImageURLs
		if images == nil {
			images = []string{}
		}
		return denseInput{
			Prompt:       p.Prompt,
			ImageInput:   images,
			AspectRatio:  p.AspectRatio,
			Resolution:   p.Resolution,
			OutputFormat: p.OutputFormat,
			Seed:         p.Seed,
		}
	default:
		in := videoInput{
			Prompt:            p.Prompt,
			ImageURLs:         p.ImageURLs,
			GenerationType:    string(p.GenerationType),
			AspectRatio:       p.AspectRatio,
			Seeds:             p.Seed,
			EnableFallback:    p.EnableFallback,
			EnableTranslation: p.EnableTranslation,
		}
		if p.Duration > 0 {
			in.Duration = strconv.Itoa(p.Duration)
		}
		return in
	}
}
