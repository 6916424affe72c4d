package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("render: api key is required")

// Options configures the HTTP renderer client.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the post-production renderer service.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type probeRequest struct {
	ImageURL string `json:"image_url"`
}

type probeResponse struct {
	Metrics map[string]float64 `json:"metrics"`
}

type enhanceRequest struct {
	ImageURL string                    `json:"image_url"`
	Plan     domain.PostProductionPlan `json:"plan"`
	Effects  []string                  `json:"effects"`
}

type enhanceResponse struct {
	ProcessedURL string `json:"processed_url"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("render: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *Client) Probe(ctx context.Context, imageURL string) (domain.MetricSet, error) {
	raw, err := c.post(ctx, "/v1/probe", probeRequest{ImageURL: imageURL})
	if err != nil {
		return nil, err
	}
	var decoded probeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Err: fmt.Errorf("decode probe response: %w", err)}
	}
	metrics := domain.MetricSet{}
	for _, metric := range domain.KnownMetrics() {
		if v, ok := decoded.Metrics[string(metric)]; ok {
			metrics[metric] = v
		}
	}
	c.logger.Debug().
		Str("url", imageURL).
		Int("metrics", len(metrics)).
		Msg("render: probed image")
	return metrics, nil
}

func (c *Client) Apply(ctx context.Context, imageURL string, plan domain.PostProductionPlan) (string, error) {
	raw, err := c.post(ctx, "/v1/enhance", enhanceRequest{
		ImageURL: imageURL,
		Plan:     plan,
		Effects:  plan.Effects(),
	})
	if err != nil {
		return "", err
	}
	var decoded enhanceResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{Err: fmt.Errorf("decode enhance response: %w", err)}
	}
	processed := strings.TrimSpace(decoded.ProcessedURL)
	if processed == "" {
		return "", &Error{Err: errors.New("empty processed url")}
	}
	c.logger.Debug().
		Str("url", imageURL).
		Str("processed_url", processed).
		Msg("render: applied effects")
	return processed, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("encode request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Unreachable: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp.StatusCode, raw)
	}
	return raw, nil
}

// classifyStatus treats gateway-class answers as unreachable: the
// renderer fronted by a dead upstream is as good as absent.
func (c *Client) classifyStatus(status int, raw []byte) *Error {
	message := strings.TrimSpace(string(raw))
	var detail errorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		message = detail.Message
	}
	err := fmt.Errorf("status %d: %s", status, message)
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return &Error{Unreachable: true, Err: err}
	default:
		return &Error{Err: err}
	}
}

var _ Renderer = (*Client)(nil)
