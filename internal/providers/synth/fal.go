package synth

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

const falProviderName = "fal"

// FalOptions configures the fal.ai flux client.
type FalOptions struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// FalClient performs synchronous HTTP calls to the fal.ai flux endpoints.
type FalClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// falEndpoints maps supported models to their fal.ai application paths.
var falEndpoints = map[domain.Model]string{
	domain.ModelFluxSchnell: "fal-ai/flux/schnell",
	domain.ModelFluxDev:     "fal-ai/flux/dev",
}

type falGenerationRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ImageSize      string `json:"image_size,omitempty"`
	NumImages      int    `json:"num_images,omitempty"`
}

type falGenerationResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"images"`
}

type falErrorResponse struct {
	Detail string `json:"detail"`
}

// NewFalClient constructs a client with sane defaults and injected dependencies.
func NewFalClient(opts FalOptions) (*FalClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://fal.run"
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &FalClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (c *FalClient) Synthesize(ctx context.Context, req Request) (*Image, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, newError(falProviderName, FailureUnknown, errors.New("prompt is required"))
	}
	endpoint, ok := falEndpoints[domain.NormalizeModel(string(req.Model))]
	if !ok {
		endpoint = falEndpoints[domain.DefaultModel]
	}
	payload := falGenerationRequest{
		Prompt:    prompt,
		ImageSize: "landscape_16_9",
		NumImages: 1,
	}
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		payload.NegativePrompt = neg
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, newError(falProviderName, FailureUnknown, fmt.Errorf("encode request: %w", err))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, newError(falProviderName, FailureUnknown, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(falProviderName, transportKind(err), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(falProviderName, FailureUnknown, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return nil, c.classifyStatus(resp.StatusCode, raw)
	}

	var decoded falGenerationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, newError(falProviderName, FailureUnknown, fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Images) == 0 || strings.TrimSpace(decoded.Images[0].URL) == "" {
		return nil, newError(falProviderName, FailureUnknown, errors.New("empty image result"))
	}
	img := decoded.Images[0]
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("request_id", req.RequestID).
		Str("url", img.URL).
		Msg("fal: synthesized image")
	return &Image{URL: img.URL, Width: img.Width, Height: img.Height, Provider: falProviderName}, nil
}

func (c *FalClient) classifyStatus(status int, raw []byte) *Error {
	message := strings.TrimSpace(string(raw))
	var detail falErrorResponse
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Detail != "" {
		message = detail.Detail
	}
	err := fmt.Errorf("status %d: %s", status, message)
	switch {
	case status == http.StatusTooManyRequests:
		return newError(falProviderName, FailureRateLimited, err)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(falProviderName, FailureTimeout, err)
	case isContentRejection(message):
		return newError(falProviderName, FailureContentRejected, err)
	default:
		return newError(falProviderName, FailureUnknown, err)
	}
}

func isContentRejection(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range []string{"content policy", "nsfw", "safety", "content_rejected"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

var _ Synthesizer = (*FalClient)(nil)
