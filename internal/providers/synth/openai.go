package synth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"thumbforge/internal/infra"
)

const openAIProviderName = "openai"

// OpenAIOptions configures the DALL-E 3 client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// OpenAIClient synthesizes through the OpenAI images API. DALL-E has no
// negative-prompt channel, so Request.NegativePrompt is ignored here.
type OpenAIClient struct {
	client *openai.Client
	logger *infra.Logger
}

func NewOpenAIClient(opts OpenAIOptions) (*OpenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), logger: logger}, nil
}

func (c *OpenAIClient) Synthesize(ctx context.Context, req Request) (*Image, error) {
	resp, err := c.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          openai.CreateImageModelDallE3,
		N:              1,
		Size:           openai.CreateImageSize1792x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 || strings.TrimSpace(resp.Data[0].URL) == "" {
		return nil, newError(openAIProviderName, FailureUnknown, errors.New("no image data in response"))
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("url", resp.Data[0].URL).
		Msg("openai: synthesized image")
	return &Image{URL: resp.Data[0].URL, Width: 1792, Height: 1024, Provider: openAIProviderName}, nil
}

func classifyOpenAIError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return newError(openAIProviderName, FailureRateLimited, err)
		case openAIErrorCode(apiErr) == "content_policy_violation" || isContentRejection(apiErr.Message):
			return newError(openAIProviderName, FailureContentRejected, err)
		case apiErr.HTTPStatusCode == http.StatusRequestTimeout || apiErr.HTTPStatusCode == http.StatusGatewayTimeout:
			return newError(openAIProviderName, FailureTimeout, err)
		default:
			return newError(openAIProviderName, FailureUnknown, err)
		}
	}
	return newError(openAIProviderName, transportKind(err), err)
}

// openAIErrorCode extracts the string form of APIError.Code, which the
// library types as any.
func openAIErrorCode(apiErr *openai.APIError) string {
	if s, ok := apiErr.Code.(string); ok {
		return s
	}
	return ""
}

var _ Synthesizer = (*OpenAIClient)(nil)
