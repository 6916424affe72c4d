package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     infra.Logger
	Fallback   Analyzer
}

// GeminiAnalyzer asks Gemini for the six visual descriptors as JSON.
// Every failure path logs at warn and hands the input to the fallback
// analyzer, so analysis itself never blocks the pipeline.
type GeminiAnalyzer struct {
	apiKey   string
	model    string
	baseURL  string
	client   *http.Client
	logger   infra.Logger
	fallback Analyzer
}

const geminiDefaultTimeout = 15 * time.Second

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	CandidateCount   int     `json:"candidateCount,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiMetadataPayload struct {
	Mood                string `json:"mood"`
	Lighting            string `json:"lighting"`
	SubjectPosition     string `json:"subjectPosition"`
	EmotionalExpression string `json:"emotionalExpression"`
	TextPosition        string `json:"textPosition"`
	Contrast            string `json:"contrast"`
}

func NewGeminiAnalyzer(opts GeminiOptions) (*GeminiAnalyzer, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: geminiDefaultTimeout}
	}
	fallback := opts.Fallback
	if fallback == nil {
		fallback = NewKeywordAnalyzer()
	}
	return &GeminiAnalyzer{
		apiKey:   opts.APIKey,
		model:    model,
		baseURL:  baseURL,
		client:   client,
		logger:   opts.Logger,
		fallback: fallback,
	}, nil
}

func (g *GeminiAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (domain.UserMetadata, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{{
				Text: g.buildAnalysisPrompt(in),
			}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.2,
			CandidateCount:   1,
			ResponseMimeType: "application/json",
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return g.useFallback(ctx, in, "encode_request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(), &buf)
	if err != nil {
		return g.useFallback(ctx, in, "build_request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return g.useFallback(ctx, in, "http_request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return g.useFallback(ctx, in, "http_status", fmt.Errorf("gemini status %d", resp.StatusCode))
	}
	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return g.useFallback(ctx, in, "decode_response", err)
	}
	text := extractText(out)
	if text == "" {
		return g.useFallback(ctx, in, "empty_candidates", errors.New("no candidate text"))
	}
	parsed, err := parseMetadataPayload(text)
	if err != nil {
		return g.useFallback(ctx, in, "parse_payload", err)
	}
	return domain.UserMetadata{
		Mood:                normalizeDescriptor(parsed.Mood),
		Lighting:            normalizeDescriptor(parsed.Lighting),
		SubjectPosition:     normalizeDescriptor(parsed.SubjectPosition),
		EmotionalExpression: strings.TrimSpace(parsed.EmotionalExpression),
		TextPosition:        normalizeDescriptor(parsed.TextPosition),
		Contrast:            normalizeDescriptor(parsed.Contrast),
	}, nil
}

func (g *GeminiAnalyzer) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(g.baseURL, "/"), url.PathEscape(g.model), url.QueryEscape(g.apiKey))
}

func (g *GeminiAnalyzer) buildAnalysisPrompt(in AnalyzeInput) string {
	sb := &strings.Builder{}
	sb.WriteString("You analyze YouTube thumbnail requests. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"mood":string,"lighting":string,"subjectPosition":string,"emotionalExpression":string,"textPosition":string,"contrast":string}`)
	sb.WriteString(". Allowed values: mood in [shocked, excited, happy, serious, angry, mysterious, curious];")
	sb.WriteString(" lighting in [dramatic, soft, neon, studio, natural, backlit];")
	sb.WriteString(" subjectPosition in [left, right, center]; textPosition in [top, bottom];")
	sb.WriteString(" contrast in [high, low]. Use an empty string for anything the request does not imply.")
	sb.WriteString(" emotionalExpression is a short free-form facial description.")
	fmt.Fprintf(sb, " Request: %q.", in.Prompt)
	if n := len(in.ImageRefs); n > 0 {
		fmt.Fprintf(sb, " The user attached %d reference photo(s) of the subject.", n)
	}
	return sb.String()
}

func (g *GeminiAnalyzer) useFallback(ctx context.Context, in AnalyzeInput, reason string, cause error) (domain.UserMetadata, error) {
	g.logger.Warn().
		Str("provider", geminiProviderName).
		Str("reason", reason).
		Err(cause).
		Msg("vision analysis fell back to keyword scan")
	return g.fallback.Analyze(ctx, in)
}

func extractText(resp geminiResponse) string {
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

func parseMetadataPayload(raw string) (geminiMetadataPayload, error) {
	var zero geminiMetadataPayload
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded geminiMetadataPayload
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func normalizeDescriptor(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
