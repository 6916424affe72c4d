package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPromptsPreview(t *testing.T) {
	backend := newTestBackend(10, nil)
	req := authedRequest(t, "POST", "/v1/prompts/preview", map[string]any{
		"prompt":     "Create a gaming thumbnail with a shocked face for my Elden Ring video",
		"topic":      "gaming",
		"model":      "flux-schnell",
		"variations": 2,
	})
	rr := httptest.NewRecorder()

	backend.app.PromptsPreview(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Prompt struct {
			Text         string   `json:"text"`
			StyleApplied string   `json:"styleApplied"`
			QualityScore int      `json:"qualityScore"`
			Variations   []string `json:"variations"`
		} `json:"prompt"`
		Report struct {
			Score int `json:"score"`
		} `json:"report"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Prompt.Text == "" {
		t.Fatalf("expected prompt text")
	}
	if !strings.Contains(payload.Prompt.Text, "Zero Damage Run") {
		t.Fatalf("expected the matched reference to shape the prompt, got %q", payload.Prompt.Text)
	}
	if payload.Prompt.StyleApplied != "bold" {
		t.Fatalf("styleApplied = %q, want bold", payload.Prompt.StyleApplied)
	}
	if len(payload.Prompt.Variations) != 2 {
		t.Fatalf("variations = %d, want 2", len(payload.Prompt.Variations))
	}
	if payload.Report.Score != payload.Prompt.QualityScore {
		t.Fatalf("report score %d diverges from prompt score %d", payload.Report.Score, payload.Prompt.QualityScore)
	}

	// Previews are free and leave nothing behind.
	if backend.gens.size() != 0 {
		t.Fatalf("preview must not persist a record")
	}
	if got := backend.credits.balance(testUserID); got != 10 {
		t.Fatalf("balance = %d, want 10", got)
	}
}

func TestPromptsPreviewClampsVariations(t *testing.T) {
	backend := newTestBackend(10, nil)
	req := authedRequest(t, "POST", "/v1/prompts/preview", map[string]any{
		"prompt":     "A cooking thumbnail with warm natural light",
		"variations": 50,
	})
	rr := httptest.NewRecorder()

	backend.app.PromptsPreview(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Prompt struct {
			Variations []string `json:"variations"`
		} `json:"prompt"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Prompt.Variations) != maxPreviewVariations {
		t.Fatalf("variations = %d, want %d", len(payload.Prompt.Variations), maxPreviewVariations)
	}
}

func TestPromptsPreviewRejectsShortPrompt(t *testing.T) {
	backend := newTestBackend(10, nil)
	req := authedRequest(t, "POST", "/v1/prompts/preview", map[string]any{"prompt": "no"})
	rr := httptest.NewRecorder()

	backend.app.PromptsPreview(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if code, _ := decodeError(t, payload["error"]); code != "validation_failed" {
		t.Fatalf("error code = %q, want validation_failed", code)
	}
}

func TestPromptsRefine(t *testing.T) {
	backend := newTestBackend(10, nil)
	req := authedRequest(t, "POST", "/v1/prompts/refine", map[string]any{
		"text": "A thumbnail with dramatic lighting and bold colors.",
		"feedback": map[string]any{
			"needsMoreFocus":     "the subject's face",
			"lightingAdjustment": "softer glow",
		},
	})
	rr := httptest.NewRecorder()

	backend.app.PromptsRefine(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Text   string `json:"text"`
		Report struct {
			Score int `json:"score"`
		} `json:"report"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(payload.Text, "Increase focus on the subject's face.") {
		t.Fatalf("missing focus instruction in %q", payload.Text)
	}
	if !strings.Contains(payload.Text, "Adjust the lighting: softer glow.") {
		t.Fatalf("missing lighting instruction in %q", payload.Text)
	}
	if payload.Report.Score <= 0 {
		t.Fatalf("report score = %d, want > 0", payload.Report.Score)
	}
}

func TestPromptsRefineRequiresText(t *testing.T) {
	backend := newTestBackend(10, nil)
	req := authedRequest(t, "POST", "/v1/prompts/refine", map[string]any{
		"feedback": map[string]any{"colorAdjustment": "warmer"},
	})
	rr := httptest.NewRecorder()

	backend.app.PromptsRefine(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body=%s", rr.Code, rr.Body.String())
	}
}
