package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thumbforge/internal/catalog"
	"thumbforge/internal/domain"
	"thumbforge/internal/ledger"
	"thumbforge/internal/providers/render"
	"thumbforge/internal/providers/synth"
	"thumbforge/internal/providers/vision"
)

type fakeGenerations struct {
	mu      sync.Mutex
	records map[string]*domain.GenerationRecord
	stages  map[string][]domain.Status
	failOn  map[string]error
}

func newFakeGenerations() *fakeGenerations {
	return &fakeGenerations{
		records: make(map[string]*domain.GenerationRecord),
		stages:  make(map[string][]domain.Status),
		failOn:  make(map[string]error),
	}
}

func (f *fakeGenerations) fail(op string, err error) {
	f.mu.Lock()
	f.failOn[op] = err
	f.mu.Unlock()
}

func (f *fakeGenerations) Create(ctx context.Context, rec *domain.GenerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["create"]; err != nil {
		return err
	}
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func (f *fakeGenerations) SetStatus(ctx context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set_status:"+string(status)]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = status
	f.stages[id] = append(f.stages[id], status)
	return nil
}

func (f *fakeGenerations) SetAnalysis(ctx context.Context, id string, md domain.UserMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set_analysis"]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Metadata = md
	return nil
}

func (f *fakeGenerations) SetMatch(ctx context.Context, id string, match *domain.MatchResult) error {
	if match == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set_match"]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	clone := *match
	rec.Match = &clone
	return nil
}

func (f *fakeGenerations) SetPrompt(ctx context.Context, id string, prompt domain.EngineeredPrompt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set_prompt"]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Prompt = prompt
	return nil
}

func (f *fakeGenerations) SetSynthesis(ctx context.Context, id, rawImageURL, provider string, creditsCharged int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["set_synthesis"]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.RawImageURL = rawImageURL
	rec.Provider = provider
	rec.CreditsCharged = creditsCharged
	return nil
}

func (f *fakeGenerations) MarkCompleted(ctx context.Context, rec *domain.GenerationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["mark_completed"]; err != nil {
		return err
	}
	if _, ok := f.records[rec.ID]; !ok {
		return domain.ErrNotFound
	}
	clone := *rec
	f.records[rec.ID] = &clone
	return nil
}

func (f *fakeGenerations) MarkFailed(ctx context.Context, id, reason string, refunded bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failOn["mark_failed"]; err != nil {
		return err
	}
	rec, ok := f.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = reason
	rec.Refunded = refunded
	return nil
}

func (f *fakeGenerations) GetByID(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeGenerations) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GenerationRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeGenerations) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func (f *fakeGenerations) stageLog(id string) []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Status(nil), f.stages[id]...)
}

func (f *fakeGenerations) mustGet(t *testing.T, id string) *domain.GenerationRecord {
	t.Helper()
	rec, err := f.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return rec
}

var _ domain.GenerationRepository = (*fakeGenerations)(nil)

type fakeCredits struct {
	mu           sync.Mutex
	balances     map[string]int
	refunds      map[string]bool
	debitCount   int
	refundWrites int
	refundErr    error
}

func newFakeCredits(balances map[string]int) *fakeCredits {
	return &fakeCredits{balances: balances, refunds: make(map[string]bool)}
}

func (f *fakeCredits) Balance(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeCredits) DebitUsage(ctx context.Context, userID, generationID string, amount int, description string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.balances[userID] < amount {
		return 0, domain.ErrInsufficientCredits
	}
	f.balances[userID] -= amount
	f.debitCount++
	return f.balances[userID], nil
}

func (f *fakeCredits) RefundUsage(ctx context.Context, userID, generationID string, amount int, description string) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return false, 0, f.refundErr
	}
	if f.refunds[generationID] {
		return false, f.balances[userID], nil
	}
	f.refunds[generationID] = true
	f.balances[userID] += amount
	f.refundWrites++
	return true, f.balances[userID], nil
}

func (f *fakeCredits) Grant(ctx context.Context, userID string, amount int, entryType domain.LedgerEntryType, description string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userID] += amount
	return f.balances[userID], nil
}

func (f *fakeCredits) History(ctx context.Context, userID string, limit int) ([]domain.CreditLedgerEntry, error) {
	return nil, nil
}

func (f *fakeCredits) balance(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID]
}

func (f *fakeCredits) debits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debitCount
}

func (f *fakeCredits) refundsWritten() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refundWrites
}

var _ domain.CreditRepository = (*fakeCredits)(nil)

type fakeReferences struct {
	refs    []domain.ReferenceThumbnail
	mds     []domain.ThumbnailMetadata
	prefs   []domain.TopicPreference
	listErr error
}

func (f *fakeReferences) ListActive(ctx context.Context) ([]domain.ReferenceThumbnail, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeReferences) ListMetadata(ctx context.Context) ([]domain.ThumbnailMetadata, error) {
	return f.mds, nil
}

func (f *fakeReferences) ListTopicPreferences(ctx context.Context) ([]domain.TopicPreference, error) {
	return f.prefs, nil
}

func (f *fakeReferences) UpsertReference(ctx context.Context, ref domain.ReferenceThumbnail) error {
	return nil
}

func (f *fakeReferences) UpsertMetadata(ctx context.Context, md domain.ThumbnailMetadata) error {
	return nil
}

func (f *fakeReferences) SetTopicPreference(ctx context.Context, pref domain.TopicPreference) error {
	return nil
}

func (f *fakeReferences) DeactivateMissing(ctx context.Context, keepIDs []string) (int64, error) {
	return 0, nil
}

var _ domain.ReferenceRepository = (*fakeReferences)(nil)

type stubSynth struct {
	err  error
	img  synth.Image
	hook func()
}

func (s *stubSynth) Synthesize(ctx context.Context, req synth.Request) (*synth.Image, error) {
	if s.hook != nil {
		s.hook()
	}
	if s.err != nil {
		return nil, s.err
	}
	img := s.img
	if img.URL == "" {
		img.URL = "https://img.test/raw.png"
	}
	if img.Provider == "" {
		img.Provider = "stub"
	}
	return &img, nil
}

type stubRenderer struct {
	probeMetrics domain.MetricSet
	probeErr     error
	applyURL     string
	applyErr     error
}

func (s *stubRenderer) Probe(ctx context.Context, imageURL string) (domain.MetricSet, error) {
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	return s.probeMetrics, nil
}

func (s *stubRenderer) Apply(ctx context.Context, imageURL string, plan domain.PostProductionPlan) (string, error) {
	if s.applyErr != nil {
		return "", s.applyErr
	}
	if s.applyURL != "" {
		return s.applyURL, nil
	}
	return imageURL, nil
}

// ctxCheckRenderer refuses to work on a canceled context, so a test can
// prove the pipeline detached from the caller after the debit.
type ctxCheckRenderer struct {
	inner render.Renderer
}

func (c *ctxCheckRenderer) Probe(ctx context.Context, imageURL string) (domain.MetricSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.inner.Probe(ctx, imageURL)
}

func (c *ctxCheckRenderer) Apply(ctx context.Context, imageURL string, plan domain.PostProductionPlan) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.inner.Apply(ctx, imageURL, plan)
}

func gamingCatalog() *fakeReferences {
	return &fakeReferences{
		refs: []domain.ReferenceThumbnail{
			{ID: "ref-gaming", Title: "Zero Damage Run", Category: "gaming", Style: "bold", ViralScore: 0.92, Active: true},
			{ID: "ref-cooking", Title: "Perfect Sourdough", Category: "cooking", Style: "minimal", ViralScore: 0.8, Active: true},
		},
		mds: []domain.ThumbnailMetadata{
			{
				ReferenceID:         "ref-gaming",
				SubjectPosition:     "left",
				Mood:                "shocked",
				Lighting:            "neon",
				EmotionalExpression: "wide eyes and open mouth",
				TextPosition:        "bottom",
				Contrast:            "high",
			},
			{ReferenceID: "ref-cooking", Mood: "happy", Lighting: "natural"},
		},
	}
}

type testEnv struct {
	gens     *fakeGenerations
	credits  *fakeCredits
	refs     *fakeReferences
	registry *synth.Registry
	renderer render.Renderer
}

func newTestEnv(balance int) *testEnv {
	return &testEnv{
		gens:     newFakeGenerations(),
		credits:  newFakeCredits(map[string]int{"user-1": balance}),
		refs:     gamingCatalog(),
		registry: synth.NewRegistry(synth.NewStaticSynthesizer("")),
		renderer: render.NewStaticRenderer(),
	}
}

func (e *testEnv) pipeline() *Pipeline {
	return New(Options{
		Generations:  e.gens,
		Ledger:       ledger.New(e.credits, 2, zerolog.Nop()),
		Catalog:      catalog.New(e.refs, time.Minute, zerolog.Nop()),
		Analyzer:     vision.NewKeywordAnalyzer(),
		Synthesizers: e.registry,
		Renderer:     e.renderer,
		Logger:       zerolog.Nop(),
		StageTimeout: time.Second,
	})
}

func gamingRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		UserID:     "user-1",
		UserPrompt: "Create a gaming thumbnail with a shocked face for my Elden Ring video",
		Topic:      "Gaming",
		Model:      domain.ModelFluxSchnell,
	}
}

func TestGenerateHappyPath(t *testing.T) {
	env := newTestEnv(10)

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want %s", rec.Status, domain.StatusCompleted)
	}
	if rec.CreditsCharged != 2 {
		t.Errorf("creditsCharged = %d, want 2", rec.CreditsCharged)
	}
	if rec.Refunded {
		t.Error("completed generation must not be refunded")
	}
	if got := env.credits.balance("user-1"); got != 8 {
		t.Errorf("balance = %d, want 8", got)
	}

	if rec.Metadata.Mood != "shocked" || rec.Metadata.Lighting != "neon" {
		t.Errorf("metadata = %+v, want shocked/neon", rec.Metadata)
	}
	if rec.Match == nil {
		t.Fatal("expected a reference match")
	}
	if rec.Match.ReferenceID != "ref-gaming" || rec.Match.Score != 1.0 {
		t.Errorf("match = %+v, want ref-gaming at 1.0", rec.Match)
	}
	if rec.Prompt.StyleApplied != "bold" {
		t.Errorf("styleApplied = %q, want bold from the matched reference", rec.Prompt.StyleApplied)
	}
	if rec.Prompt.QualityScore < 85 {
		t.Errorf("prompt score = %d, want >= 85", rec.Prompt.QualityScore)
	}
	if !strings.Contains(rec.Prompt.Text, "Zero Damage Run") {
		t.Error("prompt should borrow layout from the matched reference")
	}

	if rec.Provider != "static" || rec.RawImageURL == "" {
		t.Errorf("synthesis = %q via %q, want a static image", rec.RawImageURL, rec.Provider)
	}
	if !strings.Contains(rec.FinalImageURL, "fx=") {
		t.Errorf("final url %q should carry applied effects", rec.FinalImageURL)
	}
	for _, fx := range []string{"vignette", "film-grain"} {
		found := false
		for _, applied := range rec.AppliedEffects {
			if applied == fx {
				found = true
			}
		}
		if !found {
			t.Errorf("appliedEffects = %v, missing %s", rec.AppliedEffects, fx)
		}
	}

	wantStages := []domain.Status{
		domain.StatusValidating,
		domain.StatusAnalyzing,
		domain.StatusMatching,
		domain.StatusPrompting,
		domain.StatusGenerating,
		domain.StatusPostProcessing,
	}
	if got := env.gens.stageLog(rec.ID); !reflect.DeepEqual(got, wantStages) {
		t.Errorf("stage log = %v, want %v", got, wantStages)
	}
	stored := env.gens.mustGet(t, rec.ID)
	if stored.Status != domain.StatusCompleted || stored.FinalImageURL != rec.FinalImageURL {
		t.Errorf("stored record = %s/%q, want completed with the final url", stored.Status, stored.FinalImageURL)
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	cases := []struct {
		name      string
		mutate    func(*domain.GenerationRequest)
		wantField string
	}{
		{"missing user", func(r *domain.GenerationRequest) { r.UserID = " " }, "userId"},
		{"prompt too short", func(r *domain.GenerationRequest) { r.UserPrompt = "no" }, "userPrompt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(10)
			req := gamingRequest()
			tc.mutate(&req)

			rec, err := env.pipeline().Generate(context.Background(), req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want a validation error", err)
			}
			if verr.Field != tc.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tc.wantField)
			}
			if rec != nil {
				t.Errorf("record = %+v, want none persisted", rec)
			}
			if env.gens.count() != 0 {
				t.Error("invalid request must not create a record")
			}
			if env.credits.debits() != 0 {
				t.Error("invalid request must not touch credits")
			}
		})
	}
}

func TestGenerateInsufficientCreditsAtPrecheck(t *testing.T) {
	env := newTestEnv(1)

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if rec == nil || rec.Status != domain.StatusFailed {
		t.Fatalf("record = %+v, want a failed record", rec)
	}
	if rec.Refunded {
		t.Error("nothing was debited, nothing to refund")
	}
	if env.credits.debits() != 0 {
		t.Errorf("debits = %d, want 0", env.credits.debits())
	}
	if got := env.credits.balance("user-1"); got != 1 {
		t.Errorf("balance = %d, want untouched 1", got)
	}
	if got := env.gens.stageLog(rec.ID); len(got) != 1 || got[0] != domain.StatusValidating {
		t.Errorf("stage log = %v, want only validating", got)
	}
	stored := env.gens.mustGet(t, rec.ID)
	if stored.Status != domain.StatusFailed || stored.Refunded {
		t.Errorf("stored = %s refunded=%t, want failed unrefunded", stored.Status, stored.Refunded)
	}
}

func TestGenerateSynthesisFailureRefunds(t *testing.T) {
	env := newTestEnv(10)
	env.registry = synth.NewRegistry(&stubSynth{
		err: &synth.Error{Kind: synth.FailureContentRejected, Provider: "stub", Err: errors.New("safety block")},
	})

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err == nil {
		t.Fatal("expected a synthesis error")
	}
	var synthErr *synth.Error
	if !errors.As(err, &synthErr) || synthErr.Kind != synth.FailureContentRejected {
		t.Fatalf("err = %v, want the provider failure to surface", err)
	}
	if rec.Status != domain.StatusFailed || !rec.Refunded {
		t.Fatalf("record = %s refunded=%t, want failed and refunded", rec.Status, rec.Refunded)
	}
	if got := env.credits.balance("user-1"); got != 10 {
		t.Errorf("balance = %d, want restored 10", got)
	}
	if env.credits.debits() != 1 || env.credits.refundsWritten() != 1 {
		t.Errorf("debits=%d refunds=%d, want 1 and 1", env.credits.debits(), env.credits.refundsWritten())
	}
	stored := env.gens.mustGet(t, rec.ID)
	if !stored.Refunded || stored.ErrorMessage == "" {
		t.Errorf("stored = %+v, want the refund and reason persisted", stored)
	}
}

func TestGenerateRendererUnreachableRefunds(t *testing.T) {
	env := newTestEnv(10)
	env.renderer = &stubRenderer{
		probeErr: &render.Error{Unreachable: true, Err: errors.New("bad gateway")},
	}

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err == nil {
		t.Fatal("expected a renderer error")
	}
	if !render.IsUnreachable(err) {
		t.Fatalf("err = %v, want unreachable to surface", err)
	}
	if rec.Status != domain.StatusFailed || !rec.Refunded {
		t.Fatalf("record = %s refunded=%t, want failed and refunded", rec.Status, rec.Refunded)
	}
	if got := env.credits.balance("user-1"); got != 10 {
		t.Errorf("balance = %d, want restored 10", got)
	}
	stored := env.gens.mustGet(t, rec.ID)
	if stored.RawImageURL == "" {
		t.Error("synthesis result should have been persisted before the renderer failed")
	}
}

func TestGenerateProbeFailureDegrades(t *testing.T) {
	env := newTestEnv(10)
	env.renderer = &stubRenderer{
		probeErr: errors.New("metrics backend busy"),
		applyURL: "https://cdn.test/final.png",
	}

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed despite the probe failure", rec.Status)
	}
	if rec.Assessment.IsValid || rec.Assessment.OverallScore != 0 {
		t.Errorf("assessment = %+v, want the unmeasured zero assessment", rec.Assessment)
	}
	if rec.FinalImageURL != "https://cdn.test/final.png" {
		t.Errorf("final url = %q, want the processed one", rec.FinalImageURL)
	}
	if want := []string{"vignette", "film-grain"}; !reflect.DeepEqual(rec.AppliedEffects, want) {
		t.Errorf("appliedEffects = %v, want only the polish pass %v", rec.AppliedEffects, want)
	}
	if got := env.credits.balance("user-1"); got != 8 {
		t.Errorf("balance = %d, want the debit to stand at 8", got)
	}
}

func TestGenerateApplyFailureDeliversRaw(t *testing.T) {
	env := newTestEnv(10)
	env.renderer = &stubRenderer{
		probeMetrics: domain.MetricSet{
			domain.MetricBrightness:  90,
			domain.MetricContrast:    90,
			domain.MetricSaturation:  90,
			domain.MetricSharpness:   90,
			domain.MetricComposition: 90,
		},
		applyErr: errors.New("effects queue full"),
	}

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed with the raw image", rec.Status)
	}
	if rec.FinalImageURL != rec.RawImageURL {
		t.Errorf("final = %q raw = %q, want the raw image delivered", rec.FinalImageURL, rec.RawImageURL)
	}
	if len(rec.AppliedEffects) != 0 {
		t.Errorf("appliedEffects = %v, want none", rec.AppliedEffects)
	}
	if !rec.Assessment.IsValid || rec.Assessment.OverallScore != 90 {
		t.Errorf("assessment = %+v, want a valid 90", rec.Assessment)
	}
	if got := env.credits.balance("user-1"); got != 8 {
		t.Errorf("balance = %d, want the debit to stand at 8", got)
	}
}

func TestGeneratePersistenceFailureRefundPolicy(t *testing.T) {
	cases := []struct {
		op         string
		wantRefund bool
		wantDebits int
	}{
		{"set_status:" + string(domain.StatusAnalyzing), false, 0},
		{"set_analysis", false, 0},
		{"set_status:" + string(domain.StatusGenerating), true, 1},
		{"set_synthesis", true, 1},
		{"mark_completed", true, 1},
	}
	for _, tc := range cases {
		t.Run(tc.op, func(t *testing.T) {
			env := newTestEnv(10)
			env.gens.fail(tc.op, errors.New("pg down"))

			rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
			if err == nil {
				t.Fatal("expected the persistence failure to surface")
			}
			if rec == nil || rec.Status != domain.StatusFailed {
				t.Fatalf("record = %+v, want failed", rec)
			}
			if rec.Refunded != tc.wantRefund {
				t.Errorf("refunded = %t, want %t", rec.Refunded, tc.wantRefund)
			}
			if got := env.credits.debits(); got != tc.wantDebits {
				t.Errorf("debits = %d, want %d", got, tc.wantDebits)
			}
			if got := env.credits.balance("user-1"); got != 10 {
				t.Errorf("balance = %d, want 10 either way", got)
			}
			wantRefunds := 0
			if tc.wantRefund {
				wantRefunds = 1
			}
			if got := env.credits.refundsWritten(); got != wantRefunds {
				t.Errorf("refund writes = %d, want %d", got, wantRefunds)
			}
		})
	}
}

func TestGenerateRefundFailureLeavesRecordUnrefunded(t *testing.T) {
	env := newTestEnv(10)
	env.credits.refundErr = errors.New("ledger offline")
	env.registry = synth.NewRegistry(&stubSynth{
		err: &synth.Error{Kind: synth.FailureUnknown, Provider: "stub", Err: errors.New("boom")},
	})

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err == nil {
		t.Fatal("expected the synthesis error")
	}
	if rec.Status != domain.StatusFailed || rec.Refunded {
		t.Fatalf("record = %s refunded=%t, want failed and unrefunded", rec.Status, rec.Refunded)
	}
	if got := env.credits.balance("user-1"); got != 8 {
		t.Errorf("balance = %d, want the debit standing until reconciliation", got)
	}
	stored := env.gens.mustGet(t, rec.ID)
	if stored.Refunded {
		t.Error("the failed refund must not be recorded as done")
	}
}

func TestGenerateCallerCancelAfterDebitStillCompletes(t *testing.T) {
	env := newTestEnv(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.registry = synth.NewRegistry(&stubSynth{hook: cancel})
	env.renderer = &ctxCheckRenderer{inner: render.NewStaticRenderer()}

	rec, err := env.pipeline().Generate(ctx, gamingRequest())
	if ctx.Err() == nil {
		t.Fatal("test did not cancel the caller context")
	}
	if err != nil {
		t.Fatalf("Generate: %v, want completion despite the disconnect", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if !strings.Contains(rec.FinalImageURL, "fx=") {
		t.Error("post-processing should still run after the caller went away")
	}
	if got := env.credits.balance("user-1"); got != 8 {
		t.Errorf("balance = %d, want the settled debit at 8", got)
	}
}

func TestGenerateConcurrentDebitsRespectFloor(t *testing.T) {
	env := newTestEnv(2)
	p := env.pipeline()

	var wg sync.WaitGroup
	recs := make([]*domain.GenerationRecord, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = p.Generate(context.Background(), gamingRequest())
		}(i)
	}
	wg.Wait()

	completed, insufficient := 0, 0
	for i := range recs {
		switch {
		case errs[i] == nil && recs[i].Status == domain.StatusCompleted:
			completed++
		case errors.Is(errs[i], domain.ErrInsufficientCredits):
			insufficient++
			if recs[i].Refunded {
				t.Error("the losing request was never debited and must not refund")
			}
		default:
			t.Fatalf("unexpected outcome: rec=%+v err=%v", recs[i], errs[i])
		}
	}
	if completed != 1 || insufficient != 1 {
		t.Fatalf("completed=%d insufficient=%d, want exactly one of each", completed, insufficient)
	}
	if got := env.credits.balance("user-1"); got != 0 {
		t.Errorf("balance = %d, want 0 and never negative", got)
	}
	if env.credits.debits() != 1 || env.credits.refundsWritten() != 0 {
		t.Errorf("debits=%d refunds=%d, want one debit and no refunds", env.credits.debits(), env.credits.refundsWritten())
	}
}

func TestGenerateUnmatchedWhenCatalogUnavailable(t *testing.T) {
	env := newTestEnv(10)
	env.refs.listErr = errors.New("catalog offline")

	rec, err := env.pipeline().Generate(context.Background(), gamingRequest())
	if err != nil {
		t.Fatalf("Generate: %v, want the run to proceed unmatched", err)
	}
	if rec.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.Match != nil {
		t.Errorf("match = %+v, want none", rec.Match)
	}
	if strings.Contains(rec.Prompt.Text, "Zero Damage Run") {
		t.Error("unmatched prompt must not borrow reference layout")
	}
}

func TestGenerateHonorsPreferredMood(t *testing.T) {
	env := newTestEnv(10)
	req := gamingRequest()
	req.UserPrompt = "Tiny houses built from shipping containers tour"
	req.Topic = ""
	req.PreferredMood = "Mysterious"

	rec, err := env.pipeline().Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if rec.Metadata.Mood != "mysterious" {
		t.Errorf("mood = %q, want the preferred mood to win", rec.Metadata.Mood)
	}
	if rec.Metadata.EmotionalExpression != "half-lit guarded look" {
		t.Errorf("expression = %q, want it re-derived for the preferred mood", rec.Metadata.EmotionalExpression)
	}
	if rec.Prompt.MoodApplied != "mysterious" {
		t.Errorf("moodApplied = %q, want mysterious", rec.Prompt.MoodApplied)
	}
	// Nothing matches a mysterious mood, so the most viral reference
	// wins at score zero and contributes no layout guidance.
	if rec.Match == nil || rec.Match.ReferenceID != "ref-gaming" || rec.Match.Score != 0 {
		t.Errorf("match = %+v, want ref-gaming at score 0", rec.Match)
	}
}

func TestAdvanceRejectsIllegalTransitions(t *testing.T) {
	cases := []struct {
		name string
		from domain.Status
		to   domain.Status
	}{
		{"backward step", domain.StatusGenerating, domain.StatusAnalyzing},
		{"out of completed", domain.StatusCompleted, domain.StatusGenerating},
		{"out of failed", domain.StatusFailed, domain.StatusValidating},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(10)
			rec := &domain.GenerationRecord{ID: "gen-1", UserID: "user-1", Status: tc.from}
			if err := env.gens.Create(context.Background(), rec); err != nil {
				t.Fatalf("Create: %v", err)
			}

			err := env.pipeline().advance(context.Background(), rec, tc.to, zerolog.Nop())
			if err == nil || !strings.Contains(err.Error(), "illegal transition") {
				t.Fatalf("advance(%s -> %s) = %v, want illegal transition error", tc.from, tc.to, err)
			}
			if got := env.gens.stageLog("gen-1"); len(got) != 0 {
				t.Errorf("stageLog = %v, want no status written", got)
			}
			if rec.Status != tc.from {
				t.Errorf("status = %s, want %s untouched", rec.Status, tc.from)
			}
		})
	}
}
