// Package pipeline drives one generation request through its stages in
// order: validate, analyze, match, compose, synthesize, post-process,
// deliver. Every stage transition is persisted before the stage runs,
// and the credit debit is compensated with a refund whenever a later
// stage fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"thumbforge/internal/catalog"
	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
	"thumbforge/internal/ledger"
	"thumbforge/internal/matcher"
	"thumbforge/internal/promptgen"
	"thumbforge/internal/providers/render"
	"thumbforge/internal/providers/synth"
	"thumbforge/internal/providers/vision"
	"thumbforge/internal/quality"
)

const defaultStageTimeout = 60 * time.Second

// Options collects the pipeline collaborators. All of them except
// Logger and StageTimeout are required.
type Options struct {
	Generations  domain.GenerationRepository
	Ledger       *ledger.Ledger
	Catalog      *catalog.Catalog
	Analyzer     vision.Analyzer
	Synthesizers *synth.Registry
	Renderer     render.Renderer
	Logger       infra.Logger
	StageTimeout time.Duration
}

// Pipeline is the orchestrator. It owns stage ordering and the
// debit/refund bracket; the heavy lifting lives in the collaborators.
type Pipeline struct {
	generations  domain.GenerationRepository
	ledger       *ledger.Ledger
	catalog      *catalog.Catalog
	analyzer     vision.Analyzer
	synthesizers *synth.Registry
	renderer     render.Renderer
	logger       infra.Logger
	stageTimeout time.Duration
	now          func() time.Time
}

func New(opts Options) *Pipeline {
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = defaultStageTimeout
	}
	return &Pipeline{
		generations:  opts.Generations,
		ledger:       opts.Ledger,
		catalog:      opts.Catalog,
		analyzer:     opts.Analyzer,
		synthesizers: opts.Synthesizers,
		renderer:     opts.Renderer,
		logger:       opts.Logger,
		stageTimeout: opts.StageTimeout,
		now:          time.Now,
	}
}

// Generate runs one request end to end and returns the final record.
// Invalid requests are rejected before anything is persisted or
// charged and return a *domain.ValidationError with a nil record. Any
// failure after that returns the failed record alongside the error, so
// callers can surface the generation id and refund state.
func (p *Pipeline) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationRecord, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := p.now().UTC()
	rec := &domain.GenerationRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Request:   req,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.generations.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("pipeline: create generation: %w", err)
	}
	logger := p.logger.With().
		Str("generation_id", rec.ID).
		Str("user_id", rec.UserID).
		Logger()
	logger.Info().Str("model", string(req.Model)).Msg("pipeline: generation accepted")

	if err := p.advance(ctx, rec, domain.StatusValidating, logger); err != nil {
		return p.failNoRefund(ctx, rec, logger, err)
	}
	balance, err := p.ledger.Balance(ctx, rec.UserID)
	if err != nil {
		return p.failNoRefund(ctx, rec, logger, fmt.Errorf("pipeline: balance precheck: %w", err))
	}
	if balance < p.ledger.Cost() {
		return p.failNoRefund(ctx, rec, logger, domain.ErrInsufficientCredits)
	}

	if err := p.advance(ctx, rec, domain.StatusAnalyzing, logger); err != nil {
		return p.failNoRefund(ctx, rec, logger, err)
	}
	md := p.analyze(ctx, req, logger)
	if err := p.generations.SetAnalysis(ctx, rec.ID, md); err != nil {
		return p.failNoRefund(ctx, rec, logger, fmt.Errorf("pipeline: persist analysis: %w", err))
	}
	rec.Metadata = md

	if err := p.advance(ctx, rec, domain.StatusMatching, logger); err != nil {
		return p.failNoRefund(ctx, rec, logger, err)
	}
	match, reference, refMeta := p.match(ctx, req, md, logger)
	if err := p.generations.SetMatch(ctx, rec.ID, match); err != nil {
		return p.failNoRefund(ctx, rec, logger, fmt.Errorf("pipeline: persist match: %w", err))
	}
	rec.Match = match

	if err := p.advance(ctx, rec, domain.StatusPrompting, logger); err != nil {
		return p.failNoRefund(ctx, rec, logger, err)
	}
	prompt := promptgen.Build(promptgen.ComposeInput{
		Request:   req,
		Metadata:  md,
		Reference: reference,
		RefMeta:   refMeta,
		Match:     match,
	}, 0)
	if err := p.generations.SetPrompt(ctx, rec.ID, prompt); err != nil {
		return p.failNoRefund(ctx, rec, logger, fmt.Errorf("pipeline: persist prompt: %w", err))
	}
	rec.Prompt = prompt
	logger.Info().
		Int("prompt_score", prompt.QualityScore).
		Str("style", prompt.StyleApplied).
		Msg("pipeline: prompt engineered")

	charge, err := p.ledger.Charge(ctx, rec.UserID, rec.ID)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			return p.failNoRefund(ctx, rec, logger, domain.ErrInsufficientCredits)
		}
		return p.failNoRefund(ctx, rec, logger, fmt.Errorf("pipeline: debit: %w", err))
	}
	rec.CreditsCharged = charge.Amount()
	// The user paid. A caller disconnect must not strand the record
	// mid-flight, so cancellation stops propagating past this point.
	ctx = context.WithoutCancel(ctx)

	if err := p.advance(ctx, rec, domain.StatusGenerating, logger); err != nil {
		return p.failRefund(ctx, rec, charge, logger, err)
	}
	image, err := p.synthesize(ctx, rec, prompt)
	if err != nil {
		return p.failRefund(ctx, rec, charge, logger, err)
	}
	if err := p.generations.SetSynthesis(ctx, rec.ID, image.URL, image.Provider, rec.CreditsCharged); err != nil {
		return p.failRefund(ctx, rec, charge, logger, fmt.Errorf("pipeline: persist synthesis: %w", err))
	}
	rec.RawImageURL = image.URL
	rec.Provider = image.Provider
	logger.Info().
		Str("provider", image.Provider).
		Int("width", image.Width).
		Int("height", image.Height).
		Msg("pipeline: image synthesized")

	if err := p.advance(ctx, rec, domain.StatusPostProcessing, logger); err != nil {
		return p.failRefund(ctx, rec, charge, logger, err)
	}
	finalURL, effects, assessment, err := p.postProcess(ctx, image.URL, logger)
	if err != nil {
		return p.failRefund(ctx, rec, charge, logger, err)
	}
	rec.FinalImageURL = finalURL
	rec.AppliedEffects = effects
	rec.Assessment = assessment

	rec.Status = domain.StatusCompleted
	rec.UpdatedAt = p.now().UTC()
	if err := p.generations.MarkCompleted(ctx, rec); err != nil {
		return p.failRefund(ctx, rec, charge, logger, fmt.Errorf("pipeline: persist completion: %w", err))
	}
	charge.Settle()
	logger.Info().
		Str("final_url", rec.FinalImageURL).
		Float64("quality_score", assessment.OverallScore).
		Int("credits_charged", rec.CreditsCharged).
		Msg("pipeline: generation completed")
	return rec, nil
}

// Preview engineers a prompt for req without creating a record or
// touching credits: analyze, match and compose only.
func (p *Pipeline) Preview(ctx context.Context, req domain.GenerationRequest, variations int) (domain.EngineeredPrompt, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.EngineeredPrompt{}, err
	}
	logger := p.logger.With().Str("user_id", req.UserID).Logger()
	md := p.analyze(ctx, req, logger)
	match, reference, refMeta := p.match(ctx, req, md, logger)
	return promptgen.Build(promptgen.ComposeInput{
		Request:   req,
		Metadata:  md,
		Reference: reference,
		RefMeta:   refMeta,
		Match:     match,
	}, variations), nil
}

// advance persists the stage transition and mirrors it on the record.
// Only forward transitions are legal; the status machine rejects the
// rest before anything is written.
func (p *Pipeline) advance(ctx context.Context, rec *domain.GenerationRecord, status domain.Status, logger infra.Logger) error {
	if !domain.CanTransition(rec.Status, status) {
		return fmt.Errorf("pipeline: illegal transition %s -> %s", rec.Status, status)
	}
	if err := p.generations.SetStatus(ctx, rec.ID, status); err != nil {
		return fmt.Errorf("pipeline: enter %s: %w", status, err)
	}
	rec.Status = status
	rec.UpdatedAt = p.now().UTC()
	logger.Info().Str("stage", string(status)).Msg("pipeline: stage entered")
	return nil
}

// analyze extracts visual direction from the request. Analysis is best
// effort: a failed analyzer downgrades to empty metadata rather than
// failing the run. An explicit preferred mood overrides whatever the
// analyzer found.
func (p *Pipeline) analyze(ctx context.Context, req domain.GenerationRequest, logger infra.Logger) domain.UserMetadata {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	md, err := p.analyzer.Analyze(stageCtx, vision.AnalyzeInput{
		Prompt:    req.UserPrompt,
		ImageRefs: req.UploadedImageRefs,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("pipeline: analysis failed, continuing without metadata")
		md = domain.UserMetadata{}
	}
	if req.PreferredMood != "" && req.PreferredMood != md.Mood {
		md.Mood = req.PreferredMood
		if expr := vision.ExpressionFor(req.PreferredMood); expr != "" {
			md.EmotionalExpression = expr
		}
	}
	return md
}

// match picks the reference guide for the prompt. Catalog trouble and
// empty candidate sets both degrade to an unmatched run.
func (p *Pipeline) match(ctx context.Context, req domain.GenerationRequest, md domain.UserMetadata, logger infra.Logger) (*domain.MatchResult, *domain.ReferenceThumbnail, *domain.ThumbnailMetadata) {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	candidates, err := p.catalog.Candidates(stageCtx, req.Topic, req.PreferredStyle)
	if err != nil {
		logger.Warn().Err(err).Msg("pipeline: reference lookup failed, proceeding unmatched")
		return nil, nil, nil
	}
	match := matcher.Best(md, candidates)
	if match == nil {
		logger.Info().Msg("pipeline: no reference candidates, proceeding unmatched")
		return nil, nil, nil
	}
	logger.Info().
		Str("reference_id", match.ReferenceID).
		Float64("match_score", match.Score).
		Msg("pipeline: reference matched")
	for i := range candidates {
		if candidates[i].Reference.ID == match.ReferenceID {
			return match, &candidates[i].Reference, candidates[i].Metadata
		}
	}
	return match, nil, nil
}

// synthesize routes the prompt to the model's synthesizer. Transient
// failures are retried inside the registry entries; whatever error
// escapes here is final for this run.
func (p *Pipeline) synthesize(ctx context.Context, rec *domain.GenerationRecord, prompt domain.EngineeredPrompt) (*synth.Image, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	image, err := p.synthesizers.For(rec.Request.Model).Synthesize(stageCtx, synth.Request{
		Prompt:         prompt.Text,
		NegativePrompt: prompt.NegativeText,
		Model:          rec.Request.Model,
		RequestID:      rec.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: synthesis: %w", err)
	}
	return image, nil
}

// postProcess probes the raw image, assesses it and applies the
// corrective plan. An unreachable renderer fails the run; lesser
// renderer trouble degrades to delivering the raw image instead.
func (p *Pipeline) postProcess(ctx context.Context, rawURL string, logger infra.Logger) (string, []string, domain.QualityAssessment, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	metrics, err := p.renderer.Probe(stageCtx, rawURL)
	if err != nil {
		if render.IsUnreachable(err) {
			return "", nil, domain.QualityAssessment{}, fmt.Errorf("pipeline: probe image: %w", err)
		}
		logger.Warn().Err(err).Msg("pipeline: probe failed, assessing without metrics")
		metrics = nil
	}
	assessment := quality.Assess(metrics)
	if !assessment.IsValid {
		logger.Warn().
			Float64("quality_score", assessment.OverallScore).
			Strs("issues", assessment.Issues).
			Msg("pipeline: quality below threshold, applying corrections")
	}
	plan := quality.PlanFor(assessment)

	finalURL, err := p.renderer.Apply(stageCtx, rawURL, plan)
	if err != nil {
		if render.IsUnreachable(err) {
			return "", nil, domain.QualityAssessment{}, fmt.Errorf("pipeline: apply effects: %w", err)
		}
		logger.Warn().Err(err).Msg("pipeline: effects failed, delivering raw image")
		return rawURL, nil, assessment, nil
	}
	return finalURL, plan.Effects(), assessment, nil
}

// failNoRefund closes the record for failures where nothing was
// debited: validation, the balance precheck and every pre-debit stage.
func (p *Pipeline) failNoRefund(ctx context.Context, rec *domain.GenerationRecord, logger infra.Logger, cause error) (*domain.GenerationRecord, error) {
	p.markFailed(ctx, rec, logger, cause, false)
	return rec, cause
}

// failRefund compensates the debit before closing the record. A refund
// that itself fails is logged and leaves the record marked unrefunded
// so the ledger can be reconciled by hand.
func (p *Pipeline) failRefund(ctx context.Context, rec *domain.GenerationRecord, charge *ledger.Charge, logger infra.Logger, cause error) (*domain.GenerationRecord, error) {
	refunded := true
	if err := charge.Refund(ctx, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("pipeline: refund failed")
		refunded = false
	}
	p.markFailed(ctx, rec, logger, cause, refunded)
	return rec, cause
}

func (p *Pipeline) markFailed(ctx context.Context, rec *domain.GenerationRecord, logger infra.Logger, cause error, refunded bool) {
	stage := string(rec.Status)
	rec.Status = domain.StatusFailed
	rec.ErrorMessage = cause.Error()
	rec.Refunded = refunded
	rec.UpdatedAt = p.now().UTC()
	if err := p.generations.MarkFailed(ctx, rec.ID, cause.Error(), refunded); err != nil {
		logger.Error().Err(err).Msg("pipeline: mark failed did not persist")
	}
	logger.Warn().
		Str("stage", stage).
		Bool("refunded", refunded).
		Err(cause).
		Msg("pipeline: generation failed")
}
