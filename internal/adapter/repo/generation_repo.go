package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
	"thumbforge/internal/sqlinline"
)

// GenerationRepositoryPG implements domain.GenerationRepository.
type GenerationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewGenerationRepository creates a generation repository backed by PostgreSQL.
func NewGenerationRepository(sql infra.SQLExecutor) *GenerationRepositoryPG {
	return &GenerationRepositoryPG{sql: sql}
}

// Create inserts a fresh record with its request snapshot.
func (r *GenerationRepositoryPG) Create(ctx context.Context, rec *domain.GenerationRecord) error {
	request, err := json.Marshal(rec.Request)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertGeneration, rec.ID, rec.UserID, rec.Status, request)
	return err
}

// SetStatus advances the lifecycle stage.
func (r *GenerationRepositoryPG) SetStatus(ctx context.Context, id string, status domain.Status) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetGenerationStatus, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// SetAnalysis stores the extracted user metadata.
func (r *GenerationRepositoryPG) SetAnalysis(ctx context.Context, id string, md domain.UserMetadata) error {
	payload, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetGenerationAnalysis, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// SetMatch stores the chosen reference. A nil match leaves the record
// unmatched and is not an error.
func (r *GenerationRepositoryPG) SetMatch(ctx context.Context, id string, match *domain.MatchResult) error {
	if match == nil {
		return nil
	}
	matchedOn, err := json.Marshal(match.MatchedOn)
	if err != nil {
		return fmt.Errorf("marshal matched_on: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetGenerationMatch, id, match.ReferenceID, match.Score, matchedOn)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// SetPrompt stores the engineered prompt snapshot.
func (r *GenerationRepositoryPG) SetPrompt(ctx context.Context, id string, prompt domain.EngineeredPrompt) error {
	payload, err := json.Marshal(prompt)
	if err != nil {
		return fmt.Errorf("marshal prompt: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QSetGenerationPrompt, id, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// SetSynthesis stores the raw image and what it cost.
func (r *GenerationRepositoryPG) SetSynthesis(ctx context.Context, id, rawImageURL, provider string, creditsCharged int) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QSetGenerationSynthesis, id, rawImageURL, provider, creditsCharged)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// MarkCompleted writes the terminal success snapshot.
func (r *GenerationRepositoryPG) MarkCompleted(ctx context.Context, rec *domain.GenerationRecord) error {
	assessment, err := json.Marshal(rec.Assessment)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	effects, err := json.Marshal(rec.AppliedEffects)
	if err != nil {
		return fmt.Errorf("marshal applied effects: %w", err)
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QCompleteGeneration, rec.ID, rec.FinalImageURL, assessment, effects)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, rec.ID)
	}
	return nil
}

// MarkFailed writes the terminal failure with its reason.
func (r *GenerationRepositoryPG) MarkFailed(ctx context.Context, id, reason string, refunded bool) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QFailGeneration, id, reason, refunded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.writeConflict(ctx, id)
	}
	return nil
}

// GetByID fetches a record by its identifier.
func (r *GenerationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationByID, id)
	rec, err := scanGeneration(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByUser returns the caller's most recent records.
func (r *GenerationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectGenerationsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GenerationRecord
	for rows.Next() {
		rec, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// UnsettledGeneration is the reconciliation view of a record that was
// never closed out, together with the ledger debit that may still need
// compensating. Debited is zero when the pipeline failed before the
// charge.
type UnsettledGeneration struct {
	ID           string
	UserID       string
	Status       domain.Status
	Debited      int
	ErrorMessage string
	UpdatedAt    time.Time
}

// ListUnsettled returns records needing operator attention: rows stuck
// in a non-terminal stage since before cutoff, and failed rows whose
// debit was never refunded. Oldest first. This lives on the concrete
// type, not domain.GenerationRepository: only the reconcile tool
// needs it.
func (r *GenerationRepositoryPG) ListUnsettled(ctx context.Context, cutoff time.Time, limit int) ([]UnsettledGeneration, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectUnsettledGenerations, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UnsettledGeneration
	for rows.Next() {
		var u UnsettledGeneration
		if err := rows.Scan(&u.ID, &u.UserID, &u.Status, &u.Debited, &u.ErrorMessage, &u.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MarkRefunded flips the refunded flag after a late compensating
// refund. False means the record was not failed-and-unrefunded, so
// there was nothing to repair.
func (r *GenerationRepositoryPG) MarkRefunded(ctx context.Context, id string) (bool, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkGenerationRefunded, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGeneration(row scanner) (*domain.GenerationRecord, error) {
	var (
		rec         domain.GenerationRecord
		request     []byte
		metadata    []byte
		referenceID string
		matchScore  float64
		matchedOn   []byte
		prompt      []byte
		assessment  []byte
		effects     []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Status,
		&request,
		&metadata,
		&referenceID,
		&matchScore,
		&matchedOn,
		&prompt,
		&rec.RawImageURL,
		&rec.FinalImageURL,
		&rec.Provider,
		&assessment,
		&effects,
		&rec.CreditsCharged,
		&rec.Refunded,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := unmarshalInto(request, &rec.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := unmarshalInto(metadata, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := unmarshalInto(prompt, &rec.Prompt); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	if err := unmarshalInto(assessment, &rec.Assessment); err != nil {
		return nil, fmt.Errorf("decode assessment: %w", err)
	}
	if err := unmarshalInto(effects, &rec.AppliedEffects); err != nil {
		return nil, fmt.Errorf("decode applied effects: %w", err)
	}
	if referenceID != "" {
		match := domain.MatchResult{ReferenceID: referenceID, Score: matchScore}
		if err := unmarshalInto(matchedOn, &match.MatchedOn); err != nil {
			return nil, fmt.Errorf("decode matched_on: %w", err)
		}
		rec.Match = &match
	}
	return &rec, nil
}

func unmarshalInto(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// writeConflict explains why an update touched no rows: the record is
// either gone or already terminal.
func (r *GenerationRepositoryPG) writeConflict(ctx context.Context, id string) error {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationStatus, id)
	var status domain.Status
	if err := row.Scan(&status); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return err
	}
	if status.Terminal() {
		return domain.ErrTerminalState
	}
	return domain.ErrNotFound
}

var _ domain.GenerationRepository = (*GenerationRepositoryPG)(nil)
