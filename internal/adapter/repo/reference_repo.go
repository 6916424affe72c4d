package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
	"thumbforge/internal/sqlinline"
)

// ReferenceRepositoryPG implements domain.ReferenceRepository.
type ReferenceRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewReferenceRepository creates a reference repository backed by PostgreSQL.
func NewReferenceRepository(sql infra.SQLExecutor) *ReferenceRepositoryPG {
	return &ReferenceRepositoryPG{sql: sql}
}

// ListActive returns active references ordered by viral score.
func (r *ReferenceRepositoryPG) ListActive(ctx context.Context) ([]domain.ReferenceThumbnail, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectActiveReferences)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReferenceThumbnail
	for rows.Next() {
		var ref domain.ReferenceThumbnail
		if err := rows.Scan(
			&ref.ID,
			&ref.Title,
			&ref.Category,
			&ref.Style,
			&ref.ViralScore,
			&ref.SourceURL,
			&ref.Active,
			&ref.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ListMetadata returns every stored thumbnail descriptor set.
func (r *ReferenceRepositoryPG) ListMetadata(ctx context.Context) ([]domain.ThumbnailMetadata, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectThumbnailMetadata)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ThumbnailMetadata
	for rows.Next() {
		var (
			md      domain.ThumbnailMetadata
			palette []byte
		)
		if err := rows.Scan(
			&md.ReferenceID,
			&md.SubjectPosition,
			&md.Mood,
			&md.Lighting,
			&md.EmotionalExpression,
			&md.TextPosition,
			&md.Contrast,
			&md.HasText,
			&md.TextStyle,
			&md.Symmetry,
			&palette,
			&md.Notes,
			&md.Confidence,
		); err != nil {
			return nil, err
		}
		if len(palette) > 0 {
			if err := json.Unmarshal(palette, &md.ColorPalette); err != nil {
				return nil, fmt.Errorf("decode color palette for %s: %w", md.ReferenceID, err)
			}
		}
		out = append(out, md)
	}
	return out, rows.Err()
}

// ListTopicPreferences returns every topic shortlist.
func (r *ReferenceRepositoryPG) ListTopicPreferences(ctx context.Context) ([]domain.TopicPreference, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectTopicPreferences)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TopicPreference
	for rows.Next() {
		var (
			pref domain.TopicPreference
			ids  []byte
		)
		if err := rows.Scan(&pref.Topic, &ids, &pref.UpdatedAt); err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			if err := json.Unmarshal(ids, &pref.ReferenceIDs); err != nil {
				return nil, fmt.Errorf("decode reference ids for topic %s: %w", pref.Topic, err)
			}
		}
		out = append(out, pref)
	}
	return out, rows.Err()
}

// UpsertReference inserts or updates one catalog entry.
func (r *ReferenceRepositoryPG) UpsertReference(ctx context.Context, ref domain.ReferenceThumbnail) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpsertReference,
		ref.ID, ref.Title, ref.Category, ref.Style, ref.ViralScore, ref.SourceURL, ref.Active)
	return err
}

// UpsertMetadata inserts or updates the descriptors of one reference.
func (r *ReferenceRepositoryPG) UpsertMetadata(ctx context.Context, md domain.ThumbnailMetadata) error {
	palette, err := json.Marshal(md.ColorPalette)
	if err != nil {
		return fmt.Errorf("marshal color palette: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertThumbnailMetadata,
		md.ReferenceID, md.SubjectPosition, md.Mood, md.Lighting,
		md.EmotionalExpression, md.TextPosition, md.Contrast,
		md.HasText, md.TextStyle, md.Symmetry, palette, md.Notes, md.Confidence)
	return err
}

// SetTopicPreference pins the candidate shortlist for a topic.
func (r *ReferenceRepositoryPG) SetTopicPreference(ctx context.Context, pref domain.TopicPreference) error {
	ids, err := json.Marshal(pref.ReferenceIDs)
	if err != nil {
		return fmt.Errorf("marshal reference ids: %w", err)
	}
	_, err = r.sql.Exec(ctx, sqlinline.QUpsertTopicPreference, pref.Topic, ids)
	return err
}

// DeactivateMissing retires every active reference absent from keepIDs
// and reports how many were turned off.
func (r *ReferenceRepositoryPG) DeactivateMissing(ctx context.Context, keepIDs []string) (int64, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeactivateMissingReferences, keepIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ domain.ReferenceRepository = (*ReferenceRepositoryPG)(nil)
