package handlers

import (
	"net/http"
	"strings"

	"thumbforge/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var displayCaser = cases.Title(language.English)

type referenceView struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	CategoryDisplay string   `json:"category_display"`
	Style           string   `json:"style"`
	StyleDisplay    string   `json:"style_display"`
	ViralScore      float64  `json:"viral_score"`
	SourceURL       string   `json:"source_url,omitempty"`
	Mood            string   `json:"mood,omitempty"`
	Lighting        string   `json:"lighting,omitempty"`
	HasText         bool     `json:"has_text,omitempty"`
	TextStyle       string   `json:"text_style,omitempty"`
	Symmetry        string   `json:"symmetry,omitempty"`
	ColorPalette    []string `json:"color_palette,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
}

// ReferencesList serves the active catalog, optionally narrowed the
// same way the matcher narrows: by topic, then by style.
func (a *App) ReferencesList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	topic := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("topic")))
	style := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("style")))

	candidates, err := a.Catalog.Candidates(r.Context(), topic, style)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: load references failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load references")
		return
	}

	items := make([]referenceView, 0, len(candidates))
	for _, cand := range candidates {
		items = append(items, referenceViewOf(cand.Reference, cand.Metadata))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func referenceViewOf(ref domain.ReferenceThumbnail, md *domain.ThumbnailMetadata) referenceView {
	v := referenceView{
		ID:              ref.ID,
		Title:           ref.Title,
		Category:        ref.Category,
		CategoryDisplay: displayCaser.String(ref.Category),
		Style:           ref.Style,
		StyleDisplay:    displayCaser.String(ref.Style),
		ViralScore:      ref.ViralScore,
		SourceURL:       ref.SourceURL,
	}
	if md != nil {
		v.Mood = md.Mood
		v.Lighting = md.Lighting
		v.HasText = md.HasText
		v.TextStyle = md.TextStyle
		v.Symmetry = md.Symmetry
		v.ColorPalette = md.ColorPalette
		v.Confidence = md.Confidence
	}
	return v
}
