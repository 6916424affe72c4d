package catalog

import (
	"context"
	"sync"
	"time"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

// Candidate pairs a reference with its descriptors. Metadata is nil for
// references that were never analyzed; they still compete in matching,
// just at score zero.
type Candidate struct {
	Reference domain.ReferenceThumbnail
	Metadata  *domain.ThumbnailMetadata
}

// Snapshot is one immutable view of the reference catalog.
type Snapshot struct {
	References []domain.ReferenceThumbnail
	metadata   map[string]*domain.ThumbnailMetadata
	topics     map[string][]string
	takenAt    time.Time
}

// MetadataFor returns the descriptors of one reference, or nil.
func (s *Snapshot) MetadataFor(referenceID string) *domain.ThumbnailMetadata {
	return s.metadata[referenceID]
}

// Catalog serves reference data from an in-process cache, refreshing
// from the repository when the snapshot is older than the TTL. A failed
// refresh keeps serving the previous snapshot.
type Catalog struct {
	repo   domain.ReferenceRepository
	ttl    time.Duration
	logger infra.Logger
	now    func() time.Time

	mu       sync.Mutex
	snapshot *Snapshot
	expires  time.Time
}

func New(repo domain.ReferenceRepository, ttl time.Duration, logger infra.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		repo:   repo,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the current catalog view, refreshing it when stale.
// Concurrent callers share one refresh.
func (c *Catalog) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.snapshot != nil && now.Before(c.expires) {
		return c.snapshot, nil
	}

	snap, err := c.load(ctx)
	if err != nil {
		if c.snapshot != nil {
			c.logger.Warn().Err(err).Msg("catalog refresh failed, serving stale snapshot")
			return c.snapshot, nil
		}
		return nil, err
	}

	c.snapshot = snap
	c.expires = now.Add(c.ttl)
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read reloads.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}

// Candidates selects the references to match against. A topic with a
// pinned shortlist restricts the search to that shortlist; otherwise
// the topic narrows by category when any category matches. A style
// filter that would empty the set is ignored rather than honored.
func (c *Catalog) Candidates(ctx context.Context, topic, style string) ([]Candidate, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	refs := snap.References
	if topic != "" {
		if ids := snap.topics[topic]; len(ids) > 0 {
			refs = filterByID(refs, ids)
		} else if byCategory := filterByCategory(refs, topic); len(byCategory) > 0 {
			refs = byCategory
		}
	}
	if style != "" {
		if byStyle := filterByStyle(refs, style); len(byStyle) > 0 {
			refs = byStyle
		}
	}

	out := make([]Candidate, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Candidate{Reference: ref, Metadata: snap.metadata[ref.ID]})
	}
	return out, nil
}

func (c *Catalog) load(ctx context.Context) (*Snapshot, error) {
	refs, err := c.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	mds, err := c.repo.ListMetadata(ctx)
	if err != nil {
		return nil, err
	}
	prefs, err := c.repo.ListTopicPreferences(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		References: refs,
		metadata:   make(map[string]*domain.ThumbnailMetadata, len(mds)),
		topics:     make(map[string][]string, len(prefs)),
		takenAt:    c.now(),
	}
	for i := range mds {
		snap.metadata[mds[i].ReferenceID] = &mds[i]
	}
	for _, p := range prefs {
		snap.topics[p.Topic] = p.ReferenceIDs
	}

	c.logger.Debug().
		Int("references", len(refs)).
		Int("metadata", len(mds)).
		Int("topics", len(prefs)).
		Msg("catalog snapshot loaded")
	return snap, nil
}

// filterByID keeps refs whose id is in ids, preserving the viral-score
// ordering of refs. Unknown or inactive ids simply drop out.
func filterByID(refs []domain.ReferenceThumbnail, ids []string) []domain.ReferenceThumbnail {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	var out []domain.ReferenceThumbnail
	for _, ref := range refs {
		if _, ok := keep[ref.ID]; ok {
			out = append(out, ref)
		}
	}
	return out
}

func filterByCategory(refs []domain.ReferenceThumbnail, category string) []domain.ReferenceThumbnail {
	var out []domain.ReferenceThumbnail
	for _, ref := range refs {
		if ref.Category == category {
			out = append(out, ref)
		}
	}
	return out
}

func filterByStyle(refs []domain.ReferenceThumbnail, style string) []domain.ReferenceThumbnail {
	var out []domain.ReferenceThumbnail
	for _, ref := range refs {
		if ref.Style == style {
			out = append(out, ref)
		}
	}
	return out
}
