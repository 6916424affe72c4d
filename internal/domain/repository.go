package domain

import "context"

// GenerationRepository persists pipeline records. Every mutation is
// rejected once the record is terminal: implementations return
// ErrTerminalState for writes against completed or failed records.
type GenerationRepository interface {
	Create(ctx context.Context, rec *GenerationRecord) error
	SetStatus(ctx context.Context, id string, status Status) error
	SetAnalysis(ctx context.Context, id string, md UserMetadata) error
	SetMatch(ctx context.Context, id string, match *MatchResult) error
	SetPrompt(ctx context.Context, id string, prompt EngineeredPrompt) error
	SetSynthesis(ctx context.Context, id, rawImageURL, provider string, creditsCharged int) error
	MarkCompleted(ctx context.Context, rec *GenerationRecord) error
	MarkFailed(ctx context.Context, id, reason string, refunded bool) error
	GetByID(ctx context.Context, id string) (*GenerationRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]GenerationRecord, error)
}

// CreditRepository mutates balances and the ledger. Debit and refund
// are single atomic statements: the balance write and the ledger row
// land together or not at all.
type CreditRepository interface {
	Balance(ctx context.Context, userID string) (int, error)
	// DebitUsage withdraws amount from the user's balance and records a
	// usage entry. It returns the new balance, or
	// ErrInsufficientCredits when the balance would go below zero.
	DebitUsage(ctx context.Context, userID, generationID string, amount int, description string) (int, error)
	// RefundUsage returns amount to the user's balance and records a
	// refund entry. At most one refund row can exist per generation;
	// the bool reports whether this call actually wrote one.
	RefundUsage(ctx context.Context, userID, generationID string, amount int, description string) (bool, int, error)
	Grant(ctx context.Context, userID string, amount int, entryType LedgerEntryType, description string) (int, error)
	History(ctx context.Context, userID string, limit int) ([]CreditLedgerEntry, error)
}

// ReferenceRepository reads and seeds the reference catalog. Read
// methods return whole sets; the in-process catalog cache does the
// shaping.
type ReferenceRepository interface {
	ListActive(ctx context.Context) ([]ReferenceThumbnail, error)
	ListMetadata(ctx context.Context) ([]ThumbnailMetadata, error)
	ListTopicPreferences(ctx context.Context) ([]TopicPreference, error)
	UpsertReference(ctx context.Context, ref ReferenceThumbnail) error
	UpsertMetadata(ctx context.Context, md ThumbnailMetadata) error
	SetTopicPreference(ctx context.Context, pref TopicPreference) error
	DeactivateMissing(ctx context.Context, keepIDs []string) (int64, error)
}
