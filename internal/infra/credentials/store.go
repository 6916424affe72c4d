package credentials

import (
	"context"
	"errors"
	"strings"

	"thumbforge/internal/infra"
	"thumbforge/internal/sqlinline"
)

// Provider names recognized by the credential store.
const (
	ProviderFal    = "fal"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderRender = "render"
)

// Store keeps provider API keys in the database so they can be rotated
// without redeploying. A key stored here takes precedence over the one
// from the environment.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// APIKey returns the stored key for provider, or the fallback when no
// row exists.
func (s *Store) APIKey(ctx context.Context, provider, fallback string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectProviderCredential, provider)
	var key string
	if err := row.Scan(&key); err != nil {
		if infra.IsNoRows(err) {
			return fallback, nil
		}
		return "", err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback, nil
	}
	return key, nil
}

// SetAPIKey stores or rotates the key for provider.
func (s *Store) SetAPIKey(ctx context.Context, provider, key string) error {
	provider = strings.TrimSpace(provider)
	key = strings.TrimSpace(key)
	if provider == "" {
		return errors.New("provider is required")
	}
	if key == "" {
		return errors.New("api key is required")
	}
	_, err := s.sql.Exec(ctx, sqlinline.QUpsertProviderCredential, provider, key)
	return err
}
