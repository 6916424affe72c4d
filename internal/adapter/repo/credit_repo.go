package repo

import (
	"context"
	"fmt"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
	"thumbforge/internal/sqlinline"
)

// CreditRepositoryPG implements domain.CreditRepository. Debit and
// refund ride single data-modifying CTE statements so the balance write
// and ledger row land atomically.
type CreditRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewCreditRepository creates a credit repository backed by PostgreSQL.
func NewCreditRepository(sql infra.SQLExecutor) *CreditRepositoryPG {
	return &CreditRepositoryPG{sql: sql}
}

// Balance returns the user's current credits. Unknown users hold zero.
func (r *CreditRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectCreditBalance, userID)
	var credits int
	if err := row.Scan(&credits); err != nil {
		if infra.IsNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return credits, nil
}

// DebitUsage withdraws amount and records the usage entry. The floor
// check happens inside the statement: no row back means the balance was
// too low.
func (r *CreditRepositoryPG) DebitUsage(ctx context.Context, userID, generationID string, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QDebitUsageCredits, userID, generationID, amount, description)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	return balance, nil
}

// RefundUsage returns amount to the balance at most once per
// generation. The bool reports whether this call wrote the refund row;
// false means somebody already did.
func (r *CreditRepositoryPG) RefundUsage(ctx context.Context, userID, generationID string, amount int, description string) (bool, int, error) {
	if amount <= 0 {
		return false, 0, fmt.Errorf("refund amount must be positive, got %d", amount)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QRefundUsageCredits, userID, generationID, amount, description)
	var balance int
	if err := row.Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, balance, nil
}

// Grant adds credits from purchases or bonuses, creating the user row
// when needed.
func (r *CreditRepositoryPG) Grant(ctx context.Context, userID string, amount int, entryType domain.LedgerEntryType, description string) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	if !domain.ValidLedgerEntryType(entryType) {
		return 0, fmt.Errorf("unknown ledger entry type %q", entryType)
	}
	row := r.sql.QueryRow(ctx, sqlinline.QGrantCredits, userID, amount, entryType, description)
	var balance int
	if err := row.Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}

// History returns the user's most recent ledger entries.
func (r *CreditRepositoryPG) History(ctx context.Context, userID string, limit int) ([]domain.CreditLedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QSelectCreditHistory, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CreditLedgerEntry
	for rows.Next() {
		var e domain.CreditLedgerEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.GenerationID,
			&e.EntryType,
			&e.Amount,
			&e.BalanceAfter,
			&e.Description,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
