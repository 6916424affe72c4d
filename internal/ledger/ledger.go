// Package ledger is the single choke point for the credit side of a
// generation: one debit when the pipeline commits to synthesis, and
// exactly one compensating refund if it fails afterwards. No other code
// writes usage or refund entries.
package ledger

import (
	"context"
	"sync"

	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

const usageDescription = "thumbnail generation"

type Ledger struct {
	credits domain.CreditRepository
	cost    int
	logger  infra.Logger
}

// New wires the ledger to the credit store. cost is the fixed debit per
// accepted generation.
func New(credits domain.CreditRepository, cost int, logger infra.Logger) *Ledger {
	return &Ledger{credits: credits, cost: cost, logger: logger}
}

// Cost returns the fixed per-generation debit.
func (l *Ledger) Cost() int {
	return l.cost
}

// Balance reads the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	return l.credits.Balance(ctx, userID)
}

// Charge atomically debits the user for one generation and returns the
// handle that must later be settled or refunded.
// domain.ErrInsufficientCredits surfaces untouched.
func (l *Ledger) Charge(ctx context.Context, userID, generationID string) (*Charge, error) {
	balance, err := l.credits.DebitUsage(ctx, userID, generationID, l.cost, usageDescription)
	if err != nil {
		return nil, err
	}
	l.logger.Info().
		Str("user_id", userID).
		Str("generation_id", generationID).
		Int("amount", l.cost).
		Int("balance", balance).
		Msg("credits debited")
	return &Charge{ledger: l, userID: userID, generationID: generationID, amount: l.cost}, nil
}

// Charge tracks one debited generation until it is settled or refunded.
type Charge struct {
	ledger       *Ledger
	userID       string
	generationID string
	amount       int

	mu       sync.Mutex
	settled  bool
	refunded bool
}

// Amount returns the debited credit amount.
func (c *Charge) Amount() int {
	return c.amount
}

// Refund writes the compensating entry. It is safe to call more than
// once: the in-process latch and the ledger's per-generation refund
// guard both ensure at most one refund row ever exists. A settled
// charge refuses to refund.
func (c *Charge) Refund(ctx context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled {
		c.ledger.logger.Warn().
			Str("user_id", c.userID).
			Str("generation_id", c.generationID).
			Msg("refund requested on a settled charge")
		return nil
	}
	if c.refunded {
		return nil
	}
	written, balance, err := c.ledger.credits.RefundUsage(ctx, c.userID, c.generationID, c.amount, reason)
	if err != nil {
		return err
	}
	c.refunded = true
	if !written {
		c.ledger.logger.Debug().
			Str("generation_id", c.generationID).
			Msg("refund already recorded for this generation")
		return nil
	}
	c.ledger.logger.Info().
		Str("user_id", c.userID).
		Str("generation_id", c.generationID).
		Int("amount", c.amount).
		Int("balance", balance).
		Str("reason", reason).
		Msg("credits refunded")
	return nil
}

// Settle marks the charge as consumed by a completed generation.
func (c *Charge) Settle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settled = true
}
