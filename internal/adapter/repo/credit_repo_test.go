package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"thumbforge/internal/domain"

	"github.com/jackc/pgx/v5"
)

func TestBalanceUnknownUserIsZero(t *testing.T) {
	db := &stubDB{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	r := NewCreditRepository(db)

	balance, err := r.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance returned error: %v", err)
	}
	if balance != 0 {
		t.Fatalf("balance = %d, want 0", balance)
	}
}

func TestDebitUsageInsufficientCredits(t *testing.T) {
	db := &stubDB{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			if !strings.Contains(query, "credits >= (select amount from input)") {
				t.Fatalf("debit statement missing floor check: %s", query)
			}
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	r := NewCreditRepository(db)

	_, err := r.DebitUsage(context.Background(), "u1", "4d0d2f1c-0000-0000-0000-000000000001", 2, "thumbnail generation")
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("DebitUsage error = %v, want ErrInsufficientCredits", err)
	}
}

func TestDebitUsageReturnsBalance(t *testing.T) {
	db := &stubDB{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				*(dest[0].(*int)) = 8
				return nil
			}}
		},
	}
	r := NewCreditRepository(db)

	balance, err := r.DebitUsage(context.Background(), "u1", "4d0d2f1c-0000-0000-0000-000000000001", 2, "thumbnail generation")
	if err != nil {
		t.Fatalf("DebitUsage returned error: %v", err)
	}
	if balance != 8 {
		t.Fatalf("balance = %d, want 8", balance)
	}
}

func TestDebitUsageRejectsNonPositiveAmount(t *testing.T) {
	r := NewCreditRepository(&stubDB{})
	if _, err := r.DebitUsage(context.Background(), "u1", "gen", 0, ""); err == nil {
		t.Fatalf("DebitUsage(0) error = nil, want failure")
	}
}

func TestRefundUsageAlreadyRefunded(t *testing.T) {
	db := &stubDB{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			if !strings.Contains(query, "on conflict (generation_id) where entry_type = 'refund'") {
				t.Fatalf("refund statement missing uniqueness guard: %s", query)
			}
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	r := NewCreditRepository(db)

	refunded, _, err := r.RefundUsage(context.Background(), "u1", "4d0d2f1c-0000-0000-0000-000000000001", 2, "generation failed")
	if err != nil {
		t.Fatalf("RefundUsage returned error: %v", err)
	}
	if refunded {
		t.Fatalf("refunded = true, want false for duplicate refund")
	}
}

func TestRefundUsageWritesOnce(t *testing.T) {
	db := &stubDB{
		queryRowFunc: func(ctx context.Context, query string, args ...any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				*(dest[0].(*int)) = 10
				return nil
			}}
		},
	}
	r := NewCreditRepository(db)

	refunded, balance, err := r.RefundUsage(context.Background(), "u1", "4d0d2f1c-0000-0000-0000-000000000001", 2, "generation failed")
	if err != nil {
		t.Fatalf("RefundUsage returned error: %v", err)
	}
	if !refunded || balance != 10 {
		t.Fatalf("RefundUsage = (%v, %d), want (true, 10)", refunded, balance)
	}
}

func TestGrantValidatesEntryType(t *testing.T) {
	r := NewCreditRepository(&stubDB{})
	if _, err := r.Grant(context.Background(), "u1", 5, domain.LedgerEntryType("gift"), "promo"); err == nil {
		t.Fatalf("Grant with unknown entry type error = nil, want failure")
	}
}
