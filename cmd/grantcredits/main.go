package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"thumbforge/internal/adapter/repo"
	"thumbforge/internal/domain"
	"thumbforge/internal/infra"
)

func main() {
	var (
		userFlag   string
		amountFlag int
		typeFlag   string
		reasonFlag string
	)

	flag.StringVar(&userFlag, "user", "", "user ID to credit")
	flag.IntVar(&amountFlag, "amount", 10, "credits to grant (must be positive)")
	flag.StringVar(&typeFlag, "type", string(domain.LedgerEntryBonus), "ledger entry type (purchase, bonus, referral_bonus)")
	flag.StringVar(&reasonFlag, "reason", "manual grant", "description stored on the ledger entry")
	flag.Parse()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}
	if amountFlag <= 0 {
		exitWithError(fmt.Errorf("-amount must be positive, got %d", amountFlag))
	}

	entryType := domain.LedgerEntryType(strings.TrimSpace(strings.ToLower(typeFlag)))
	switch entryType {
	case domain.LedgerEntryPurchase, domain.LedgerEntryBonus, domain.LedgerEntryReferralBonus:
	default:
		exitWithError(fmt.Errorf("unsupported entry type %q (usage and refund entries are written by the pipeline)", typeFlag))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "grantcredits")
	credits := repo.NewCreditRepository(infra.NewSQLRunner(pool, logger))

	grantCtx, cancelGrant := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelGrant()
	balance, err := credits.Grant(grantCtx, userID, amountFlag, entryType, strings.TrimSpace(reasonFlag))
	if err != nil {
		exitWithError(fmt.Errorf("failed to grant credits: %w", err))
	}

	fmt.Printf("Granted %d credits to %s (%s)\n", amountFlag, userID, entryType)
	fmt.Printf("balance=%d\n", balance)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
