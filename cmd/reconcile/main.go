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

// reconciler closes out generations the pipeline never settled: records
// stranded mid-stage by a crash, and failed records whose refund was
// lost. The refund path is idempotent, so running this next to a live
// API is safe.
type reconciler struct {
	generations *repo.GenerationRepositoryPG
	credits     *repo.CreditRepositoryPG
	logger      infra.Logger
	dryRun      bool
}

func main() {
	var (
		olderThanFlag time.Duration
		limitFlag     int
		dryRunFlag    bool
	)
	flag.DurationVar(&olderThanFlag, "older-than", 15*time.Minute, "treat records untouched for this long as stalled; must exceed the pipeline's worst case run time")
	flag.IntVar(&limitFlag, "limit", 50, "maximum records repaired in one run")
	flag.BoolVar(&dryRunFlag, "dry-run", false, "report what would be repaired without writing")
	flag.Parse()

	if olderThanFlag <= 0 {
		exitWithError(errors.New("-older-than must be positive"))
	}
	if limitFlag <= 0 {
		exitWithError(fmt.Errorf("-limit must be positive, got %d", limitFlag))
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

	logger := infra.NewLogger("cli", "reconcile")
	runner := infra.NewSQLRunner(pool, logger)
	r := &reconciler{
		generations: repo.NewGenerationRepository(runner),
		credits:     repo.NewCreditRepository(runner),
		logger:      logger,
		dryRun:      dryRunFlag,
	}

	listCtx, cancelList := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelList()
	unsettled, err := r.generations.ListUnsettled(listCtx, time.Now().Add(-olderThanFlag), limitFlag)
	if err != nil {
		exitWithError(fmt.Errorf("failed to list unsettled generations: %w", err))
	}
	if len(unsettled) == 0 {
		fmt.Println("Nothing to reconcile")
		return
	}

	var failed, refunds int
	for _, rec := range unsettled {
		markedFailed, refundIssued := r.reconcile(rec)
		if markedFailed {
			failed++
		}
		if refundIssued {
			refunds++
		}
	}

	if dryRunFlag {
		fmt.Printf("Dry run: %d records need repair\n", len(unsettled))
		return
	}
	fmt.Printf("Reconciled %d records: %d marked failed, %d refunds issued\n", len(unsettled), failed, refunds)
}

// reconcile repairs one record: compensate the debit when one exists,
// then close the record out. Already failed records only need the
// refund side.
func (r *reconciler) reconcile(rec repo.UnsettledGeneration) (markedFailed, refundIssued bool) {
	logger := r.logger.With().
		Str("generation_id", rec.ID).
		Str("status", string(rec.Status)).
		Int("debited", rec.Debited).
		Logger()

	if r.dryRun {
		fmt.Printf("would reconcile %s status=%s debited=%d\n", rec.ID, rec.Status, rec.Debited)
		return false, false
	}

	refunded := false
	if rec.Debited > 0 {
		claimed, balance, err := r.refund(rec)
		if err != nil {
			logger.Error().Err(err).Msg("reconcile: refund failed")
		} else {
			// claimed false means a refund row already existed.
			refunded = true
			if claimed {
				refundIssued = true
				logger.Info().Int("balance", balance).Msg("reconcile: refund issued")
			}
		}
	}

	if rec.Status == domain.StatusFailed {
		if refunded {
			if _, err := r.markRefunded(rec.ID); err != nil {
				logger.Error().Err(err).Msg("reconcile: refunded flag update failed")
			}
		}
		return false, refundIssued
	}

	reason := fmt.Sprintf("reconcile: stalled in %s", rec.Status)
	if err := r.markFailed(rec.ID, reason, refunded); err != nil {
		logger.Error().Err(err).Msg("reconcile: mark failed did not persist")
		return false, refundIssued
	}
	logger.Warn().Bool("refunded", refunded).Msg("reconcile: record closed out")
	return true, refundIssued
}

func (r *reconciler) refund(rec repo.UnsettledGeneration) (bool, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	description := fmt.Sprintf("reconcile: stalled in %s", rec.Status)
	if rec.Status == domain.StatusFailed {
		description = "reconcile: late refund"
	}
	return r.credits.RefundUsage(ctx, rec.UserID, rec.ID, rec.Debited, description)
}

func (r *reconciler) markRefunded(id string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.generations.MarkRefunded(ctx, id)
}

func (r *reconciler) markFailed(id, reason string, refunded bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.generations.MarkFailed(ctx, id, reason, refunded)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
