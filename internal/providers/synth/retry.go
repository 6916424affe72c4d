package synth

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"thumbforge/internal/infra"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// RetryOptions tunes the retry wrapper. Sleep is injectable for tests;
// the default waits on a timer or the context, whichever fires first.
type RetryOptions struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
	Logger      *infra.Logger
}

type retrySynthesizer struct {
	next        Synthesizer
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *infra.Logger
}

// WithRetry wraps next so that retryable failures are attempted again
// with exponential backoff (base, 2x, 4x, ...). Non-retryable failures
// and successes return immediately. At most MaxAttempts calls are made.
func WithRetry(next Synthesizer, opts RetryOptions) Synthesizer {
	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &retrySynthesizer{
		next:        next,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleep,
		logger:      logger,
	}
}

func (r *retrySynthesizer) Synthesize(ctx context.Context, req Request) (*Image, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		img, err := r.next.Synthesize(ctx, req)
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == r.maxAttempts {
			return nil, lastErr
		}
		delay := r.baseDelay << (attempt - 1)
		r.logger.Warn().
			Str("request_id", req.RequestID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("synthesis attempt failed, retrying")
		if err := r.sleep(ctx, delay); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ Synthesizer = (*retrySynthesizer)(nil)
