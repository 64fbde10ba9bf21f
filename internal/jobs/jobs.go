// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ebooking/internal/metrics"
)

// CodePurger is satisfied by repository.VerificationRepo.
type CodePurger interface {
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenPurger is satisfied by repository.TokenRepo.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleanup removes expired or consumed verification codes and dead session
// tokens.
type Cleanup struct {
	Codes   CodePurger
	Tokens  TokenPurger
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time
	Timeout time.Duration
}

// Run performs one cleanup pass.  Errors are logged; the next tick retries.
func (j *Cleanup) Run() {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now()
	}
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	codes, err := j.Codes.PurgeStale(ctx, now)
	if err != nil {
		j.Log.Error("purge verification codes failed", zap.Error(err))
	} else {
		j.Metrics.Purged(codes)
	}
	var tokens int64
	if j.Tokens != nil {
		if tokens, err = j.Tokens.PurgeExpired(ctx, now); err != nil {
			j.Log.Error("purge session tokens failed", zap.Error(err))
		}
	}
	j.Log.Info("cleanup finished", zap.Int64("codes", codes), zap.Int64("tokens", tokens))
}
