// Package fetch reads the remote collection with bounded exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

// ErrFetchExhausted is returned when every attempt failed. The last attempt's error
// is wrapped alongside it.
var ErrFetchExhausted = errors.New("could not load data after all retry attempts")

// Reader is the part of the store the fetcher depends on.
type Reader interface {
	ReadAll(ctx context.Context) (models.RawCollection, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config controls the retry schedule.
type Config struct {
	// MaxAttempts is the total number of reads, including the first. Default: 5.
	MaxAttempts int

	// BaseDelay is the wait after the first failure; it doubles after each
	// following failure. Default: 1 second.
	BaseDelay time.Duration
}

// DefaultConfig returns the standard schedule: 5 attempts, waits of 1s, 2s, 4s, 8s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
	}
}

// Fetcher wraps a Reader with retries.
type Fetcher struct {
	reader Reader
	config Config
	sleep  SleepFunc
	log    zerolog.Logger
}

// NewFetcher creates a fetcher that waits on the real clock.
func NewFetcher(reader Reader, config Config) *Fetcher {
	return NewFetcherWithSleep(reader, config, contextSleep)
}

// NewFetcherWithSleep creates a fetcher with an explicit sleep function (for testing).
func NewFetcherWithSleep(reader Reader, config Config, sleep SleepFunc) *Fetcher {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &Fetcher{
		reader: reader,
		config: config,
		sleep:  sleep,
		log:    logger.WithComponent("fetch"),
	}
}

// Backoff returns the wait after the failure of the given zero-based attempt.
func (c Config) Backoff(attempt int) time.Duration {
	return c.BaseDelay * time.Duration(1<<uint(attempt))
}

// FetchWithRetry reads the collection, retrying failed reads. Individual failures are
// logged, not returned. After MaxAttempts failures it returns ErrFetchExhausted.
func (f *Fetcher) FetchWithRetry(ctx context.Context) (models.RawCollection, error) {
	const op = "FetchWithRetry"

	var lastErr error
	for attempt := 0; attempt < f.config.MaxAttempts; attempt++ {
		collection, err := f.reader.ReadAll(ctx)
		if err == nil {
			if attempt > 0 {
				f.log.Info().
					Int("attempt", attempt+1).
					Msg("Collection fetched after retry")
			}
			return collection, nil
		}
		lastErr = err

		f.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", f.config.MaxAttempts).
			Msg("Fetch attempt failed")

		if attempt == f.config.MaxAttempts-1 {
			break
		}
		if err := f.sleep(ctx, f.config.Backoff(attempt)); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	f.log.Error().
		Err(lastErr).
		Int("attempts", f.config.MaxAttempts).
		Msg("Failed to fetch data after multiple retries")

	return nil, fmt.Errorf("%s: %w: %w", op, ErrFetchExhausted, lastErr)
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
