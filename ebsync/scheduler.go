// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// SchedulerConfig holds the retry timing of the background upload loop.
type SchedulerConfig struct {
	BackoffMin time.Duration // 1s
	BackoffMax time.Duration // 60s
}

// DefaultSchedulerConfig returns the standard retry timing.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		BackoffMin: 1 * time.Second,
		BackoffMax: 60 * time.Second,
	}
}

// Scheduler retries the upload pass in the background until nothing is
// pending. UploadFunc runs one full pass and returns the outstanding count;
// a non-zero count or an error backs the loop off exponentially.
type Scheduler struct {
	UploadFunc func(context.Context) (int, error)
	config     *SchedulerConfig
	logger     *slog.Logger
	paused     int32
}

// NewScheduler builds a scheduler around one upload pass. A nil config uses
// DefaultSchedulerConfig; a nil logger falls back to slog.Default().
func NewScheduler(uploadFunc func(context.Context) (int, error), config *SchedulerConfig, logger *slog.Logger) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{UploadFunc: uploadFunc, config: config, logger: logger}
}

// Pause suspends upload attempts; the loop keeps ticking but skips the
// pass.
func (s *Scheduler) Pause() { atomic.StoreInt32(&s.paused, 1) }

// Resume re-enables upload attempts.
func (s *Scheduler) Resume() { atomic.StoreInt32(&s.paused, 0) }

// Paused reports whether upload attempts are currently suspended.
func (s *Scheduler) Paused() bool { return atomic.LoadInt32(&s.paused) == 1 }

// Run drives the retry loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	backoff := s.config.BackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if s.Paused() {
			if !sleep(ctx, backoff) {
				return
			}
			continue
		}

		outstanding, err := s.UploadFunc(ctx)
		switch {
		case err != nil:
			s.logger.Warn("upload pass failed", "error", err, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = backoff * 2
			if backoff > s.config.BackoffMax {
				backoff = s.config.BackoffMax
			}
		case outstanding > 0:
			s.logger.Info("upload pass left items pending",
				"outstanding", outstanding, "backoff", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = backoff * 2
			if backoff > s.config.BackoffMax {
				backoff = s.config.BackoffMax
			}
		default:
			backoff = s.config.BackoffMin
			if !sleep(ctx, backoff) {
				return
			}
		}
	}
}

// sleep waits for d or ctx cancellation, reporting false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
