// Copyright 2025 The ebnis-fe Authors
// SPDX-License-Identifier: Apache-2.0

package ebsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func tinyBackoff() *SchedulerConfig {
	return &SchedulerConfig{
		BackoffMin: time.Millisecond,
		BackoffMax: 4 * time.Millisecond,
	}
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	var passes int32
	s := NewScheduler(func(context.Context) (int, error) {
		atomic.AddInt32(&passes, 1)
		return 0, nil
	}, tinyBackoff(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&passes) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancellation")
	}
}

func TestSchedulerPauseSkipsPasses(t *testing.T) {
	var passes int32
	s := NewScheduler(func(context.Context) (int, error) {
		atomic.AddInt32(&passes, 1)
		return 0, nil
	}, tinyBackoff(), nil)

	s.Pause()
	require.True(t, s.Paused())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, atomic.LoadInt32(&passes))

	s.Resume()
	require.False(t, s.Paused())
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&passes) >= 1
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerBacksOffOnErrorAndRecovers(t *testing.T) {
	var passes atomic.Int32
	fail := int32(3)
	s := NewScheduler(func(context.Context) (int, error) {
		if passes.Add(1) <= fail {
			return 0, errors.New("network down")
		}
		return 0, nil
	}, tinyBackoff(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// Three failures back off at 1ms, 2ms, 4ms; the loop still reaches the
	// healthy passes afterwards.
	require.Eventually(t, func() bool {
		return passes.Load() >= fail+2
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerRetriesWhilePending(t *testing.T) {
	var passes atomic.Int32
	s := NewScheduler(func(context.Context) (int, error) {
		if passes.Add(1) < 3 {
			return 5, nil
		}
		return 0, nil
	}, tinyBackoff(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return passes.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()
	require.Equal(t, time.Second, config.BackoffMin)
	require.Equal(t, 60*time.Second, config.BackoffMax)
}
