package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackgroundProcessManager_ShutdownStopsProcesses(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	started := make(chan struct{})
	bpm.StartProcess("worker", "blocks until cancelled", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})

	<-started
	require.Equal(t, 1, bpm.GetProcessCount())
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_StartTickerRunsImmediately(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	var runs atomic.Int32
	bpm.StartTicker("sweep", "ticks", time.Hour, func(ctx context.Context) {
		runs.Add(1)
	})

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_FinishedProcessIsForgotten(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	bpm.StartProcess("once", "returns immediately", func(ctx context.Context) {})

	require.Eventually(t, func() bool { return bpm.GetProcessCount() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_TickerSurvivesPanic(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	var runs atomic.Int32
	bpm.StartTicker("sweep", "panics on the first tick", 5*time.Millisecond, func(ctx context.Context) {
		if runs.Add(1) == 1 {
			panic("listing lock lost")
		}
	})

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, bpm.GetProcessCount())
	require.NoError(t, bpm.Shutdown(time.Second))
}

func TestBackgroundProcessManager_ReplaceCancelsOld(t *testing.T) {
	bpm := NewBackgroundProcessManager(context.Background())

	oldStopped := make(chan struct{})
	bpm.StartProcess("expiry", "first", func(ctx context.Context) {
		<-ctx.Done()
		close(oldStopped)
	})
	bpm.StartProcess("expiry", "second", func(ctx context.Context) {
		<-ctx.Done()
	})

	select {
	case <-oldStopped:
	case <-time.After(time.Second):
		t.Fatal("replaced process was not cancelled")
	}
	require.Equal(t, 1, bpm.GetProcessCount())
	require.NoError(t, bpm.Shutdown(time.Second))
}
