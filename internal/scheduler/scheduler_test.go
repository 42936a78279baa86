package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_AddAndRunNow(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add("sweep", "@every 1h", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.RunNow("sweep"))
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, []string{"sweep"}, s.Jobs())
}

func TestScheduler_EmptySpecIgnored(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("reload", "", func(context.Context) error { return nil }))
	assert.Empty(t, s.Jobs())
}

func TestScheduler_Errors(t *testing.T) {
	s := New()
	assert.Error(t, s.Add("bad", "not a schedule", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("sweep", "@every 1m", func(context.Context) error { return nil }))
	assert.Error(t, s.Add("sweep", "@every 1m", func(context.Context) error { return nil }))
	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_FailedJobDoesNotPanic(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("fail", "@every 1h", func(context.Context) error {
		return errors.New("boom")
	}))
	assert.NotPanics(t, func() { _ = s.RunNow("fail") })
}

func TestScheduler_JobContextHasDeadline(t *testing.T) {
	s := New(WithJobTimeout(time.Second))
	var hasDeadline atomic.Bool
	require.NoError(t, s.Add("check", "@every 1h", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hasDeadline.Store(ok)
		return nil
	}))
	require.NoError(t, s.RunNow("check"))
	assert.True(t, hasDeadline.Load())
}

func TestScheduler_StartStopAndNext(t *testing.T) {
	s := New()
	require.NoError(t, s.Add("sweep", "@every 1s", func(context.Context) error { return nil }))
	s.Start()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.Next("sweep").IsZero())
	assert.True(t, s.Next("missing").IsZero())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
