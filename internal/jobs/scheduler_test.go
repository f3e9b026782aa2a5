package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitflow/pkg/trace"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, zap.NewNop())
	assert.Error(t, s.Add("broken", "every minute please", time.Second, func(ctx context.Context) error { return nil }))
	assert.NoError(t, s.Add("reminders", "@every 1m", time.Second, func(ctx context.Context) error { return nil }))
	assert.NoError(t, s.Add("purge", "0 3 * * *", time.Second, func(ctx context.Context) error { return nil }))
}

func TestRunPassesTracedDeadlineContext(t *testing.T) {
	s := NewScheduler(time.UTC, zap.NewNop())

	var (
		traceID     string
		hasDeadline bool
	)
	s.run("probe", time.Minute, func(ctx context.Context) error {
		traceID = trace.FromContext(ctx)
		_, hasDeadline = ctx.Deadline()
		return errors.New("boom")
	})

	assert.NotEmpty(t, traceID)
	assert.True(t, hasDeadline)
}

func TestStopCancelsRunningJobs(t *testing.T) {
	s := NewScheduler(time.UTC, zap.NewNop())
	started := make(chan struct{})
	finished := make(chan error, 1)

	go s.run("slow", time.Minute, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	})
	<-started

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(stopCtx)

	select {
	case err := <-finished:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("job was not cancelled")
	}
}
