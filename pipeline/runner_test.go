package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arcsat.dev/satellite/pipeline"
)

func TestSubmitDeclinesWhenBusy(t *testing.T) {
	locks := pipeline.NewLockTable()
	runner := pipeline.NewRunner(locks, zaptest.NewLogger(t))

	started := make(chan struct{})
	release := make(chan struct{})

	_, err := runner.Submit(context.Background(), pipeline.Job{
		LockName: pipeline.LockContents,
		Run: func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		},
	})
	require.NoError(t, err)

	<-started

	_, err = runner.Submit(context.Background(), pipeline.Job{
		LockName: pipeline.LockContents,
		Run:      func(ctx context.Context) error { return nil },
	})
	require.ErrorIs(t, err, pipeline.ErrBusy)

	close(release)
	require.Eventually(t, func() bool {
		return locks.TryLock(pipeline.LockContents)
	}, time.Second, 10*time.Millisecond)
}

func TestLockTableRWSplit(t *testing.T) {
	locks := pipeline.NewLockTable()

	require.True(t, locks.TryRLock())
	require.False(t, locks.TryWLock())
	locks.RUnlock()

	require.True(t, locks.TryWLock())
	require.False(t, locks.TryRLock())
	locks.WUnlock()
}
