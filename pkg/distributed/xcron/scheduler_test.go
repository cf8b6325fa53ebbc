package xcron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunNowWithLock(t *testing.T) {
	locker := xdlock.NewLocalLocker()
	a := New(WithLocker(locker))
	b := New(WithLocker(locker.Peer()))

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	slow := func(context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}
	require.NoError(t, a.AddFunc("@every 1h", "reclaim", slow))
	require.NoError(t, b.AddFunc("@every 1h", "reclaim", func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	errCh := make(chan error, 1)
	go func() {
		_, err := a.RunNow(context.Background(), "reclaim")
		errCh <- err
	}()
	<-started

	ran, err := b.RunNow(context.Background(), "reclaim")
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int64(1), b.Stats().Job("reclaim").Skipped)

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(1), a.Stats().Job("reclaim").Succeeded)

	// 锁已释放，b 可以执行
	ran, err = b.RunNow(context.Background(), "reclaim")
	require.NoError(t, err)
	assert.True(t, ran)

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, b.Stop(context.Background()))
}

func TestJobFailureAndPanic(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	require.NoError(t, s.AddFunc("@every 1h", "fail", func(context.Context) error { return boom }))
	require.NoError(t, s.AddFunc("@every 1h", "panic", func(context.Context) error { panic("x") }))

	_, err := s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
	_, err = s.RunNow(context.Background(), "panic")
	assert.ErrorContains(t, err, "panic")
	assert.Equal(t, int64(1), s.Stats().Job("panic").Failed)
	require.NoError(t, s.Stop(context.Background()))
}

func TestScheduledAndImmediate(t *testing.T) {
	s := New(WithSeconds())
	var n atomic.Int32
	require.NoError(t, s.AddFunc("* * * * * *", "tick", func(context.Context) error {
		n.Add(1)
		return nil
	}, WithImmediate(), WithTimeout(time.Second)))
	s.Start()

	require.Eventually(t, func() bool { return n.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestAddFuncValidation(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.AddFunc("@every 1m", "x", nil), ErrNilJob)
	assert.ErrorIs(t, s.AddFunc("@every 1m", "", func(context.Context) error { return nil }), ErrEmptyName)
	require.NoError(t, s.AddFunc("@every 1m", "x", func(context.Context) error { return nil }))
	assert.ErrorIs(t, s.AddFunc("@every 1m", "x", func(context.Context) error { return nil }), ErrDuplicate)
	assert.Error(t, s.AddFunc("not a spec", "y", func(context.Context) error { return nil }))
	assert.ElementsMatch(t, []string{"x"}, s.Names())

	s.Remove("x")
	assert.Empty(t, s.Names())
	_, err := s.RunNow(context.Background(), "x")
	assert.Error(t, err)
	require.NoError(t, s.Stop(context.Background()))
}
