package xidem

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdelay/pkg/distributed/xcron"
	"github.com/omeyang/xdelay/pkg/distributed/xdlock"
	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func newScheduler(t *testing.T, locker xdlock.Locker) *xcron.Scheduler {
	t.Helper()
	s := xcron.New(xcron.WithLocker(locker), xcron.WithLogger(xlog.Discard()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestSweeperRegistersJobs(t *testing.T) {
	f := newFixture(t)
	sched := newScheduler(t, f.lock)

	cfg := DefaultSweeperConfig()
	cfg.CleanupSpec = ""
	s, err := NewSweeper(f.coord, sched, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{JobReclaim, JobRedeliver, JobArchive}, s.Jobs())
	assert.ElementsMatch(t, s.Jobs(), sched.Names())

	s.Remove()
	assert.Empty(t, sched.Names())
}

func TestSweeperRunNowReclaims(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, "m1")
	_, err := f.coord.StartProcessing(ctx, "m1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	s, err := NewSweeper(f.coord, newScheduler(t, f.lock.Peer()), DefaultSweeperConfig())
	require.NoError(t, err)

	ran, err := s.RunNow(ctx, JobReclaim)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, StatusTimeout, f.status(t, "m1").Status)

	ran, err = s.RunNow(ctx, JobArchive)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSweeperSkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s, err := NewSweeper(f.coord, newScheduler(t, f.lock.Peer()), DefaultSweeperConfig())
	require.NoError(t, err)

	// 另一实例正在补投
	other := f.lock.Peer()
	ok, err := other.TryAcquire(ctx, "xcron:"+JobRedeliver, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ran, err := s.RunNow(ctx, JobRedeliver)
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, other.Release(ctx, "xcron:"+JobRedeliver))
	ran, err = s.RunNow(ctx, JobRedeliver)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestNewSweeperValidation(t *testing.T) {
	f := newFixture(t)
	sched := newScheduler(t, f.lock)

	_, err := NewSweeper(nil, sched, DefaultSweeperConfig())
	assert.ErrorIs(t, err, ErrNilCoordinator)
	_, err = NewSweeper(f.coord, nil, DefaultSweeperConfig())
	assert.ErrorIs(t, err, ErrNilScheduler)

	cfg := DefaultSweeperConfig()
	cfg.ProcessingTimeout = 0
	_, err = NewSweeper(f.coord, sched, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultSweeperConfig()
	cfg.ArchiveSpec = "not a cron"
	_, err = NewSweeper(f.coord, sched, cfg)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
	assert.Empty(t, sched.Names(), "partially registered jobs are removed")
}
