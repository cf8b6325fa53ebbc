package xdelay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xdelay/pkg/observability/xlog"
)

func TestRegistryLifecycle(t *testing.T) {
	b := newBroker(t)
	r := NewRegistry(b.Sources(), WithLogger(xlog.Discard()))
	noop := BindFunc("noop", func(context.Context) error { return nil })

	first, err := r.RegisterDescriptor(desc("first", "t1"), noop)
	require.NoError(t, err)
	manual := desc("manual", "t2")
	manual.AutoStart = false
	second, err := r.RegisterDescriptor(manual, noop)
	require.NoError(t, err)

	_, err = r.RegisterDescriptor(desc("first", "t3"), noop)
	assert.ErrorIs(t, err, ErrDuplicateContainer)
	assert.ErrorIs(t, r.Register("first", first), ErrDuplicateContainer)

	got, err := r.Get("first")
	require.NoError(t, err)
	assert.Same(t, first, got)
	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrContainerNotFound)
	assert.Equal(t, []string{"first", "manual"}, r.Names())

	require.NoError(t, r.StartAll(context.Background()))
	assert.Equal(t, StateRunning, first.State())
	assert.Equal(t, StateNew, second.State())

	require.NoError(t, r.StopAll(context.Background()))
	assert.Equal(t, StateStopped, first.State())
	assert.Equal(t, StateStopped, second.State())
	assert.Len(t, r.Stats(), 2)
}

func TestRegistryStartAllRollsBack(t *testing.T) {
	b := newBroker(t)
	r := NewRegistry(nil)
	noop := BindFunc("noop", func(context.Context) error { return nil })

	ok, err := NewContainer(desc("ok", "t1"), noop, b.Sources(), WithLogger(xlog.Discard()))
	require.NoError(t, err)
	broken, err := NewContainer(desc("broken", "t2"), noop, func([]string, int) (Source, error) {
		return nil, errors.New("no broker")
	}, WithLogger(xlog.Discard()))
	require.NoError(t, err)

	require.NoError(t, r.Register("", ok))
	require.NoError(t, r.Register("broken", broken))
	assert.Error(t, r.Register("nil", nil))
	assert.Equal(t, []string{"ok", "broken"}, r.Names())

	err = r.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, StateStopped, ok.State())
}
