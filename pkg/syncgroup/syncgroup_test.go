package syncgroup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncGroup_ReportsExit(t *testing.T) {
	g := NewSyncGroup()
	boom := errors.New("boom")
	require.NoError(t, g.Go(t.Context(), "worker", func(context.Context) error { return boom }))

	select {
	case res := <-g.Done():
		assert.Equal(t, "worker", res.Name)
		assert.ErrorIs(t, res.Err, boom)
	case <-time.After(time.Second):
		t.Fatal("no result")
	}
	require.NoError(t, g.Wait(t.Context()))
	assert.Zero(t, g.Running())
}

func TestSyncGroup_RecoversPanic(t *testing.T) {
	g := NewSyncGroup()
	require.NoError(t, g.Go(t.Context(), "bad", func(context.Context) error { panic("oops") }))
	res := <-g.Done()
	assert.ErrorContains(t, res.Err, "oops")
}

func TestSyncGroup_DuplicateNameAndCancel(t *testing.T) {
	g := NewSyncGroup()
	ctx, cancel := context.WithCancel(t.Context())
	block := func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

	require.NoError(t, g.Go(ctx, "loop", block))
	assert.Error(t, g.Go(ctx, "loop", block))
	assert.Error(t, g.Go(ctx, "nil", nil))
	assert.Equal(t, 1, g.Running())

	short, stop := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, g.Wait(short), context.DeadlineExceeded)

	cancel()
	require.NoError(t, g.Wait(t.Context()))
	res := <-g.Done()
	assert.ErrorIs(t, res.Err, context.Canceled)
}
