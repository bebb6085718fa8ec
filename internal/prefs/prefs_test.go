package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g960059/ttguide/internal/testutil"
)

func TestDefaults(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	p := New(store)

	interval, err := p.GetInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, interval)

	enabled, err := p.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestRoundTripWithoutCaching(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	p := New(store)

	require.NoError(t, p.SetInterval(ctx, 30))
	require.NoError(t, p.SetEnabled(ctx, true))

	interval, err := p.GetInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, interval)
	enabled, err := p.IsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	// A second adapter over the same store sees writes immediately.
	other := New(store)
	require.NoError(t, other.SetInterval(ctx, 12))
	interval, err = p.GetInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, interval)
}

func TestSetIntervalBounds(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	p := New(store)
	assert.Error(t, p.SetInterval(ctx, 0))
	assert.Error(t, p.SetInterval(ctx, MaxInterval+1))
}

func TestCorruptValuesFallBack(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	require.NoError(t, store.SetPreference(ctx, KeyInterval, "soon"))
	require.NoError(t, store.SetPreference(ctx, KeyEnabled, "maybe"))
	p := New(store)

	interval, err := p.GetInterval(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, interval)
	enabled, err := p.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

type brokenBackend struct{}

func (brokenBackend) GetPreference(context.Context, string) (string, error) {
	return "", errors.New("disk on fire")
}

func (brokenBackend) SetPreference(context.Context, string, string) error {
	return errors.New("disk on fire")
}

func TestBackendErrorsPropagate(t *testing.T) {
	p := New(brokenBackend{})
	ctx := context.Background()
	_, err := p.GetInterval(ctx)
	assert.Error(t, err)
	_, err = p.IsEnabled(ctx)
	assert.Error(t, err)
	assert.Error(t, p.SetEnabled(ctx, true))
}
