package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return New(nil, logrus.NewEntry(logrus.New()))
}

func TestGetOrSet_NilClientAlwaysCallsLoader(t *testing.T) {
	m := newTestManager()
	calls := 0

	var dest struct{ Name string }
	err := m.GetOrSet(context.Background(), "k", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
		calls++
		return struct{ Name string }{Name: "a"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a", dest.Name)

	err = m.GetOrSet(context.Background(), "k", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
		calls++
		return struct{ Name string }{Name: "b"}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "nil client never caches")
	assert.Equal(t, "b", dest.Name, "second call should reflect the second loader")
}

func TestGetOrSet_NilClientPropagatesLoaderError(t *testing.T) {
	m := newTestManager()
	wantErr := errors.New("boom")

	var dest struct{}
	err := m.GetOrSet(context.Background(), "k", time.Minute, &dest, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestInvalidate_NilClientIsNoop(t *testing.T) {
	m := newTestManager()
	assert.NotPanics(t, func() { m.Invalidate(context.Background(), "any-key") })
}

func TestMetrics_InitiallyZero(t *testing.T) {
	m := newTestManager()
	hits, misses := m.Metrics()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestShouldRefreshEarly_NeverWithinFreshWindow(t *testing.T) {
	base := time.Minute
	// remaining ratio 1.0, well above stampedeFactor: never refresh early.
	assert.False(t, shouldRefreshEarly(base, base), "a fully fresh entry should never trigger early refresh")
}

func TestShouldRefreshEarly_ZeroBaseNeverRefreshes(t *testing.T) {
	assert.False(t, shouldRefreshEarly(time.Second, 0), "a zero base TTL should never trigger early refresh")
}
