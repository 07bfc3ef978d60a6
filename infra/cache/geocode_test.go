package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/geocode"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/infra/logger"
)

type countingProvider struct {
	forward atomic.Int32
	reverse atomic.Int32
}

func (p *countingProvider) Forward(_ context.Context, text string) (geocode.Place, error) {
	p.forward.Add(1)
	if text == "nowhere" {
		return geocode.Place{}, model.ErrNotFound
	}
	return geocode.Place{Location: model.Coordinate{Latitude: 12.97, Longitude: 77.59}, Address: "MG Road"}, nil
}

func (p *countingProvider) Reverse(context.Context, model.Coordinate) (string, error) {
	p.reverse.Add(1)
	return "Cubbon Park", nil
}

func setup(t *testing.T) (*miniredis.Miniredis, *countingProvider, geocode.Provider) {
	t.Helper()
	mr := miniredis.RunT(t)
	next := &countingProvider{}
	rc := Open(Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, next, NewGeocodeProvider(next, rc, Config{TTL: time.Minute}, logger.NopLogger{})
}

func TestForwardCached(t *testing.T) {
	mr, next, p := setup(t)
	ctx := context.Background()

	first, err := p.Forward(ctx, "MG  Road")
	require.NoError(t, err)
	second, err := p.Forward(ctx, "mg road")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), next.forward.Load())
	assert.True(t, mr.Exists("ambudispatch:geo:fwd:mg road"))
	assert.Equal(t, time.Minute, mr.TTL("ambudispatch:geo:fwd:mg road"))

	mr.FastForward(2 * time.Minute)
	_, err = p.Forward(ctx, "mg road")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.forward.Load())
}

func TestForwardMissNotCached(t *testing.T) {
	mr, next, p := setup(t)
	_, err := p.Forward(context.Background(), "nowhere")
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = p.Forward(context.Background(), "nowhere")
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, int32(2), next.forward.Load())
	assert.False(t, mr.Exists("ambudispatch:geo:fwd:nowhere"))
}

func TestReverseCached(t *testing.T) {
	_, next, p := setup(t)
	at := model.Coordinate{Latitude: 12.971601, Longitude: 77.594601}
	for i := 0; i < 3; i++ {
		addr, err := p.Reverse(context.Background(), at)
		require.NoError(t, err)
		assert.Equal(t, "Cubbon Park", addr)
	}
	assert.Equal(t, int32(1), next.reverse.Load())
}

func TestRedisDownFallsThrough(t *testing.T) {
	mr, next, p := setup(t)
	mr.Close()
	addr, err := p.Reverse(context.Background(), model.Coordinate{Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, "Cubbon Park", addr)
	assert.Equal(t, int32(1), next.reverse.Load())
}

func TestNilClientPassesThrough(t *testing.T) {
	next := &countingProvider{}
	assert.Same(t, geocode.Provider(next), NewGeocodeProvider(next, nil, Config{}, logger.NopLogger{}))
	assert.Nil(t, Open(Config{}))
}
