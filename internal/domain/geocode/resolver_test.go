package geocode

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/placecut/internal/types"
)

type fakeGeocoder struct {
	matches map[string][]types.GeocodeMatch
	errs    map[string]error
	hang    map[string]bool
	delay   time.Duration

	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeGeocoder) Search(ctx context.Context, q string) ([]types.GeocodeMatch, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		cur := f.maxInflight.Load()
		if n <= cur || f.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}

	if f.hang[q] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.errs[q]; err != nil {
		return nil, err
	}
	return f.matches[q], nil
}

func cands(names ...string) []types.Candidate {
	out := make([]types.Candidate, len(names))
	for i, n := range names {
		out[i] = types.Candidate{Text: n}
	}
	return out
}

func TestResolve_FirstMatchWins(t *testing.T) {
	geo := &fakeGeocoder{matches: map[string][]types.GeocodeMatch{
		"Lisbon": {
			{DisplayName: "Lisboa, Portugal", Lat: "38.7077507", Lon: "-9.1365919"},
			{DisplayName: "Lisbon, Ohio, United States", Lat: "40.7720", Lon: "-80.7681"},
		},
	}}
	r := NewResolver(geo, Config{}, nil)

	locs, stats, err := r.Resolve(context.Background(), cands("Lisbon"))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, types.GeocodedLocation{
		Name:      "Lisbon",
		Address:   "Lisboa, Portugal",
		Latitude:  "38.7077507",
		Longitude: "-9.1365919",
	}, locs[0])
	assert.Equal(t, 1, stats.Resolved)
}

func TestResolve_DedupsByAddress(t *testing.T) {
	same := []types.GeocodeMatch{{DisplayName: "New York, United States", Lat: "40.71", Lon: "-74.00"}}
	geo := &fakeGeocoder{matches: map[string][]types.GeocodeMatch{
		"New York":      same,
		"New York City": same,
		"Brooklyn":      {{DisplayName: "Brooklyn, New York, United States", Lat: "40.65", Lon: "-73.95"}},
	}}
	r := NewResolver(geo, Config{Concurrency: 3}, nil)

	locs, stats, err := r.Resolve(context.Background(), cands("New York", "New York City", "Brooklyn"))
	require.NoError(t, err)
	require.Len(t, locs, 2)
	addrs := map[string]bool{}
	for _, l := range locs {
		assert.False(t, addrs[l.Address], "duplicate address %q", l.Address)
		addrs[l.Address] = true
	}
	assert.Equal(t, 1, stats.Duplicates)
}

func TestResolve_AbsorbsFailures(t *testing.T) {
	geo := &fakeGeocoder{
		matches: map[string][]types.GeocodeMatch{
			"Porto": {{DisplayName: "Porto, Portugal", Lat: "41.14", Lon: "-8.61"}},
		},
		errs: map[string]error{"Braga": errors.New("status 503")},
		hang: map[string]bool{"Faro": true},
	}
	r := NewResolver(geo, Config{RequestTimeout: 50 * time.Millisecond}, nil)

	locs, stats, err := r.Resolve(context.Background(), cands("Porto", "Braga", "Faro", "Nowhere"))
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "Porto", locs[0].Name)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.Empty)
}

func TestResolve_SkipsShortQueries(t *testing.T) {
	geo := &fakeGeocoder{}
	r := NewResolver(geo, Config{}, nil)

	locs, _, err := r.Resolve(context.Background(), cands("Rio", "Ab"))
	require.NoError(t, err)
	assert.Empty(t, locs)
	assert.Zero(t, geo.calls.Load())
}

func TestResolve_BoundsConcurrency(t *testing.T) {
	geo := &fakeGeocoder{delay: 20 * time.Millisecond}
	r := NewResolver(geo, Config{Concurrency: 2}, nil)

	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel"}
	_, _, err := r.Resolve(context.Background(), cands(names...))
	require.NoError(t, err)
	assert.EqualValues(t, len(names), geo.calls.Load())
	assert.LessOrEqual(t, geo.maxInflight.Load(), int32(2))
}

func TestResolve_ConcurrencyClamped(t *testing.T) {
	r := NewResolver(&fakeGeocoder{}, Config{Concurrency: 50}, nil)
	assert.Equal(t, MaxConcurrency, r.cfg.Concurrency)
}

func TestResolve_CancelledRun(t *testing.T) {
	geo := &fakeGeocoder{hang: map[string]bool{"Alpha": true, "Bravo": true}}
	r := NewResolver(geo, Config{RequestTimeout: time.Minute}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, _, err := r.Resolve(ctx, cands("Alpha", "Bravo"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type panickingGeocoder struct {
	on    string
	match types.GeocodeMatch
}

func (g panickingGeocoder) Search(_ context.Context, q string) ([]types.GeocodeMatch, error) {
	if q == g.on {
		panic("geocoder crash")
	}
	return []types.GeocodeMatch{{DisplayName: q + ", " + g.match.DisplayName, Lat: g.match.Lat, Lon: g.match.Lon}}, nil
}

func TestResolve_AbsorbsGeocoderPanic(t *testing.T) {
	geo := panickingGeocoder{on: "Braga", match: types.GeocodeMatch{DisplayName: "Portugal", Lat: "1", Lon: "2"}}
	r := NewResolver(geo, Config{Concurrency: 2}, nil)

	locs, stats, err := r.Resolve(context.Background(), cands("Porto", "Braga", "Lisbon"))
	require.NoError(t, err)
	require.Len(t, locs, 2)
	for _, l := range locs {
		assert.NotEqual(t, "Braga", l.Name)
	}
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Resolved)
}

// orderedGeocoder answers each query after its own delay.
type orderedGeocoder struct {
	delays map[string]time.Duration
}

func (g orderedGeocoder) Search(ctx context.Context, q string) ([]types.GeocodeMatch, error) {
	select {
	case <-time.After(g.delays[q]):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []types.GeocodeMatch{{DisplayName: q + ", Portugal", Lat: "0", Lon: "0"}}, nil
}

func TestResolve_OutputFollowsCompletionOrder(t *testing.T) {
	geo := orderedGeocoder{delays: map[string]time.Duration{
		"Lisbon": 150 * time.Millisecond,
		"Porto":  0,
	}}
	r := NewResolver(geo, Config{Concurrency: 2}, nil)

	locs, _, err := r.Resolve(context.Background(), cands("Lisbon", "Porto"))
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "Porto", locs[0].Name, "later candidate finished first")
	assert.Equal(t, "Lisbon", locs[1].Name)
}
