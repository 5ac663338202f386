package sessioncache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	want := State(`{"cookies":[{"name":"session","value":"abc"}]}`)
	require.NoError(t, cache.SaveState("A668", want))

	got, ok, err := cache.LoadState("A668")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(want), string(got))
}

func TestLoadStateMissingReturnsNotOK(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	_, ok, err := cache.LoadState("NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateNeverCrossesStores(t *testing.T) {
	dir := t.TempDir()
	cache, err := New(dir, nil)
	require.NoError(t, err)

	require.NoError(t, cache.SaveState("A668", State(`{"store":"A668"}`)))
	require.NoError(t, cache.SaveState("B001", State(`{"store":"B001"}`)))

	a, _, err := cache.LoadState("A668")
	require.NoError(t, err)
	b, _, err := cache.LoadState("B001")
	require.NoError(t, err)

	assert.JSONEq(t, `{"store":"A668"}`, string(a))
	assert.JSONEq(t, `{"store":"B001"}`, string(b))
	assert.FileExists(t, filepath.Join(dir, "A668_storage_state.json"))
	assert.FileExists(t, filepath.Join(dir, "B001_storage_state.json"))
}

func TestProbeStateMissingIsExpired(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	require.NoError(t, err)

	probe, err := cache.ProbeState(context.Background(), "A668", "https://x.example.com/home",
		func(ctx context.Context, storeCode string, state State, homeURL string) (Probe, error) {
			t.Fatal("prober should not be called when no state is persisted")
			return ProbeUnknown, nil
		})
	require.NoError(t, err)
	assert.Equal(t, ProbeExpired, probe)
}

func TestProbeStateDelegatesToProber(t *testing.T) {
	cache, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, cache.SaveState("A668", State(`{"cookies":[]}`)))

	var sawStore string
	probe, err := cache.ProbeState(context.Background(), "A668", "https://x.example.com/home",
		func(ctx context.Context, storeCode string, state State, homeURL string) (Probe, error) {
			sawStore = storeCode
			return ProbeValid, nil
		})
	require.NoError(t, err)
	assert.Equal(t, ProbeValid, probe)
	assert.Equal(t, "A668", sawStore)
}
