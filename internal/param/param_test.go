package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNamesRoundTrip(t *testing.T) {
	for _, k := range Keys() {
		got, ok := ParseKey(k.String())
		require.True(t, ok, "parse %q", k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKey("flux_capacitor")
	assert.False(t, ok)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		key  Key
		in   float64
		want float64
	}{
		{KeyRes, 2.5, 1.0},
		{KeyRes, -1, 0},
		{KeyRes, 0.3, 0.3},
		{KeyCutoff, 99999, 8000},
		{KeyCutoff, 1, 100},
		{KeyDetune, 0, 0.98},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.key, tt.in), "%s(%v)", tt.key, tt.in)
	}
}

func TestScopes(t *testing.T) {
	assert.Equal(t, ScopeGlobal, ScopeOf(KeyAmp))
	for _, k := range Keys() {
		if k == KeyAmp {
			continue
		}
		assert.Equal(t, ScopePerVoice, ScopeOf(k), k.String())
	}
}

func TestRouterDefaults(t *testing.T) {
	r := NewRouter()
	assert.Equal(t, 1200.0, r.Value(KeyCutoff))
	assert.Equal(t, 0.2, r.Value(KeyAmp))
}

func TestRouterSetClampsAndCaches(t *testing.T) {
	r := NewRouter()
	got := r.Set(KeyCutoff, 99999)
	assert.Equal(t, 8000.0, got)
	assert.Equal(t, 8000.0, r.Value(KeyCutoff))
}

func TestRouterVoiceControlsExcludeGlobals(t *testing.T) {
	r := NewRouter()
	controls := r.VoiceControls()
	_, hasAmp := controls[KeyAmp]
	assert.False(t, hasAmp)
	assert.Equal(t, 1200.0, controls[KeyCutoff])
	assert.Len(t, controls, len(Keys())-1)
}

func TestRouterSnapshotCoversEveryKey(t *testing.T) {
	r := NewRouter()
	r.Set(KeyRes, 0.9)
	snap := r.Snapshot()
	require.Len(t, snap, len(Keys()))
	assert.Equal(t, 0.9, snap["res"])
	assert.Equal(t, 0.2, snap["amp"])
}

func TestRouterMode(t *testing.T) {
	r := NewRouter()
	assert.Equal(t, ModeMono, r.Mode())
	r.SetMode(ModePoly)
	assert.Equal(t, ModePoly, r.Mode())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("poly")
	require.True(t, ok)
	assert.Equal(t, ModePoly, m)
	_, ok = ParseMode("duophonic")
	assert.False(t, ok)
}
