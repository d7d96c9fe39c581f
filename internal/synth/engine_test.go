package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rothamp/peppermint/internal/backend"
	"github.com/rothamp/peppermint/internal/param"
)

const testRate = 48000

func testControls() map[param.Key]float64 {
	return param.NewRouter().VoiceControls()
}

func render(e *Engine, frames int) []float32 {
	buf := make([]float32, frames*2)
	e.Process(buf)
	return buf
}

func peak(buf []float32) float64 {
	var p float64
	for _, s := range buf {
		a := float64(s)
		if a < 0 {
			a = -a
		}
		if a > p {
			p = a
		}
	}
	return p
}

func TestOfflineVoiceProducesSound(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())

	require.NoError(t, e.StartVoice("v1", 440, 0.8, testControls()))
	buf := render(e, testRate/10)

	assert.Greater(t, peak(buf), 0.001, "voice rendered silence")
	assert.Less(t, peak(buf), 2.0, "voice rendered out of bounds")
}

func TestSilenceWithoutVoices(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())

	assert.Zero(t, peak(render(e, 1024)))
}

func TestReleasedVoiceRunsOut(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())

	controls := testControls()
	controls[param.KeyRelease] = 0.05
	require.NoError(t, e.StartVoice("v1", 440, 0.8, controls))
	render(e, testRate/10) // past the attack
	require.NoError(t, e.ReleaseVoice("v1"))

	// A second of audio is far beyond the 50 ms release tail.
	render(e, testRate)
	assert.True(t, e.VoiceDone("v1"))
	assert.Zero(t, e.ActiveVoiceCount())
}

func TestPolyphonyStealsOldest(t *testing.T) {
	params := DefaultParams()
	params.Polyphony = 2
	e := NewOffline(testRate, params)
	require.NoError(t, e.Start())

	require.NoError(t, e.StartVoice("a", 220, 0.8, testControls()))
	require.NoError(t, e.StartVoice("b", 330, 0.8, testControls()))
	require.NoError(t, e.StartVoice("c", 440, 0.8, testControls()))

	assert.Equal(t, 2, e.ActiveVoiceCount())
	assert.True(t, e.VoiceDone("a"))
	assert.False(t, e.VoiceDone("b"))
	assert.False(t, e.VoiceDone("c"))
}

func TestMasterGainSilences(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())
	require.NoError(t, e.StartVoice("v1", 440, 0.8, testControls()))

	require.NoError(t, e.SetGlobalControl(param.KeyAmp, 0))
	assert.Zero(t, peak(render(e, 1024)))
}

func TestCutoffDarkensOutput(t *testing.T) {
	bright := NewOffline(testRate, DefaultParams())
	require.NoError(t, bright.Start())
	dark := NewOffline(testRate, DefaultParams())
	require.NoError(t, dark.Start())

	open := testControls()
	open[param.KeyCutoff] = 8000
	open[param.KeyEnvAmt] = 0
	closed := testControls()
	closed[param.KeyCutoff] = 100
	closed[param.KeyEnvAmt] = 0

	require.NoError(t, bright.StartVoice("v", 440, 0.8, open))
	require.NoError(t, dark.StartVoice("v", 440, 0.8, closed))
	render(bright, testRate/4)
	render(dark, testRate/4)

	energy := func(buf []float32) float64 {
		var sum float64
		for _, s := range buf {
			sum += float64(s) * float64(s)
		}
		return sum
	}
	assert.Greater(t, energy(render(bright, 4096)), energy(render(dark, 4096)))
}

func TestVoiceCallsRequireStart(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	assert.Error(t, e.Ping())
	assert.Error(t, e.StartVoice("v1", 440, 0.8, testControls()))
}

func TestUnknownVoiceErrors(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())

	assert.ErrorIs(t, e.RetuneVoice("ghost", 440, 0.8), backend.ErrNoSuchVoice)
	assert.ErrorIs(t, e.SetVoiceControl("ghost", param.KeyCutoff, 500), backend.ErrNoSuchVoice)
	assert.ErrorIs(t, e.ReleaseVoice("ghost"), backend.ErrNoSuchVoice)
	assert.True(t, e.VoiceDone("ghost"))
}

func TestStopClearsVoices(t *testing.T) {
	e := NewOffline(testRate, DefaultParams())
	require.NoError(t, e.Start())
	require.NoError(t, e.StartVoice("v1", 440, 0.8, testControls()))

	require.NoError(t, e.Stop())
	assert.Error(t, e.Ping())
	assert.Zero(t, e.ActiveVoiceCount())
}
