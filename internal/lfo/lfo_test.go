package lfo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInactiveWhenZeroDepthOrRate(t *testing.T) {
	var l LFO
	assert.False(t, l.Active())
	assert.Zero(t, l.Sample(48000))

	l.SetDepth(0.5)
	assert.False(t, l.Active())
	l.SetRate(2)
	assert.True(t, l.Active())
}

func TestSineQuarterCyclePeaks(t *testing.T) {
	var l LFO
	l.Set(0.5, 1, WaveSine)

	// 1 Hz at 4 samples/sec: the second sample sits at the positive peak.
	sampleRate := 4.0
	l.Sample(sampleRate)
	peak := l.Sample(sampleRate)
	assert.InDelta(t, 0.5, peak, 1e-9)
}

func TestOutputBoundedByDepth(t *testing.T) {
	for _, wave := range []int{WaveSine, WaveTriangle, WaveSquare, WaveSaw} {
		var l LFO
		l.Set(0.3, 7, wave)
		for i := 0; i < 10000; i++ {
			v := l.Sample(48000)
			assert.LessOrEqual(t, math.Abs(v), 0.3+1e-9, "wave %d", wave)
		}
	}
}

func TestUnknownWaveformFallsBackToSine(t *testing.T) {
	var bad, sine LFO
	bad.Set(1, 1, 99)
	sine.Set(1, 1, WaveSine)
	for i := 0; i < 16; i++ {
		assert.Equal(t, sine.Sample(16), bad.Sample(16))
	}
}

func TestResetRestartsPhase(t *testing.T) {
	var l LFO
	l.Set(1, 3, WaveSaw)
	first := l.Sample(48000)
	l.Sample(48000)
	l.Sample(48000)
	l.Reset()
	assert.Equal(t, first, l.Sample(48000))
}
