// Package lfo provides the per-voice low-frequency oscillator used to
// modulate pitch and filter cutoff.
package lfo

import "math"

// Waveform selects the LFO shape. The voice patch uses a sine; the other
// shapes are selectable for forward compatibility with CC mapping.
const (
	WaveSine = iota
	WaveTriangle
	WaveSquare
	WaveSaw
)

// LFO produces per-sample modulation in [-depth, +depth].
type LFO struct {
	depth    float64
	rateHz   float64
	waveform int
	phase    float64 // [0, 1)
}

// Set configures depth, rate and shape. Out-of-range shapes fall back to
// sine.
func (l *LFO) Set(depth, rateHz float64, waveform int) {
	l.depth = depth
	l.rateHz = rateHz
	if waveform < WaveSine || waveform > WaveSaw {
		waveform = WaveSine
	}
	l.waveform = waveform
}

// SetDepth updates the modulation depth without touching rate or phase.
func (l *LFO) SetDepth(depth float64) { l.depth = depth }

// SetRate updates the oscillation rate in Hz.
func (l *LFO) SetRate(rateHz float64) { l.rateHz = rateHz }

// Active reports whether the LFO contributes any modulation.
func (l *LFO) Active() bool { return l.depth != 0 && l.rateHz != 0 }

// Reset zeros the phase, used when a voice is (re)triggered.
func (l *LFO) Reset() { l.phase = 0 }

// Sample advances one sample and returns the modulation value.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}
	var v float64
	switch l.waveform {
	case WaveTriangle:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	case WaveSquare:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case WaveSaw:
		v = 1.0 - 2.0*l.phase
	default: // WaveSine
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1.0 {
		l.phase -= 1.0
	}
	return v * l.depth
}
