package synth

import (
	"math"

	"github.com/rothamp/peppermint/internal/lfo"
	"github.com/rothamp/peppermint/internal/param"
)

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// adsr is a linear attack/decay/sustain/release envelope. Retriggering
// restarts the attack from the current level so legato retunes stay smooth.
type adsr struct {
	state   envState
	level   float64
	attack  float64 // seconds
	decay   float64
	sustain float64 // level 0..1
	release float64
}

func (a *adsr) gateOn() { a.state = envAttack }

func (a *adsr) gateOff() {
	if a.state != envOff {
		a.state = envRelease
	}
}

func (a *adsr) off() bool { return a.state == envOff }

func (a *adsr) next(sampleRate float64) float64 {
	switch a.state {
	case envAttack:
		step := 1.0
		if a.attack > 0 {
			step = 1.0 / (a.attack * sampleRate)
		}
		a.level += step
		if a.level >= 1 {
			a.level = 1
			a.state = envDecay
		}
	case envDecay:
		step := 1.0
		if a.decay > 0 {
			step = (1.0 - a.sustain) / (a.decay * sampleRate)
		}
		a.level -= step
		if a.level <= a.sustain {
			a.level = a.sustain
			a.state = envSustain
		}
	case envSustain:
		a.level = a.sustain
	case envRelease:
		step := 1.0
		if a.release > 0 {
			step = 1.0 / (a.release * sampleRate)
		}
		a.level -= step
		if a.level <= 0 {
			a.level = 0
			a.state = envOff
		}
	case envOff:
		a.level = 0
	}
	return a.level
}

// voice is one dual-VCO subtractive voice: two saw/pulse blends plus white
// noise into a resonant low-pass filter, with a shared ADSR for amplitude
// and filter and an LFO routable between pitch and cutoff.
type voice struct {
	id   string
	freq float64
	amp  float64

	vcoMix    float64
	vco1Wave  float64
	vco2Wave  float64
	detune    float64
	cutoff    float64
	res       float64
	envAmt    float64
	noiseMix  float64
	lfoTarget float64

	ampEnv  adsr
	filtEnv adsr
	mod     lfo.LFO

	phase1, phase2 float64
	low, band      float64 // filter state
	noiseState     uint32
}

func newVoice(id string, freq, amp float64, controls map[param.Key]float64, seed uint32) *voice {
	v := &voice{
		id:         id,
		freq:       freq,
		amp:        amp,
		noiseState: seed | 1,
	}
	for k, val := range controls {
		v.setControl(k, val)
	}
	v.filtEnv.sustain = 1 // filter envelope always peaks at full depth
	v.ampEnv.gateOn()
	v.filtEnv.gateOn()
	return v
}

func (v *voice) setControl(key param.Key, val float64) {
	switch key {
	case param.KeyVCOMix:
		v.vcoMix = val
	case param.KeyVCO1Wave:
		v.vco1Wave = val
	case param.KeyVCO2Wave:
		v.vco2Wave = val
	case param.KeyDetune:
		v.detune = val
	case param.KeyCutoff:
		v.cutoff = val
	case param.KeyRes:
		v.res = val
	case param.KeyEnvAmt:
		v.envAmt = val
	case param.KeyNoiseMix:
		v.noiseMix = val
	case param.KeyLFOFreq:
		v.mod.SetRate(val)
	case param.KeyLFODepth:
		v.mod.SetDepth(val)
	case param.KeyLFOTarget:
		v.lfoTarget = val
	case param.KeyAttack:
		v.ampEnv.attack = val
		v.filtEnv.attack = val
	case param.KeyDecay:
		v.ampEnv.decay = val
		v.filtEnv.decay = val
	case param.KeySustain:
		v.ampEnv.sustain = val
	case param.KeyRelease:
		v.ampEnv.release = val
		v.filtEnv.release = val
	}
}

func (v *voice) retune(freq, amp float64) {
	v.freq = freq
	v.amp = amp
	v.ampEnv.gateOn()
	v.filtEnv.gateOn()
}

func (v *voice) release() {
	v.ampEnv.gateOff()
	v.filtEnv.gateOff()
}

func (v *voice) done() bool { return v.ampEnv.off() }

func (v *voice) noise() float64 {
	// xorshift32; cheap and allocation-free on the audio thread.
	x := v.noiseState
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	v.noiseState = x
	return float64(int32(x))/math.MaxInt32 - 0.5
}

func blend(phase, wave float64) float64 {
	saw := 2.0*phase - 1.0
	pulse := -1.0
	if phase < 0.5 {
		pulse = 1.0
	}
	mix := wave*2.0 - 1.0
	return (1.0-mix)*0.5*saw + (1.0+mix)*0.5*pulse
}

// render produces one mono sample and advances all voice state.
func (v *voice) render(sampleRate float64) float64 {
	mod := v.mod.Sample(sampleRate)
	lfoPitch := mod * (1.0 - v.lfoTarget)
	lfoFilter := mod * v.lfoTarget

	// Vibrato range is +/-5% of the base pitch.
	pitchFactor := 1.0 + lfoPitch*0.05
	f1 := v.freq * pitchFactor
	f2 := v.freq * v.detune * pitchFactor

	osc := (1.0-v.vcoMix)*blend(v.phase1, v.vco1Wave) + v.vcoMix*blend(v.phase2, v.vco2Wave)
	sig := osc + v.noise()*v.noiseMix*0.3

	v.phase1 += f1 / sampleRate
	for v.phase1 >= 1 {
		v.phase1--
	}
	v.phase2 += f2 / sampleRate
	for v.phase2 >= 1 {
		v.phase2--
	}

	cut := v.cutoff + v.filtEnv.next(sampleRate)*v.envAmt*4000.0 + lfoFilter*4000.0
	if cut < 50 {
		cut = 50
	}
	if nyq := sampleRate * 0.45; cut > nyq {
		cut = nyq
	}
	if cut > 18000 {
		cut = 18000
	}

	// State-variable low-pass; damping maps res 0..1 to q 1.0..0.1.
	f := 2.0 * math.Sin(math.Pi*cut/sampleRate)
	if f > 1.5 {
		f = 1.5
	}
	q := 1.0 - 0.9*v.res
	v.low += f * v.band
	high := sig - v.low - q*v.band
	v.band += f * high

	return v.low * v.ampEnv.next(sampleRate) * v.amp
}
