package param

// Key identifies one synth parameter. The string form of each key matches
// the control name on the backend voice and the field name used in preset
// files, so a preset written by an older build keeps loading.
type Key int

const (
	KeyVCOMix Key = iota
	KeyVCO1Wave
	KeyVCO2Wave
	KeyDetune
	KeyCutoff
	KeyRes
	KeyEnvAmt
	KeyNoiseMix
	KeyLFOFreq
	KeyLFODepth
	KeyLFOTarget
	KeyAttack
	KeyDecay
	KeySustain
	KeyRelease
	KeyAmp

	numKeys
)

// Scope says whether a parameter addresses a single backend-global control
// or is fanned out to every sounding voice.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopePerVoice
)

// Mode is the voice allocation discipline: one backend voice per held note
// (poly) or a single persistent voice retuned per note (mono).
type Mode int

const (
	ModeMono Mode = iota
	ModePoly
)

func (m Mode) String() string {
	if m == ModePoly {
		return "poly"
	}
	return "mono"
}

// ParseMode maps a preset/CLI mode string to a Mode. Unknown strings
// report ok=false.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "mono":
		return ModeMono, true
	case "poly":
		return ModePoly, true
	}
	return ModeMono, false
}

// Range declares the valid span and default for a parameter. Values outside
// the span are clamped at the boundary, never rejected.
type Range struct {
	Min, Max, Default float64
}

type keyInfo struct {
	name  string
	scope Scope
	rng   Range
}

// Ranges and defaults mirror the front-panel layout of the original patch.
var keyTable = [numKeys]keyInfo{
	KeyVCOMix:    {"vco_mix", ScopePerVoice, Range{0, 1, 0.5}},
	KeyVCO1Wave:  {"vco1_wave", ScopePerVoice, Range{0, 1, 0}},
	KeyVCO2Wave:  {"vco2_wave", ScopePerVoice, Range{0, 1, 0}},
	KeyDetune:    {"detune", ScopePerVoice, Range{0.98, 1.08, 1.01}},
	KeyCutoff:    {"cutoff", ScopePerVoice, Range{100, 8000, 1200}},
	KeyRes:       {"res", ScopePerVoice, Range{0, 1, 0.2}},
	KeyEnvAmt:    {"env_amt", ScopePerVoice, Range{0, 1, 0.5}},
	KeyNoiseMix:  {"noise_mix", ScopePerVoice, Range{0, 1, 0}},
	KeyLFOFreq:   {"lfo_freq", ScopePerVoice, Range{0.1, 20, 5}},
	KeyLFODepth:  {"lfo_depth", ScopePerVoice, Range{0, 1, 0}},
	KeyLFOTarget: {"lfo_target", ScopePerVoice, Range{0, 1, 0}},
	KeyAttack:    {"atk", ScopePerVoice, Range{0.001, 2, 0.01}},
	KeyDecay:     {"dec", ScopePerVoice, Range{0.001, 2, 0.1}},
	KeySustain:   {"sus", ScopePerVoice, Range{0, 1, 0.7}},
	KeyRelease:   {"rel", ScopePerVoice, Range{0.001, 4, 0.3}},
	KeyAmp:       {"amp", ScopeGlobal, Range{0, 1, 0.2}},
}

func (k Key) String() string {
	if k < 0 || k >= numKeys {
		return "unknown"
	}
	return keyTable[k].name
}

// Valid reports whether k names a declared parameter.
func (k Key) Valid() bool { return k >= 0 && k < numKeys }

// ParseKey maps a control name to its Key. Unknown names report ok=false.
func ParseKey(name string) (Key, bool) {
	for k := Key(0); k < numKeys; k++ {
		if keyTable[k].name == name {
			return k, true
		}
	}
	return 0, false
}

// Keys returns every declared key in table order.
func Keys() []Key {
	out := make([]Key, numKeys)
	for i := range out {
		out[i] = Key(i)
	}
	return out
}

// ScopeOf returns the declared scope for k.
func ScopeOf(k Key) Scope {
	if !k.Valid() {
		return ScopePerVoice
	}
	return keyTable[k].scope
}

// RangeOf returns the declared range for k.
func RangeOf(k Key) Range {
	if !k.Valid() {
		return Range{}
	}
	return keyTable[k].rng
}

// Clamp forces v into k's declared range.
func Clamp(k Key, v float64) float64 {
	r := RangeOf(k)
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
