package param

import "sync"

// Router keeps the last clamped value seen for every parameter, plus the
// current voice mode. It is the source of truth consulted when a new voice
// is allocated, so voices created after a parameter change still inherit it.
//
// The engine goroutine is the only writer; the mutex exists so preset
// snapshots can be taken from control-plane goroutines without racing it.
type Router struct {
	mu     sync.RWMutex
	values [numKeys]float64
	mode   Mode
}

// NewRouter returns a Router seeded with every key's declared default.
func NewRouter() *Router {
	r := &Router{}
	for k := Key(0); k < numKeys; k++ {
		r.values[k] = keyTable[k].rng.Default
	}
	return r
}

// Set clamps v into k's range, records it, and returns the clamped value.
func (r *Router) Set(k Key, v float64) float64 {
	v = Clamp(k, v)
	if !k.Valid() {
		return v
	}
	r.mu.Lock()
	r.values[k] = v
	r.mu.Unlock()
	return v
}

// Value returns the last recorded value for k (its default if never set).
func (r *Router) Value(k Key) float64 {
	if !k.Valid() {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.values[k]
}

// VoiceControls returns a copy of every per-voice parameter, keyed for a
// backend start-voice call.
func (r *Router) VoiceControls() map[Key]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Key]float64, numKeys)
	for k := Key(0); k < numKeys; k++ {
		if keyTable[k].scope == ScopePerVoice {
			out[k] = r.values[k]
		}
	}
	return out
}

// SetMode records the active voice mode.
func (r *Router) SetMode(m Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

// Mode returns the last recorded voice mode.
func (r *Router) Mode() Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode
}

// Snapshot returns every parameter by its string name, suitable for a
// preset file.
func (r *Router) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, numKeys)
	for k := Key(0); k < numKeys; k++ {
		out[keyTable[k].name] = r.values[k]
	}
	return out
}
