// Package synth is the in-process reference implementation of the backend
// contract: a dual-VCO subtractive synth rendered straight to the audio
// device. Each instance is one session generation; the lifecycle manager
// replaces the whole instance on reboot.
package synth

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/rothamp/peppermint/internal/audio"
	"github.com/rothamp/peppermint/internal/backend"
	"github.com/rothamp/peppermint/internal/param"
)

var errNotStarted = errors.New("synth: not started")

type Params struct {
	Polyphony  int
	MasterGain float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:  8,
		MasterGain: param.RangeOf(param.KeyAmp).Default,
	}
}

// Engine implements backend.Synth. Control calls arrive on the engine
// goroutine while Process runs on the audio thread; the voice list is the
// only shared state and is guarded by mu.
type Engine struct {
	sampleRate float64
	params     Params
	offline    bool

	mu     sync.Mutex
	voices []*voice
	seed   uint32

	masterGain uint64 // float64 bits, set from the amp global control
	started    atomic.Bool
	out        *audio.Player
}

// New returns a live engine that opens the audio device on Start.
func New(sampleRate int, params Params) *Engine {
	return newEngine(sampleRate, params, false)
}

// NewOffline returns an engine with no audio device; samples are pulled
// explicitly through Process. Used by tests and offline rendering.
func NewOffline(sampleRate int, params Params) *Engine {
	return newEngine(sampleRate, params, true)
}

func newEngine(sampleRate int, params Params, offline bool) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 8
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		offline:    offline,
		seed:       0x9e3779b9,
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(params.MasterGain))
	return e
}

// Factory adapts New for the lifecycle manager: one fresh instance per
// session generation.
func Factory(sampleRate int, params Params) backend.Factory {
	return func() backend.Synth { return New(sampleRate, params) }
}

// OfflineFactory is Factory without an audio device.
func OfflineFactory(sampleRate int, params Params) backend.Factory {
	return func() backend.Synth { return NewOffline(sampleRate, params) }
}

func (e *Engine) Start() error {
	if e.offline {
		e.started.Store(true)
		return nil
	}
	out, err := audio.NewPlayer(int(e.sampleRate), e)
	if err != nil {
		return err
	}
	e.out = out
	e.out.Play()
	e.started.Store(true)
	return nil
}

func (e *Engine) Stop() error {
	e.started.Store(false)
	e.mu.Lock()
	e.voices = nil
	e.mu.Unlock()
	if e.out != nil {
		err := e.out.Stop()
		e.out = nil
		return err
	}
	return nil
}

func (e *Engine) Ping() error {
	if !e.started.Load() {
		return errNotStarted
	}
	return nil
}

func (e *Engine) StartVoice(id string, freq, amp float64, controls map[param.Key]float64) error {
	if !e.started.Load() {
		return errNotStarted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// Steal the oldest voice at the polyphony limit.
	if len(e.voices) >= e.params.Polyphony {
		e.voices = e.voices[1:]
	}
	e.seed = e.seed*1664525 + 1013904223
	e.voices = append(e.voices, newVoice(id, freq, amp, controls, e.seed))
	return nil
}

func (e *Engine) RetuneVoice(id string, freq, amp float64) error {
	if !e.started.Load() {
		return errNotStarted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.find(id)
	if v == nil {
		return backend.ErrNoSuchVoice
	}
	v.retune(freq, amp)
	return nil
}

func (e *Engine) SetVoiceControl(id string, key param.Key, value float64) error {
	if !e.started.Load() {
		return errNotStarted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.find(id)
	if v == nil {
		return backend.ErrNoSuchVoice
	}
	v.setControl(key, value)
	return nil
}

func (e *Engine) SetGlobalControl(key param.Key, value float64) error {
	if !e.started.Load() {
		return errNotStarted
	}
	if key == param.KeyAmp {
		atomic.StoreUint64(&e.masterGain, math.Float64bits(value))
	}
	return nil
}

func (e *Engine) ReleaseVoice(id string) error {
	if !e.started.Load() {
		return errNotStarted
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.find(id)
	if v == nil {
		return backend.ErrNoSuchVoice
	}
	v.release()
	return nil
}

func (e *Engine) VoiceDone(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.find(id)
	return v == nil || v.done()
}

// ActiveVoiceCount reports voices still sounding, including release tails.
func (e *Engine) ActiveVoiceCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

func (e *Engine) find(id string) *voice {
	for _, v := range e.voices {
		if v.id == id {
			return v
		}
	}
	return nil
}

// Process renders interleaved stereo frames into dst. Finished voices are
// compacted out after the block.
func (e *Engine) Process(dst []float32) {
	gain := math.Float64frombits(atomic.LoadUint64(&e.masterGain))
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		var sum float64
		for _, v := range e.voices {
			sum += v.render(e.sampleRate)
		}
		s := float32(sum * gain)
		dst[f*2] = s
		dst[f*2+1] = s
	}
	live := e.voices[:0]
	for _, v := range e.voices {
		if !v.done() {
			live = append(live, v)
		}
	}
	e.voices = live
}
