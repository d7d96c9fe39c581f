package backend

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rothamp/peppermint/internal/param"
)

// scriptSynth is a Synth whose failures are scripted per call.
type scriptSynth struct {
	startErrs []error
	pingErr   error

	started   bool
	stopCalls int
	voices    map[string]bool
	released  map[string]bool
	globals   map[param.Key]float64
}

func newScriptSynth() *scriptSynth {
	return &scriptSynth{
		voices:   make(map[string]bool),
		released: make(map[string]bool),
		globals:  make(map[param.Key]float64),
	}
}

func (s *scriptSynth) Start() error {
	if len(s.startErrs) > 0 {
		err := s.startErrs[0]
		s.startErrs = s.startErrs[1:]
		if err != nil {
			return err
		}
	}
	s.started = true
	return nil
}

func (s *scriptSynth) Stop() error {
	s.stopCalls++
	s.started = false
	return nil
}

func (s *scriptSynth) Ping() error { return s.pingErr }

func (s *scriptSynth) StartVoice(id string, freq, amp float64, controls map[param.Key]float64) error {
	s.voices[id] = true
	return nil
}

func (s *scriptSynth) RetuneVoice(id string, freq, amp float64) error {
	if !s.voices[id] {
		return ErrNoSuchVoice
	}
	return nil
}

func (s *scriptSynth) SetVoiceControl(id string, key param.Key, value float64) error {
	if !s.voices[id] {
		return ErrNoSuchVoice
	}
	return nil
}

func (s *scriptSynth) SetGlobalControl(key param.Key, value float64) error {
	s.globals[key] = value
	return nil
}

func (s *scriptSynth) ReleaseVoice(id string) error {
	if !s.voices[id] {
		return ErrNoSuchVoice
	}
	s.released[id] = true
	return nil
}

func (s *scriptSynth) VoiceDone(id string) bool { return s.released[id] }

// harness wires a Manager around scriptable instances and records sleeps.
type harness struct {
	m      *Manager
	sleeps []time.Duration
	made   []*scriptSynth
	next   func() *scriptSynth
}

func newHarness(cfg Config, next func() *scriptSynth) *harness {
	h := &harness{next: next}
	h.m = NewManager(func() Synth {
		s := h.next()
		h.made = append(h.made, s)
		return s
	}, cfg)
	h.m.sleep = func(d time.Duration) { h.sleeps = append(h.sleeps, d) }
	return h
}

func (h *harness) current() *scriptSynth { return h.made[len(h.made)-1] }

func TestBootReady(t *testing.T) {
	h := newHarness(Config{}, newScriptSynth)

	require.NoError(t, h.m.Boot())
	assert.Equal(t, StatusReady, h.m.Status())
	assert.True(t, h.m.Ready())
	assert.EqualValues(t, 1, h.m.Generation())
	assert.True(t, h.current().started)
	assert.Empty(t, h.sleeps)
}

func TestBootRetriesWithBackoff(t *testing.T) {
	fails := 2
	h := newHarness(Config{BootRetries: 3, BootBackoff: 10 * time.Millisecond}, func() *scriptSynth {
		s := newScriptSynth()
		if fails > 0 {
			fails--
			s.startErrs = []error{errors.New("port in use")}
		}
		return s
	})

	require.NoError(t, h.m.Boot())
	assert.Equal(t, StatusReady, h.m.Status())
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, h.sleeps)
	assert.Len(t, h.made, 3)
}

func TestBootExhaustionLandsInFailed(t *testing.T) {
	bootErr := errors.New("no audio device")
	h := newHarness(Config{BootRetries: 2, BootBackoff: time.Millisecond}, func() *scriptSynth {
		s := newScriptSynth()
		s.startErrs = []error{bootErr}
		return s
	})

	err := h.m.Boot()
	require.Error(t, err)
	assert.ErrorIs(t, err, bootErr)
	assert.Equal(t, StatusFailed, h.m.Status())
	assert.False(t, h.m.Ready())
	assert.Len(t, h.made, 3) // first attempt plus two retries
}

func TestCallsRejectedBeforeBoot(t *testing.T) {
	h := newHarness(Config{}, newScriptSynth)
	handle := h.m.NewHandle()
	assert.ErrorIs(t, h.m.StartVoice(handle, 440, 0.8, nil), ErrNotReady)
	assert.ErrorIs(t, h.m.SetGlobalControl(param.KeyAmp, 0.5), ErrNotReady)
	assert.True(t, h.m.VoiceDone(handle))
}

func TestRebootAdvancesGenerationOnce(t *testing.T) {
	h := newHarness(Config{}, newScriptSynth)
	require.NoError(t, h.m.Boot())

	old := h.m.NewHandle()
	require.NoError(t, h.m.StartVoice(old, 440, 0.8, nil))

	first := h.current()
	require.NoError(t, h.m.Reboot())

	assert.EqualValues(t, 2, h.m.Generation())
	assert.Equal(t, 1, first.stopCalls)
	assert.Len(t, h.made, 2)

	// Handles minted before the reboot are stale everywhere.
	assert.ErrorIs(t, h.m.StartVoice(old, 440, 0.8, nil), ErrStaleHandle)
	assert.ErrorIs(t, h.m.RetuneVoice(old, 330, 0.8), ErrStaleHandle)
	assert.ErrorIs(t, h.m.ReleaseVoice(old), ErrStaleHandle)
	assert.True(t, h.m.VoiceDone(old))

	fresh := h.m.NewHandle()
	assert.EqualValues(t, 2, fresh.Generation)
	assert.NoError(t, h.m.StartVoice(fresh, 440, 0.8, nil))
}

func TestHealthCheckDetectsDeadBackend(t *testing.T) {
	h := newHarness(Config{}, newScriptSynth)
	require.NoError(t, h.m.Boot())

	h.m.HealthCheck()
	assert.Equal(t, StatusReady, h.m.Status())

	h.current().pingErr = errors.New("no response")
	h.m.HealthCheck()
	assert.Equal(t, StatusFailed, h.m.Status())
	// The half-dead instance is still torn down before being discarded.
	assert.Equal(t, 1, h.current().stopCalls)

	handle := h.m.NewHandle()
	assert.ErrorIs(t, h.m.StartVoice(handle, 440, 0.8, nil), ErrNotReady)
}

func TestShutdownStopsInstance(t *testing.T) {
	h := newHarness(Config{}, newScriptSynth)
	require.NoError(t, h.m.Boot())
	h.m.Shutdown()
	assert.Equal(t, StatusStopped, h.m.Status())
	assert.Equal(t, 1, h.current().stopCalls)
}

func TestStatusCallbackSeesTransitions(t *testing.T) {
	type transition struct {
		status Status
		gen    uint64
	}
	var seen []transition
	h := newHarness(Config{
		OnStatus: func(s Status, gen uint64) { seen = append(seen, transition{s, gen}) },
	}, newScriptSynth)

	require.NoError(t, h.m.Boot())
	require.NoError(t, h.m.Reboot())
	h.m.Shutdown()

	want := []transition{
		{StatusBooting, 1},
		{StatusReady, 1},
		{StatusBooting, 2},
		{StatusReady, 2},
		{StatusStopped, 2},
	}
	assert.Equal(t, want, seen)
}
