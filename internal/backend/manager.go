package backend

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/param"
)

// Config carries the boot policy knobs. Zero values fall back to defaults.
type Config struct {
	// BootRetries is how many extra boot attempts follow a failed first one.
	BootRetries int
	// BootBackoff is the wait before the first retry; it doubles per attempt.
	BootBackoff time.Duration
	// OnStatus, when set, observes every status transition together with the
	// generation it applies to. Called from the engine goroutine.
	OnStatus func(Status, uint64)
	Logger   *zap.Logger
}

const (
	defaultBootRetries = 3
	defaultBootBackoff = 250 * time.Millisecond
)

// Manager owns the backend session: boot, health probe, reboot, teardown.
// All mutating calls happen on the engine goroutine; status and generation
// are atomics so control-plane goroutines may poll them.
type Manager struct {
	factory Factory
	log     *zap.Logger

	retries  int
	backoff  time.Duration
	onStatus func(Status, uint64)
	sleep    func(time.Duration) // test seam

	synth  Synth
	gen    atomic.Uint64
	status atomic.Int32
}

// NewManager wires a Manager around factory. The session starts Stopped;
// call Boot to bring it up.
func NewManager(factory Factory, cfg Config) *Manager {
	if cfg.BootRetries < 0 {
		cfg.BootRetries = 0
	} else if cfg.BootRetries == 0 {
		cfg.BootRetries = defaultBootRetries
	}
	if cfg.BootBackoff <= 0 {
		cfg.BootBackoff = defaultBootBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	m := &Manager{
		factory:  factory,
		log:      cfg.Logger,
		retries:  cfg.BootRetries,
		backoff:  cfg.BootBackoff,
		onStatus: cfg.OnStatus,
		sleep:    time.Sleep,
	}
	m.gen.Store(1)
	m.status.Store(int32(StatusStopped))
	return m
}

// Generation returns the current session epoch. It increments exactly once
// per reboot.
func (m *Manager) Generation() uint64 { return m.gen.Load() }

// Status returns the current session status.
func (m *Manager) Status() Status { return Status(m.status.Load()) }

// Ready reports whether calls may be issued against the session.
func (m *Manager) Ready() bool { return m.Status() == StatusReady }

func (m *Manager) setStatus(s Status) {
	m.status.Store(int32(s))
	if m.onStatus != nil {
		m.onStatus(s, m.gen.Load())
	}
}

// Boot starts a fresh backend instance and polls it for readiness, retrying
// with escalating backoff. On exhaustion the session lands in Failed and the
// error is returned; the caller keeps running and may request a reboot.
func (m *Manager) Boot() error {
	m.setStatus(StatusBooting)
	backoff := m.backoff
	var lastErr error
	for attempt := 0; attempt <= m.retries; attempt++ {
		if attempt > 0 {
			m.log.Info("backend boot retry",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			m.sleep(backoff)
			backoff *= 2
		}
		s := m.factory()
		if lastErr = s.Start(); lastErr != nil {
			_ = s.Stop()
			continue
		}
		if lastErr = s.Ping(); lastErr != nil {
			_ = s.Stop()
			continue
		}
		m.synth = s
		m.setStatus(StatusReady)
		m.log.Info("backend ready", zap.Uint64("generation", m.gen.Load()))
		return nil
	}
	m.synth = nil
	m.setStatus(StatusFailed)
	return fmt.Errorf("backend boot failed after %d attempts: %w", m.retries+1, lastErr)
}

// Reboot tears down the current instance (best-effort), advances the
// generation, and boots a new one. Handles from before the call are stale
// afterwards regardless of the boot outcome.
func (m *Manager) Reboot() error {
	if m.synth != nil {
		if err := m.synth.Stop(); err != nil {
			m.log.Warn("backend stop during reboot", zap.Error(err))
		}
		m.synth = nil
	}
	m.gen.Add(1)
	return m.Boot()
}

// Shutdown stops the session for good.
func (m *Manager) Shutdown() {
	if m.synth != nil {
		if err := m.synth.Stop(); err != nil {
			m.log.Warn("backend stop during shutdown", zap.Error(err))
		}
		m.synth = nil
	}
	m.setStatus(StatusStopped)
}

// HealthCheck probes a Ready session. A failed probe is a silent backend
// death: the session transitions to Failed and the control plane decides
// whether to reboot.
func (m *Manager) HealthCheck() {
	if !m.Ready() || m.synth == nil {
		return
	}
	if err := m.synth.Ping(); err != nil {
		m.log.Error("backend health probe failed", zap.Error(err))
		if stopErr := m.synth.Stop(); stopErr != nil {
			m.log.Warn("backend stop after failed probe", zap.Error(stopErr))
		}
		m.synth = nil
		m.setStatus(StatusFailed)
	}
}

// NewHandle mints a handle bound to the current generation.
func (m *Manager) NewHandle() Handle {
	return Handle{ID: uuid.NewString(), Generation: m.gen.Load()}
}

// check gates a per-voice call on session readiness and handle freshness.
func (m *Manager) check(h Handle) error {
	if !m.Ready() || m.synth == nil {
		return ErrNotReady
	}
	if h.Generation != m.gen.Load() {
		return ErrStaleHandle
	}
	return nil
}

// StartVoice forwards to the current instance after the handle check.
func (m *Manager) StartVoice(h Handle, freq, amp float64, controls map[param.Key]float64) error {
	if err := m.check(h); err != nil {
		return err
	}
	return m.synth.StartVoice(h.ID, freq, amp, controls)
}

// RetuneVoice forwards to the current instance after the handle check.
func (m *Manager) RetuneVoice(h Handle, freq, amp float64) error {
	if err := m.check(h); err != nil {
		return err
	}
	return m.synth.RetuneVoice(h.ID, freq, amp)
}

// SetVoiceControl forwards to the current instance after the handle check.
func (m *Manager) SetVoiceControl(h Handle, key param.Key, value float64) error {
	if err := m.check(h); err != nil {
		return err
	}
	return m.synth.SetVoiceControl(h.ID, key, value)
}

// SetGlobalControl writes a backend-global control on the current session.
func (m *Manager) SetGlobalControl(key param.Key, value float64) error {
	if !m.Ready() || m.synth == nil {
		return ErrNotReady
	}
	return m.synth.SetGlobalControl(key, value)
}

// ReleaseVoice forwards to the current instance after the handle check.
func (m *Manager) ReleaseVoice(h Handle) error {
	if err := m.check(h); err != nil {
		return err
	}
	return m.synth.ReleaseVoice(h.ID)
}

// VoiceDone reports whether the voice finished releasing. Voices on a stale
// or unavailable session are done by definition.
func (m *Manager) VoiceDone(h Handle) bool {
	if m.check(h) != nil {
		return true
	}
	return m.synth.VoiceDone(h.ID)
}
