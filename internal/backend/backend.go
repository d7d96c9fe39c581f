// Package backend defines the contract with the synthesis backend and the
// lifecycle manager that owns its sessions. One Synth instance exists per
// session generation; a reboot replaces the instance and bumps the
// generation, which invalidates every handle issued before it.
package backend

import (
	"errors"

	"github.com/rothamp/peppermint/internal/param"
)

var (
	// ErrStaleHandle is returned for any call naming a handle issued under
	// an earlier session generation. Callers discard the voice; they never
	// retry against the new session.
	ErrStaleHandle = errors.New("backend: stale voice handle")

	// ErrNotReady is returned when the session is not in the Ready state.
	ErrNotReady = errors.New("backend: session not ready")

	// ErrNoSuchVoice is returned by a Synth when the named voice has
	// already been freed.
	ErrNoSuchVoice = errors.New("backend: no such voice")
)

// Handle names one backend-side voice allocation. Generation ties it to the
// session that created it.
type Handle struct {
	ID         string
	Generation uint64
}

// Status is the lifecycle state of the backend session.
type Status int

const (
	StatusBooting Status = iota
	StatusReady
	StatusFailed
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusBooting:
		return "booting"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	case StatusStopped:
		return "stopped"
	}
	return "unknown"
}

// Synth is one live instance of the synthesis backend. Every call names
// either a global control or a voice by the opaque id the caller chose at
// start time. Implementations must fail with an error, not a panic, on
// unknown voice ids.
type Synth interface {
	// Start brings the instance up. It is called once per instance.
	Start() error
	// Stop tears the instance down. Safe to call after a failed Start.
	Stop() error
	// Ping is a lightweight round-trip used for readiness and health probes.
	Ping() error

	// StartVoice allocates a voice with the given pitch, amplitude and
	// per-voice controls.
	StartVoice(id string, freq, amp float64, controls map[param.Key]float64) error
	// RetuneVoice moves an existing voice to a new pitch/amplitude and
	// reopens its gate, without a new allocation.
	RetuneVoice(id string, freq, amp float64) error
	// SetVoiceControl updates one control on an existing voice.
	SetVoiceControl(id string, key param.Key, value float64) error
	// SetGlobalControl writes a backend-global control.
	SetGlobalControl(key param.Key, value float64) error
	// ReleaseVoice begins the voice's release phase.
	ReleaseVoice(id string) error
	// VoiceDone reports whether the voice has finished its release phase
	// (or no longer exists).
	VoiceDone(id string) bool
}

// Factory builds a fresh Synth for each session generation.
type Factory func() Synth
