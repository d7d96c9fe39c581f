// Package voice applies note semantics to the voice table. It is owned by
// the engine goroutine; nothing here is safe for concurrent use.
package voice

import (
	"math"
	"time"

	"github.com/rothamp/peppermint/internal/backend"
)

// State tracks where a voice is in its life.
type State int

const (
	StateFree State = iota
	StateActive
	StateReleasing
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateReleasing:
		return "releasing"
	}
	return "free"
}

// Voice is one sounding note bound to a backend-side allocation. The handle
// is owned exclusively by the voice; no two poly voices ever share one.
type Voice struct {
	Note         int
	Handle       backend.Handle
	State        State
	LastVelocity float64

	// releaseAt bounds the wait for release completion so a non-responsive
	// backend cannot pin the table.
	releaseAt time.Time
}

// NoteFrequency converts a MIDI note number to Hz at concert pitch.
func NoteFrequency(note int) float64 {
	return 440.0 * math.Pow(2, float64(note-69)/12.0)
}
