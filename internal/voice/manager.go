package voice

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/backend"
	"github.com/rothamp/peppermint/internal/param"
)

// Config carries the voice policy knobs. Zero values fall back to defaults.
type Config struct {
	Mode param.Mode
	// ReleaseTimeout bounds the wait for a releasing voice to report done.
	ReleaseTimeout time.Duration
	Logger         *zap.Logger
	// Now is a test seam for the release deadline clock.
	Now func() time.Time
}

const defaultReleaseTimeout = 2 * time.Second

// Manager owns the voice table and applies note-on/note-off/all-notes-off
// semantics against the backend session. Backend call failures are logged
// and absorbed: a failing voice is dropped from the table, never escalated.
type Manager struct {
	sess   *backend.Manager
	router *param.Router
	log    *zap.Logger

	mode           param.Mode
	releaseTimeout time.Duration
	now            func() time.Time

	// gen is the session generation the table was built against. When it
	// falls behind the session, every entry is stale and the table is
	// rebuilt lazily on next access.
	gen  uint64
	poly map[int]*Voice
	mono *Voice
	held []int // mono held-note stack, most recent last
}

// NewManager builds an empty table bound to sess, seeding new voices from
// router's last-value cache.
func NewManager(sess *backend.Manager, router *param.Router, cfg Config) *Manager {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaultReleaseTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	router.SetMode(cfg.Mode)
	return &Manager{
		sess:           sess,
		router:         router,
		log:            cfg.Logger,
		mode:           cfg.Mode,
		releaseTimeout: cfg.ReleaseTimeout,
		now:            cfg.Now,
		gen:            sess.Generation(),
		poly:           make(map[int]*Voice),
	}
}

// Mode returns the current allocation discipline.
func (m *Manager) Mode() param.Mode { return m.mode }

// Voices returns the live voices, actives first. For status display and tests.
func (m *Manager) Voices() []*Voice {
	out := make([]*Voice, 0, len(m.poly)+1)
	for _, v := range m.poly {
		if v.State == StateActive {
			out = append(out, v)
		}
	}
	for _, v := range m.poly {
		if v.State == StateReleasing {
			out = append(out, v)
		}
	}
	if m.mono != nil {
		out = append(out, m.mono)
	}
	return out
}

// Held returns a copy of the mono held-note stack.
func (m *Manager) Held() []int {
	out := make([]int, len(m.held))
	copy(out, m.held)
	return out
}

// dropStale discards every voice created under a previous session
// generation. The backend already freed them; there is nothing to call.
func (m *Manager) dropStale() {
	cur := m.sess.Generation()
	if cur == m.gen {
		return
	}
	n := len(m.poly)
	if m.mono != nil {
		n++
	}
	if n > 0 {
		m.log.Info("discarding stale voices after backend reboot",
			zap.Int("count", n),
			zap.Uint64("generation", cur))
	}
	m.poly = make(map[int]*Voice)
	m.mono = nil
	m.held = m.held[:0]
	m.gen = cur
}

// NoteOn applies a note-on. Velocity is the 0..1 amplitude target.
func (m *Manager) NoteOn(note int, velocity float64) {
	m.dropStale()
	if m.mode == param.ModePoly {
		m.polyNoteOn(note, velocity)
		return
	}
	m.monoNoteOn(note, velocity)
}

func (m *Manager) polyNoteOn(note int, velocity float64) {
	if v, ok := m.poly[note]; ok {
		// Retrigger in place; allocating a duplicate would leak the old
		// handle and break the one-voice-per-note invariant.
		if err := m.sess.RetuneVoice(v.Handle, NoteFrequency(note), velocity); err != nil {
			m.dropVoice(v, err)
			delete(m.poly, note)
			m.allocPoly(note, velocity)
			return
		}
		v.State = StateActive
		v.LastVelocity = velocity
		return
	}
	m.allocPoly(note, velocity)
}

func (m *Manager) allocPoly(note int, velocity float64) {
	h := m.sess.NewHandle()
	err := m.sess.StartVoice(h, NoteFrequency(note), velocity, m.router.VoiceControls())
	if err != nil {
		m.log.Warn("start voice failed",
			zap.Int("note", note), zap.Error(err))
		return
	}
	m.poly[note] = &Voice{
		Note:         note,
		Handle:       h,
		State:        StateActive,
		LastVelocity: velocity,
	}
}

func (m *Manager) monoNoteOn(note int, velocity float64) {
	m.pushHeld(note)
	if m.mono != nil {
		// Legato: retune the persistent voice, no new allocation.
		err := m.sess.RetuneVoice(m.mono.Handle, NoteFrequency(note), velocity)
		if err == nil {
			m.mono.Note = note
			m.mono.State = StateActive
			m.mono.LastVelocity = velocity
			return
		}
		// The backend side is already gone (a freed release tail); the
		// note-on still has to sound, so start over.
		m.dropVoice(m.mono, err)
		m.mono = nil
	}
	m.allocMono(note, velocity)
}

func (m *Manager) allocMono(note int, velocity float64) {
	h := m.sess.NewHandle()
	err := m.sess.StartVoice(h, NoteFrequency(note), velocity, m.router.VoiceControls())
	if err != nil {
		m.log.Warn("start mono voice failed",
			zap.Int("note", note), zap.Error(err))
		m.held = m.held[:0]
		return
	}
	m.mono = &Voice{
		Note:         note,
		Handle:       h,
		State:        StateActive,
		LastVelocity: velocity,
	}
}

// NoteOff applies a note-off. A note with no matching voice is a no-op;
// key-ups routinely arrive after a steal or an all-notes-off.
func (m *Manager) NoteOff(note int) {
	m.dropStale()
	if m.mode == param.ModePoly {
		v, ok := m.poly[note]
		if !ok {
			return
		}
		if err := m.sess.ReleaseVoice(v.Handle); err != nil {
			m.dropVoice(v, err)
			delete(m.poly, note)
			return
		}
		v.State = StateReleasing
		v.releaseAt = m.now().Add(m.releaseTimeout)
		return
	}
	m.monoNoteOff(note)
}

func (m *Manager) monoNoteOff(note int) {
	wasTop := len(m.held) > 0 && m.held[len(m.held)-1] == note
	m.removeHeld(note)
	if m.mono == nil {
		return
	}
	if len(m.held) > 0 {
		if !wasTop {
			return
		}
		// The sounding note was lifted with others still held: retune back
		// to the new top of the stack instead of going silent.
		top := m.held[len(m.held)-1]
		vel := m.mono.LastVelocity
		if err := m.sess.RetuneVoice(m.mono.Handle, NoteFrequency(top), vel); err != nil {
			// Voice gone on the backend side; the remaining held notes still
			// want sound, so reallocate at the new top.
			m.dropVoice(m.mono, err)
			m.mono = nil
			m.allocMono(top, vel)
			return
		}
		m.mono.Note = top
		return
	}
	if err := m.sess.ReleaseVoice(m.mono.Handle); err != nil {
		m.dropVoice(m.mono, err)
		m.mono = nil
		return
	}
	m.mono.State = StateReleasing
	m.mono.releaseAt = m.now().Add(m.releaseTimeout)
}

// AllNotesOff is the panic path: release everything, absorb every failure,
// leave the table empty.
func (m *Manager) AllNotesOff() {
	m.dropStale()
	m.held = m.held[:0]
	for note, v := range m.poly {
		if err := m.sess.ReleaseVoice(v.Handle); err != nil {
			m.logReleaseSkip(v, err)
		}
		delete(m.poly, note)
	}
	if m.mono != nil {
		if err := m.sess.ReleaseVoice(m.mono.Handle); err != nil {
			m.logReleaseSkip(m.mono, err)
		}
		m.mono = nil
	}
}

// SetMode switches allocation discipline. The table is silenced and rebuilt
// empty so no voice crosses between disciplines.
func (m *Manager) SetMode(mode param.Mode) {
	m.AllNotesOff()
	m.mode = mode
	m.router.SetMode(mode)
	m.poly = make(map[int]*Voice)
	m.mono = nil
}

// SetParameter clamps and records the value, then routes it: global keys go
// to the backend-global control once, per-voice keys fan out to every live
// voice. Voices allocated later inherit from the router cache.
func (m *Manager) SetParameter(key param.Key, value float64) {
	if !key.Valid() {
		return
	}
	clamped := m.router.Set(key, value)
	if param.ScopeOf(key) == param.ScopeGlobal {
		if err := m.sess.SetGlobalControl(key, clamped); err != nil {
			m.log.Warn("set global control failed",
				zap.String("param", key.String()), zap.Error(err))
		}
		return
	}
	m.dropStale()
	for note, v := range m.poly {
		if err := m.sess.SetVoiceControl(v.Handle, key, clamped); err != nil {
			m.dropVoice(v, err)
			delete(m.poly, note)
		}
	}
	if m.mono != nil {
		if err := m.sess.SetVoiceControl(m.mono.Handle, key, clamped); err != nil {
			m.dropVoice(m.mono, err)
			m.mono = nil
		}
	}
}

// Reap removes releasing voices whose release completed, or whose bounded
// wait expired. Called from the engine loop every iteration.
func (m *Manager) Reap() {
	m.dropStale()
	now := m.now()
	for note, v := range m.poly {
		if v.State != StateReleasing {
			continue
		}
		if m.sess.VoiceDone(v.Handle) || now.After(v.releaseAt) {
			delete(m.poly, note)
		}
	}
	if m.mono != nil && m.mono.State == StateReleasing {
		if m.sess.VoiceDone(m.mono.Handle) || now.After(m.mono.releaseAt) {
			m.mono = nil
		}
	}
}

func (m *Manager) dropVoice(v *Voice, err error) {
	level := m.log.Warn
	if errors.Is(err, backend.ErrStaleHandle) || errors.Is(err, backend.ErrNoSuchVoice) {
		level = m.log.Debug
	}
	level("dropping voice after backend call failure",
		zap.Int("note", v.Note),
		zap.String("state", v.State.String()),
		zap.Error(err))
}

func (m *Manager) logReleaseSkip(v *Voice, err error) {
	m.log.Debug("release skipped during all-notes-off",
		zap.Int("note", v.Note), zap.Error(err))
}

func (m *Manager) pushHeld(note int) {
	m.removeHeld(note)
	m.held = append(m.held, note)
}

func (m *Manager) removeHeld(note int) {
	for i, n := range m.held {
		if n == note {
			m.held = append(m.held[:i], m.held[i+1:]...)
			return
		}
	}
}
