// Package peppermint is the control engine for the Peppermint synth: it
// mediates between control-plane producers (panel, MIDI listener) and the
// synthesis backend. Producers enqueue commands; a single engine goroutine
// owns the voice table, the parameter cache and the backend session, and is
// the only goroutine that mutates sound-producing state.
package peppermint

import (
	"time"

	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/backend"
	"github.com/rothamp/peppermint/internal/command"
	"github.com/rothamp/peppermint/internal/param"
	"github.com/rothamp/peppermint/internal/voice"
)

// Mode and Key are re-exported so callers outside the module only need this
// package.
type (
	Mode = param.Mode
	Key  = param.Key
)

const (
	ModeMono = param.ModeMono
	ModePoly = param.ModePoly
)

// ParseKey maps a parameter name ("cutoff", "res", ...) to its Key.
func ParseKey(name string) (Key, bool) { return param.ParseKey(name) }

// ParseMode maps "mono"/"poly" to a Mode.
func ParseMode(name string) (Mode, bool) { return param.ParseMode(name) }

// StatusEvent reports a backend session transition.
type StatusEvent struct {
	Status     backend.Status
	Generation uint64
}

type Option func(*config)

type config struct {
	mode           param.Mode
	queueDepth     int
	pollInterval   time.Duration
	releaseTimeout time.Duration
	bootRetries    int
	bootBackoff    time.Duration
	healthInterval time.Duration
	logger         *zap.Logger
}

func defaultConfig() config {
	return config{
		mode:           param.ModeMono,
		queueDepth:     256,
		pollInterval:   100 * time.Millisecond,
		releaseTimeout: 2 * time.Second,
		healthInterval: 5 * time.Second,
	}
}

// WithMode sets the initial voice allocation mode.
func WithMode(m Mode) Option {
	return func(cfg *config) { cfg.mode = m }
}

// WithLogger installs a logger; the default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(cfg *config) { cfg.logger = log }
}

// WithQueueDepth bounds the command queue before coalescing kicks in.
func WithQueueDepth(depth int) Option {
	return func(cfg *config) { cfg.queueDepth = depth }
}

// WithReleaseTimeout bounds the wait for a voice's release phase before it
// is dropped from the table anyway.
func WithReleaseTimeout(d time.Duration) Option {
	return func(cfg *config) { cfg.releaseTimeout = d }
}

// WithBootRetries sets how many extra boot attempts follow a failed one.
func WithBootRetries(n int) Option {
	return func(cfg *config) { cfg.bootRetries = n }
}

// WithBootBackoff sets the wait before the first boot retry; it doubles on
// each subsequent attempt.
func WithBootBackoff(d time.Duration) Option {
	return func(cfg *config) { cfg.bootBackoff = d }
}

// WithHealthInterval sets the backend probe period. Zero disables probing.
func WithHealthInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.healthInterval = d }
}

// Engine is the public face of the control engine. All methods are safe to
// call from any goroutine; they only enqueue commands.
type Engine struct {
	log    *zap.Logger
	queue  *command.Queue
	sess   *backend.Manager
	voices *voice.Manager
	router *param.Router

	pollInterval   time.Duration
	healthInterval time.Duration

	eventCh chan StatusEvent
	done    chan struct{}
}

// New wires an engine around a backend factory. Call Start to boot the
// backend and begin processing commands.
func New(factory backend.Factory, opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	e := &Engine{
		log:            cfg.logger,
		queue:          command.NewQueue(cfg.queueDepth),
		router:         param.NewRouter(),
		pollInterval:   cfg.pollInterval,
		healthInterval: cfg.healthInterval,
		eventCh:        make(chan StatusEvent, 8),
		done:           make(chan struct{}),
	}
	e.sess = backend.NewManager(factory, backend.Config{
		BootRetries: cfg.bootRetries,
		BootBackoff: cfg.bootBackoff,
		Logger:      cfg.logger,
		OnStatus:    e.sendStatus,
	})
	e.voices = voice.NewManager(e.sess, e.router, voice.Config{
		Mode:           cfg.mode,
		ReleaseTimeout: cfg.releaseTimeout,
		Logger:         cfg.logger,
	})
	return e
}

// Start boots the backend and spawns the engine goroutine. A boot failure
// is returned for visibility but the engine keeps running in the Failed
// state; RebootBackend retries it.
func (e *Engine) Start() error {
	err := e.sess.Boot()
	if err != nil {
		e.log.Error("initial backend boot failed", zap.Error(err))
	}
	go e.run()
	return err
}

// Watch returns the status event channel. Events are dropped rather than
// ever blocking the engine; receive promptly or poll Status instead. The
// channel is closed when the engine shuts down.
func (e *Engine) Watch() <-chan StatusEvent { return e.eventCh }

// Status returns the current backend session status.
func (e *Engine) Status() backend.Status { return e.sess.Status() }

// Generation returns the current backend session epoch.
func (e *Engine) Generation() uint64 { return e.sess.Generation() }

func (e *Engine) sendStatus(s backend.Status, gen uint64) {
	select {
	case e.eventCh <- StatusEvent{Status: s, Generation: gen}:
	default:
		// Nobody listening fast enough; state is still observable via Status.
	}
}

// NoteOn enqueues a note-on. Notes outside 0..127 are ignored at this
// boundary; velocity clamps to 0..1, and velocity zero means note-off.
func (e *Engine) NoteOn(note int, velocity float64) {
	if note < 0 || note > 127 {
		e.log.Debug("ignoring out-of-range note", zap.Int("note", note))
		return
	}
	if velocity <= 0 {
		e.NoteOff(note)
		return
	}
	if velocity > 1 {
		velocity = 1
	}
	e.send(command.NoteOn(note, velocity))
}

// NoteOff enqueues a note-off. Unmatched note-offs are no-ops downstream.
func (e *Engine) NoteOff(note int) {
	if note < 0 || note > 127 {
		return
	}
	e.send(command.NoteOff(note))
}

// AllNotesOff enqueues the panic command.
func (e *Engine) AllNotesOff() { e.send(command.AllNotesOff()) }

// SetMode enqueues a voice-mode switch. Switching silences everything
// first; no voice survives across disciplines.
func (e *Engine) SetMode(m Mode) { e.send(command.SetMode(m)) }

// SetParameter enqueues a parameter change. Values clamp to the key's
// declared range on application.
func (e *Engine) SetParameter(k Key, v float64) {
	if !k.Valid() {
		e.log.Debug("ignoring unknown parameter", zap.Int("key", int(k)))
		return
	}
	e.send(command.SetParameter(k, v))
}

// RebootBackend enqueues a session reboot. Commands already queued drain
// first, in order; they become no-ops against the fresh session.
func (e *Engine) RebootBackend() { e.send(command.RebootBackend()) }

// Shutdown asks the engine goroutine to silence everything, tear down the
// backend and exit, then waits for it.
func (e *Engine) Shutdown() {
	e.send(command.Shutdown())
	<-e.done
}

func (e *Engine) send(cmd command.Command) {
	if err := e.queue.Send(cmd); err != nil {
		e.log.Debug("command after shutdown", zap.Stringer("kind", cmd.Kind))
	}
}
