package peppermint

import (
	"time"

	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/command"
)

// run is the engine loop: the single goroutine that owns the voice table
// and the backend session. It blocks on the queue with a bounded wait so
// releasing voices get reaped and the backend gets probed even when the
// control plane is idle. Backend failures never end the loop; only the
// shutdown command does.
func (e *Engine) run() {
	defer close(e.done)
	lastProbe := time.Now()
	for {
		cmd, ok, err := e.queue.Receive(e.pollInterval)
		e.voices.Reap()
		if e.healthInterval > 0 && time.Since(lastProbe) >= e.healthInterval {
			e.sess.HealthCheck()
			lastProbe = time.Now()
		}
		if err != nil {
			// Queue closed without a shutdown command; treat it the same.
			e.teardown()
			return
		}
		if !ok {
			continue
		}
		if e.dispatch(cmd) {
			return
		}
	}
}

// dispatch applies one command. Reports true when the loop should exit.
func (e *Engine) dispatch(cmd command.Command) bool {
	switch cmd.Kind {
	case command.KindNoteOn:
		e.voices.NoteOn(cmd.Note, cmd.Velocity)
	case command.KindNoteOff:
		e.voices.NoteOff(cmd.Note)
	case command.KindAllNotesOff:
		e.voices.AllNotesOff()
	case command.KindSetMode:
		e.voices.SetMode(cmd.Mode)
	case command.KindSetParameter:
		e.voices.SetParameter(cmd.Param, cmd.Value)
	case command.KindRebootBackend:
		e.voices.AllNotesOff()
		if err := e.sess.Reboot(); err != nil {
			e.log.Error("backend reboot failed", zap.Error(err))
		}
	case command.KindShutdown:
		e.teardown()
		return true
	}
	return false
}

func (e *Engine) teardown() {
	e.voices.AllNotesOff()
	e.sess.Shutdown()
	e.queue.Close()
	// Nothing emits status events past Shutdown; closing here ends any
	// range over Watch.
	close(e.eventCh)
	e.log.Info("engine stopped")
}
