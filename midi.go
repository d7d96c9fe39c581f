package peppermint

import (
	"github.com/leandrodaf/midi/sdk/contracts"
	"go.uber.org/zap"

	"github.com/rothamp/peppermint/internal/param"
)

const (
	midiNoteOff       = 0x80
	midiNoteOn        = 0x90
	midiControlChange = 0xB0
)

// CCMap routes MIDI control-change numbers to parameters. The 0..127 CC
// value is rescaled into the parameter's declared range.
type CCMap map[byte]Key

// DefaultCCMap covers the common filter/mod-wheel assignments.
func DefaultCCMap() CCMap {
	return CCMap{
		1:  param.KeyLFODepth, // mod wheel
		71: param.KeyRes,
		74: param.KeyCutoff,
	}
}

// BindMIDI attaches a MIDI client as a producer: captured note events turn
// into note commands, and mapped CC messages into parameter commands. The
// listener goroutine never touches engine internals; it only enqueues.
// The returned stop function detaches the listener and stops the client.
func BindMIDI(e *Engine, client contracts.ClientMIDI, cc CCMap) (stop func()) {
	events := make(chan contracts.MIDI, 128)
	client.StartCapture(events)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-quit:
				return
			case ev := <-events:
				e.handleMIDI(ev, cc)
			}
		}
	}()

	return func() {
		close(quit)
		if err := client.Stop(); err != nil {
			e.log.Warn("midi client stop", zap.Error(err))
		}
	}
}

func (e *Engine) handleMIDI(ev contracts.MIDI, cc CCMap) {
	switch ev.Command & 0xF0 {
	case midiNoteOn:
		// Note-on with velocity zero is a note-off by convention.
		e.NoteOn(int(ev.Note), float64(ev.Velocity)/127.0)
	case midiNoteOff:
		e.NoteOff(int(ev.Note))
	case midiControlChange:
		key, ok := cc[ev.Note]
		if !ok {
			return
		}
		r := param.RangeOf(key)
		e.SetParameter(key, r.Min+(r.Max-r.Min)*float64(ev.Velocity)/127.0)
	}
}
