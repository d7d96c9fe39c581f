// Package command defines the typed commands carried from control-plane
// producers (GUI, MIDI listener) to the engine goroutine, and the bounded
// queue they travel through.
package command

import "github.com/rothamp/peppermint/internal/param"

// Kind tags a Command.
type Kind int

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindAllNotesOff
	KindSetMode
	KindSetParameter
	KindRebootBackend
	KindShutdown
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note_on"
	case KindNoteOff:
		return "note_off"
	case KindAllNotesOff:
		return "all_notes_off"
	case KindSetMode:
		return "set_mode"
	case KindSetParameter:
		return "set_parameter"
	case KindRebootBackend:
		return "reboot_backend"
	case KindShutdown:
		return "shutdown"
	}
	return "unknown"
}

// Command is one control-plane event. Only the fields relevant to Kind are
// meaningful. Commands are value types: ownership passes to the queue on
// Send and to the engine goroutine on Receive.
type Command struct {
	Kind     Kind
	Note     int
	Velocity float64 // 0..1
	Mode     param.Mode
	Param    param.Key
	Value    float64
}

func NoteOn(note int, velocity float64) Command {
	return Command{Kind: KindNoteOn, Note: note, Velocity: velocity}
}

func NoteOff(note int) Command {
	return Command{Kind: KindNoteOff, Note: note}
}

func AllNotesOff() Command { return Command{Kind: KindAllNotesOff} }

func SetMode(m param.Mode) Command { return Command{Kind: KindSetMode, Mode: m} }

func SetParameter(k param.Key, v float64) Command {
	return Command{Kind: KindSetParameter, Param: k, Value: v}
}

func RebootBackend() Command { return Command{Kind: KindRebootBackend} }

func Shutdown() Command { return Command{Kind: KindShutdown} }
