// Command peppermint runs the synth engine with the in-process backend and
// a terminal keyboard. Keys a w s e d f t g y h u j k play an octave from
// middle C; see the banner for the rest of the bindings.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	midisdk "github.com/leandrodaf/midi/sdk/midi"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rothamp/peppermint"
	"github.com/rothamp/peppermint/internal/param"
	"github.com/rothamp/peppermint/internal/synth"
)

// keyRow maps terminal keys to semitone offsets from the base note,
// piano-roll style: white keys on the home row, black keys above.
var keyRow = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12,
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		modeName   = flag.String("mode", "mono", "voice mode: mono|poly")
		presetPath = flag.String("preset", "", "preset file to load on start")
		savePath   = flag.String("save-preset", "", "write the final state to this preset file on exit")
		midiDev    = flag.Int("midi", -1, "MIDI input device id (-1 = off)")
		listMIDI   = flag.Bool("list-midi", false, "list MIDI input devices and exit")
		gateMS     = flag.Int("gate", 250, "terminal keypress note length in milliseconds")
		verbose    = flag.Bool("v", false, "verbose engine logging")
	)
	flag.Parse()

	if *listMIDI {
		listMIDIDevices()
		return
	}

	mode, ok := peppermint.ParseMode(*modeName)
	if !ok {
		log.Fatalf("invalid -mode %q (expected mono|poly)", *modeName)
	}

	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			log.Fatal(err)
		}
	}
	defer logger.Sync()

	eng := peppermint.New(
		synth.Factory(*sampleRate, synth.DefaultParams()),
		peppermint.WithMode(mode),
		peppermint.WithLogger(logger),
	)
	events := eng.Watch()
	go func() {
		for ev := range events {
			fmt.Printf("backend %s (generation %d)\r\n", ev.Status, ev.Generation)
		}
	}()
	if err := eng.Start(); err != nil {
		log.Printf("backend unavailable: %v (press r to retry)", err)
	}
	defer eng.Shutdown()

	if *presetPath != "" {
		if err := eng.LoadPresetFile(*presetPath); err != nil {
			log.Fatal(err)
		}
	}

	var stopMIDI func()
	if *midiDev >= 0 {
		stop, err := bindMIDI(eng, *midiDev)
		if err != nil {
			log.Fatal(err)
		}
		stopMIDI = stop
		defer stopMIDI()
	}

	if err := keyboardLoop(eng, time.Duration(*gateMS)*time.Millisecond, mode == peppermint.ModePoly); err != nil {
		log.Fatal(err)
	}

	if *savePath != "" {
		if err := eng.SavePresetFile(*savePath); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("preset saved to %s\n", *savePath)
	}
}

func listMIDIDevices() {
	client, err := midisdk.NewMIDIClient()
	if err != nil {
		log.Fatal(err)
	}
	defer client.Stop()
	devices, err := client.ListDevices()
	if err != nil {
		log.Fatal(err)
	}
	for i, d := range devices {
		fmt.Printf("%d: %s (%s)\n", i, d.Name, d.Manufacturer)
	}
}

func bindMIDI(eng *peppermint.Engine, device int) (func(), error) {
	client, err := midisdk.NewMIDIClient()
	if err != nil {
		return nil, fmt.Errorf("midi client: %w", err)
	}
	if err := client.SelectDevice(device); err != nil {
		return nil, fmt.Errorf("midi device %d: %w", device, err)
	}
	return peppermint.BindMIDI(eng, client, peppermint.DefaultCCMap()), nil
}

func keyboardLoop(eng *peppermint.Engine, gate time.Duration, poly bool) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("stdin is not a terminal")
	}
	fmt.Println("keys: a..k play notes | z/x octave | [/] cutoff | m mode | p panic | r reboot | q quit")
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	base := 60 // middle C
	cutoff := param.RangeOf(param.KeyCutoff).Default
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return err
		}
		switch c := buf[0]; c {
		case 'q', 0x03: // q or ctrl-c
			return nil
		case 'z':
			if base > 12 {
				base -= 12
			}
		case 'x':
			if base < 108 {
				base += 12
			}
		case '[':
			cutoff *= 0.8
			cutoff = param.Clamp(param.KeyCutoff, cutoff)
			eng.SetParameter(param.KeyCutoff, cutoff)
			fmt.Printf("cutoff %.0f Hz\r\n", cutoff)
		case ']':
			cutoff *= 1.25
			cutoff = param.Clamp(param.KeyCutoff, cutoff)
			eng.SetParameter(param.KeyCutoff, cutoff)
			fmt.Printf("cutoff %.0f Hz\r\n", cutoff)
		case 'm':
			poly = !poly
			if poly {
				eng.SetMode(peppermint.ModePoly)
				fmt.Print("poly\r\n")
			} else {
				eng.SetMode(peppermint.ModeMono)
				fmt.Print("mono\r\n")
			}
		case 'p':
			eng.AllNotesOff()
		case 'r':
			eng.RebootBackend()
		default:
			if offset, ok := keyRow[c]; ok {
				note := base + offset
				eng.NoteOn(note, 0.8)
				// Terminals report no key-up; close the gate on a timer.
				time.AfterFunc(gate, func() { eng.NoteOff(note) })
			}
		}
	}
}
