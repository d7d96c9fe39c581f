// Package audio pushes a live float32 stereo sample source out through the
// platform audio device.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource fills dst with interleaved stereo float32 frames. It runs on
// the audio thread; implementations must not block.
type SampleSource interface {
	Process(dst []float32)
}

type streamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func (r *streamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(r.buf[i]))
	}
	return frames * 8, nil
}

func (r *streamReader) Close() error { return nil }

// The device context can only ever be opened at one sample rate per process.
var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already open at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Player streams a SampleSource to the audio device until stopped.
type Player struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

// NewPlayer opens the device at sampleRate and binds source to it. Playback
// starts on Play.
func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := &streamReader{source: source}
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &Player{player: pl, reader: reader}, nil
}

func (p *Player) Play()  { p.player.Play() }
func (p *Player) Pause() { p.player.Pause() }

// IsPlaying reports whether the device is pulling samples.
func (p *Player) IsPlaying() bool { return p.player.IsPlaying() }

// Stop halts playback and releases the device player.
func (p *Player) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
