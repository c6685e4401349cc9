// Package sound plays alarm sounds through the system audio device.
package sound

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/roach88/dayplan/internal/alarm"
)

// BuiltinBeep names a generated tone that needs no file on disk.
const BuiltinBeep = "beep"

const beepSampleRate = 44100

// stream is the part of *oto.Player the Player uses.
type stream interface {
	Play()
	Pause()
	Close() error
}

// backend opens an output for f and returns a constructor for streams.
type backend func(f format) (func(io.Reader) stream, error)

// Player implements alarm.Player on top of oto. Sound references are WAV
// file names resolved against a directory, absolute paths, or BuiltinBeep.
//
// Thread-safety: safe for concurrent use.
type Player struct {
	dir    string
	open   backend
	logger *slog.Logger

	mu      sync.Mutex
	next    alarm.Handle
	streams map[alarm.Handle]stream
}

var _ alarm.Player = (*Player)(nil)

// NewPlayer returns a player resolving relative references against dir.
func NewPlayer(dir string) *Player {
	return newPlayer(dir, otoBackend)
}

func newPlayer(dir string, open backend) *Player {
	return &Player{
		dir:     dir,
		open:    open,
		logger:  slog.Default(),
		streams: make(map[alarm.Handle]stream),
	}
}

// Play starts ref and returns immediately. With opts.Loop the sound repeats
// until Stop.
func (p *Player) Play(ref string, opts alarm.PlayOptions) (alarm.Handle, error) {
	f, pcm, err := p.load(ref)
	if err != nil {
		return 0, err
	}
	newStream, err := p.open(f)
	if err != nil {
		return 0, fmt.Errorf("open audio output: %w", err)
	}

	var src io.Reader = bytes.NewReader(pcm)
	if opts.Loop {
		src = &loopReader{data: pcm}
	}
	s := newStream(src)
	s.Play()

	p.mu.Lock()
	p.next++
	h := p.next
	p.streams[h] = s
	p.mu.Unlock()

	p.logger.Debug("sound started", "ref", ref, "handle", h, "loop", opts.Loop)
	return h, nil
}

// Stop halts playback. Stopping an unknown or already stopped handle is a
// no-op.
func (p *Player) Stop(h alarm.Handle) error {
	p.mu.Lock()
	s, ok := p.streams[h]
	delete(p.streams, h)
	p.mu.Unlock()
	if !ok {
		return nil
	}

	s.Pause()
	if err := s.Close(); err != nil {
		return fmt.Errorf("close stream %d: %w", h, err)
	}
	p.logger.Debug("sound stopped", "handle", h)
	return nil
}

// Playing returns the number of live streams.
func (p *Player) Playing() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}

func (p *Player) load(ref string) (format, []byte, error) {
	if ref == BuiltinBeep {
		return format{SampleRate: beepSampleRate, Channels: 1, BitDepth: 16}, beep(beepSampleRate, 880, 0.3), nil
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, ref)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return format{}, nil, fmt.Errorf("read sound %q: %w", ref, err)
	}
	f, pcm, err := parseWAV(data)
	if err != nil {
		return format{}, nil, fmt.Errorf("sound %q: %w", ref, err)
	}
	return f, pcm, nil
}

// loopReader repeats data forever.
type loopReader struct {
	data []byte
	pos  int
}

func (r *loopReader) Read(b []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(b) {
		c := copy(b[n:], r.data[r.pos:])
		n += c
		r.pos = (r.pos + c) % len(r.data)
	}
	return n, nil
}

// oto allows one context per process, fixed to the first format it sees.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat format
	otoErr    error
)

func otoBackend(f format) (func(io.Reader) stream, error) {
	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
		otoFormat = f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if f.SampleRate != otoFormat.SampleRate || f.Channels != otoFormat.Channels {
		return nil, fmt.Errorf("%w: %d Hz x%d does not match the open output (%d Hz x%d)",
			ErrUnsupported, f.SampleRate, f.Channels, otoFormat.SampleRate, otoFormat.Channels)
	}
	return func(r io.Reader) stream { return otoCtx.NewPlayer(r) }, nil
}
