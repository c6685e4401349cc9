package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrUnsupported is returned for WAV files oto cannot play as-is.
var ErrUnsupported = errors.New("unsupported wav format")

// format describes PCM sample layout.
type format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// parseWAV reads a RIFF/WAVE file and returns its format and raw PCM data.
// Only 16-bit little-endian PCM is accepted.
func parseWAV(data []byte) (format, []byte, error) {
	r := bytes.NewReader(data)

	var header struct {
		RIFF [4]byte
		Size uint32
		WAVE [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return format{}, nil, fmt.Errorf("read wav header: %w", err)
	}
	if string(header.RIFF[:]) != "RIFF" || string(header.WAVE[:]) != "WAVE" {
		return format{}, nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupported)
	}

	var (
		f       format
		haveFmt bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return format{}, nil, fmt.Errorf("%w: no data chunk", ErrUnsupported)
			}
			return format{}, nil, fmt.Errorf("read wav chunk: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var fmtChunk struct {
				AudioFormat   uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if chunk.Size < 16 {
				return format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrUnsupported)
			}
			if err := binary.Read(r, binary.LittleEndian, &fmtChunk); err != nil {
				return format{}, nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if fmtChunk.AudioFormat != 1 {
				return format{}, nil, fmt.Errorf("%w: compression code %d", ErrUnsupported, fmtChunk.AudioFormat)
			}
			if fmtChunk.BitsPerSample != 16 {
				return format{}, nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupported, fmtChunk.BitsPerSample)
			}
			f = format{
				SampleRate: int(fmtChunk.SampleRate),
				Channels:   int(fmtChunk.Channels),
				BitDepth:   int(fmtChunk.BitsPerSample),
			}
			haveFmt = true
			if _, err := r.Seek(int64(chunk.Size-16), io.SeekCurrent); err != nil {
				return format{}, nil, err
			}
		case "data":
			if !haveFmt {
				return format{}, nil, fmt.Errorf("%w: data before fmt", ErrUnsupported)
			}
			pcm := make([]byte, chunk.Size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return format{}, nil, fmt.Errorf("read wav data: %w", err)
			}
			return f, pcm, nil
		default:
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return format{}, nil, err
			}
		}
	}
}

// encodeWAV wraps 16-bit PCM in a minimal RIFF/WAVE container.
func encodeWAV(f format, pcm []byte) []byte {
	var buf bytes.Buffer
	blockAlign := f.Channels * f.BitDepth / 8
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	w(uint32(36 + len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(f.Channels))
	w(uint32(f.SampleRate))
	w(uint32(f.SampleRate * blockAlign))
	w(uint16(blockAlign))
	w(uint16(f.BitDepth))
	buf.WriteString("data")
	w(uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// beep renders a mono sine tone followed by an equal pause.
func beep(sampleRate int, hz float64, length float64) []byte {
	n := int(float64(sampleRate) * length)
	pcm := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		v := int16(math.Sin(2*math.Pi*hz*float64(i)/float64(sampleRate)) * 0.4 * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(v))
	}
	return pcm
}
