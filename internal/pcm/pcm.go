package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/types"
)

const readFrames = 4096

// Signed integer samples are scaled by 2^(bits-1).
const (
	scale16 = 1 << 15
	scale24 = 1 << 23
	scale32 = 1 << 31
)

// Validate checks that a format can be decoded.
func Validate(format types.PCMFormat) error {
	if format.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", types.ErrInvalidInput, format.SampleRate)
	}

	if format.Channels == 0 {
		return fmt.Errorf("%w: zero channels", types.ErrInvalidInput)
	}

	switch format.BitDepth {
	case types.Depth16, types.Depth24:
		if format.Float {
			return fmt.Errorf("%w: float samples require 32 bits, got %d", types.ErrInvalidInput, format.BitDepth)
		}
	case types.Depth32:
	default:
		return fmt.Errorf("%w: unsupported bit depth %d", types.ErrInvalidInput, format.BitDepth)
	}

	if format.Layout != types.LayoutUnknown && format.Layout.Channels() != int(format.Channels) {
		return fmt.Errorf("%w: layout %s does not have %d channels", types.ErrInvalidInput, format.Layout, format.Channels)
	}

	return nil
}

// Decode reads interleaved little-endian PCM until EOF and de-interleaves it into a buffer.
// Partial frames split across reads are carried over; a trailing partial frame is dropped.
func Decode(r io.Reader, format types.PCMFormat) (*types.AudioBuffer, error) {
	if err := Validate(format); err != nil {
		return nil, err
	}

	bytesPerSample := int(format.BitDepth / 8)
	numChannels := int(format.Channels)
	frameSize := bytesPerSample * numChannels
	sample := sampleDecoder(format)

	channels := make([][]float64, numChannels)
	buf := make([]byte, frameSize*readFrames)
	pending := 0

	for {
		n, err := r.Read(buf[pending:])
		pending += n

		complete := (pending / frameSize) * frameSize
		for i := 0; i < complete; i += frameSize {
			for ch := range numChannels {
				channels[ch] = append(channels[ch], sample(buf[i+ch*bytesPerSample:]))
			}
		}

		// Keep the partial frame at the head of the buffer.
		pending = copy(buf, buf[complete:pending])

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrReadFailure, err)
		}
	}

	if pending > 0 {
		slog.Debug("pcm.Decode", "dropped trailing bytes", pending)
	}

	buffer := &types.AudioBuffer{
		SampleRate: format.SampleRate,
		Channels:   channels,
		Layout:     format.Layout,
	}

	if buffer.Frames() == 0 {
		return nil, fmt.Errorf("%w: no complete frame in input", types.ErrInvalidInput)
	}

	return buffer, nil
}

func sampleDecoder(format types.PCMFormat) func([]byte) float64 {
	switch {
	case format.Float:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
	case format.BitDepth == types.Depth16:
		return func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / scale16
		}
	case format.BitDepth == types.Depth24:
		return func(b []byte) float64 {
			raw := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if raw&0x800000 != 0 {
				raw |= ^0xFFFFFF
			}

			return float64(raw) / scale24
		}
	default:
		return func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b))) / scale32
		}
	}
}

// Encode interleaves a buffer into little-endian PCM, clamping to full scale.
// Non-finite samples are written as zero.
func Encode(w io.Writer, buf *types.AudioBuffer, format types.PCMFormat) error {
	if err := buf.Validate(); err != nil {
		return err
	}

	if err := Validate(format); err != nil {
		return err
	}

	if int(format.Channels) != len(buf.Channels) {
		return fmt.Errorf("%w: format has %d channels, buffer has %d", types.ErrInvalidInput, format.Channels, len(buf.Channels))
	}

	bytesPerSample := int(format.BitDepth / 8)
	frame := make([]byte, bytesPerSample*len(buf.Channels))

	for i := range buf.Frames() {
		for ch, samples := range buf.Channels {
			putSample(frame[ch*bytesPerSample:], samples[i], format)
		}

		if _, err := w.Write(frame); err != nil {
			return fmt.Errorf("writing frame %d: %w", i, err)
		}
	}

	return nil
}

func putSample(b []byte, s float64, format types.PCMFormat) {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		s = 0
	}

	if format.Float {
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(s)))

		return
	}

	s = max(-1, min(s, 1))

	switch format.BitDepth {
	case types.Depth16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clampRound(s*scale16, math.MinInt16, math.MaxInt16))))
	case types.Depth24:
		v := int32(clampRound(s*scale24, -1<<23, 1<<23-1))
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	default:
		binary.LittleEndian.PutUint32(b, uint32(int32(clampRound(s*scale32, math.MinInt32, math.MaxInt32))))
	}
}

func clampRound(v, lo, hi float64) float64 {
	return max(lo, min(math.Round(v), hi))
}
