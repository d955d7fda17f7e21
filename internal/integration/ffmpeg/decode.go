package ffmpeg

import (
	"context"
	"fmt"
	"io"

	"github.com/farcloser/auricle/internal/integration/ffprobe"
	"github.com/farcloser/auricle/internal/pcm"
	"github.com/farcloser/auricle/internal/types"
)

// Decoded is a fully decoded audio stream with the metadata it came from.
type Decoded struct {
	Buffer *types.AudioBuffer
	Stream *ffprobe.Stream
	Format types.PCMFormat
	Probe  *ffprobe.Result
}

// FormatFor returns the PCM format to request from ffmpeg for a probed stream.
// Samples are requested as 32-bit float so lossless sources keep their resolution.
func FormatFor(stream *ffprobe.Stream) (types.PCMFormat, error) {
	rate, err := stream.SampleRateHz()
	if err != nil {
		return types.PCMFormat{}, err
	}

	if stream.Channels <= 0 {
		return types.PCMFormat{}, fmt.Errorf("%w: stream %d has no channels", types.ErrInvalidInput, stream.Index)
	}

	return types.PCMFormat{
		SampleRate: rate,
		BitDepth:   types.Depth32,
		Channels:   uint(stream.Channels),
		Float:      true,
		Layout:     stream.Layout(),
	}, nil
}

// DecodeFile probes a file and decodes its nth audio stream into memory.
func DecodeFile(ctx context.Context, filePath string, streamIndex int) (*Decoded, error) {
	probe, err := ffprobe.Probe(ctx, filePath)
	if err != nil {
		return nil, err
	}

	return DecodeProbed(ctx, filePath, probe, streamIndex)
}

// DecodeProbed decodes the nth audio stream of a file that was already probed.
func DecodeProbed(ctx context.Context, filePath string, probe *ffprobe.Result, streamIndex int) (*Decoded, error) {
	stream, err := probe.AudioStream(streamIndex)
	if err != nil {
		return nil, err
	}

	format, err := FormatFor(stream)
	if err != nil {
		return nil, err
	}

	reader, writer := io.Pipe()
	extracted := make(chan error, 1)

	go func() {
		err := ExtractFile(ctx, filePath, writer, streamIndex, format)
		writer.CloseWithError(err)
		extracted <- err
	}()

	buf, decodeErr := pcm.Decode(reader, format)
	// Unblock ffmpeg if decoding stopped early.
	_ = reader.CloseWithError(io.ErrClosedPipe)

	if err := <-extracted; err != nil {
		return nil, err
	}

	if decodeErr != nil {
		return nil, decodeErr
	}

	return &Decoded{Buffer: buf, Stream: stream, Format: format, Probe: probe}, nil
}

// Decoder adapts DecodeFile to callers that only need the samples of one stream.
type Decoder struct {
	Stream int
}

func (d Decoder) Decode(ctx context.Context, path string) (*types.AudioBuffer, error) {
	decoded, err := DecodeFile(ctx, path, d.Stream)
	if err != nil {
		return nil, err
	}

	return decoded.Buffer, nil
}
