//nolint:tagliatelle
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/integration/binary"
	"github.com/farcloser/auricle/internal/types"
)

const (
	name = "ffprobe"
	// Slow disks spinning up or network mounts may cause timeouts if too aggressive.
	timeout = 60 * time.Second
)

// ErrNoAudio is returned when a container has no audio stream at the requested index.
var ErrNoAudio = errors.New("no audio stream")

// Result contains the marshalled output of ffprobe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream holds the stream properties needed to decode and describe audio.
type Stream struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name"`               // flac
	CodecType     string `json:"codec_type"`               // audio
	SampleRate    string `json:"sample_rate,omitempty"`    // 44100
	Channels      int    `json:"channels,omitempty"`       // 2
	ChannelLayout string `json:"channel_layout,omitempty"` // stereo, 5.1(side)
	Duration      string `json:"duration,omitempty"`       // 310.666667
	BitRate       string `json:"bit_rate,omitempty"`       // 956821
	SampleFmt     string `json:"sample_fmt,omitempty"`     // s16, fltp
	// Lossy codecs have no bit depth; lossless ones report it in one of these two, or neither.
	BitsPerRawSample string `json:"bits_per_raw_sample,omitempty"`
	BitsPerSample    int    `json:"bits_per_sample,omitempty"`
}

// Format holds container-level information.
type Format struct {
	Filename   string `json:"filename"`
	NbStreams  int    `json:"nb_streams"`
	FormatName string `json:"format_name"` // "flac", "mov,mp4,m4a,3gp,3g2,mj2"
	Duration   string `json:"duration,omitempty"`
	BitRate    string `json:"bit_rate,omitempty"`
	Size       string `json:"size,omitempty"`
}

// Parse decodes ffprobe JSON output.
func Parse(output []byte) (*Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}

	return &result, nil
}

// AudioStream returns the nth audio stream (0-based, counting audio streams only).
func (r *Result) AudioStream(n int) (*Stream, error) {
	seen := 0

	for i := range r.Streams {
		if r.Streams[i].CodecType != "audio" {
			continue
		}

		if seen == n {
			return &r.Streams[i], nil
		}

		seen++
	}

	return nil, fmt.Errorf("%w: index %d, container has %d", ErrNoAudio, n, seen)
}

// SampleRateHz parses the textual sample rate.
func (s *Stream) SampleRateHz() (int, error) {
	rate, err := strconv.Atoi(s.SampleRate)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("%w: sample rate %q", types.ErrInvalidInput, s.SampleRate)
	}

	return rate, nil
}

// Layout maps the ffprobe channel layout. Unknown names fall back to inference from the channel count.
func (s *Stream) Layout() types.Layout {
	layout, err := types.ParseLayout(s.ChannelLayout)
	if err != nil || layout.Channels() != s.Channels {
		return types.LayoutUnknown
	}

	return layout
}

// BitDepth returns the source bit depth when the container reports one, 0 otherwise.
func (s *Stream) BitDepth() int {
	if bits, err := strconv.Atoi(s.BitsPerRawSample); err == nil && bits > 0 {
		return bits
	}

	return s.BitsPerSample
}

// Probe runs ffprobe on the given file path and returns parsed metadata.
// It requires ffprobe to be available in the system PATH.
func Probe(ctx context.Context, filePath string) (*Result, error) {
	slog.Debug("ffprobe.Probe", "file path", filePath)

	ffprobePath, err := binary.Require(name)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	//nolint:gosec // filePath is intentionally user-provided input for probing media files
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	return Parse(output)
}
