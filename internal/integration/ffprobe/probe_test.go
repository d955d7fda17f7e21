package ffprobe

import (
	"errors"
	"testing"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/types"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "mjpeg", "codec_type": "video"},
    {"index": 1, "codec_name": "flac", "codec_type": "audio", "sample_rate": "96000",
     "channels": 6, "channel_layout": "5.1(side)", "bits_per_raw_sample": "24"},
    {"index": 2, "codec_name": "aac", "codec_type": "audio", "sample_rate": "44100",
     "channels": 3, "channel_layout": "2.1"}
  ],
  "format": {"filename": "x.mka", "nb_streams": 3, "format_name": "matroska,webm", "duration": "12.5"}
}`

func TestParseAudioStreams(t *testing.T) {
	t.Parallel()

	res, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}

	first, err := res.AudioStream(0)
	if err != nil {
		t.Fatal(err)
	}

	if first.Index != 1 || first.Layout() != types.Layout5_1 || first.BitDepth() != 24 {
		t.Errorf("first audio stream = %+v", first)
	}

	if rate, err := first.SampleRateHz(); err != nil || rate != 96000 {
		t.Errorf("rate = %d, %v", rate, err)
	}

	second, err := res.AudioStream(1)
	if err != nil {
		t.Fatal(err)
	}

	// 2.1 is not a known layout: weights are inferred from the channel count.
	if second.Layout() != types.LayoutUnknown || second.BitDepth() != 0 {
		t.Errorf("second audio stream = %+v", second)
	}

	if _, err := res.AudioStream(2); !errors.Is(err, ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte("{")); !errors.Is(err, fault.ErrInvalidJSON) {
		t.Errorf("err = %v, want ErrInvalidJSON", err)
	}

	stream := Stream{SampleRate: "n/a"}
	if _, err := stream.SampleRateHz(); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
