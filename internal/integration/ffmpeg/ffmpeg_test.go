package ffmpeg

import (
	"errors"
	"testing"

	"github.com/farcloser/auricle/internal/integration/ffprobe"
	"github.com/farcloser/auricle/internal/types"
)

func TestSampleSpec(t *testing.T) {
	t.Parallel()

	cases := []struct {
		format       types.PCMFormat
		muxer, codec string
	}{
		{types.PCMFormat{BitDepth: types.Depth16}, "s16le", "pcm_s16le"},
		{types.PCMFormat{BitDepth: types.Depth24}, "s24le", "pcm_s24le"},
		{types.PCMFormat{BitDepth: types.Depth32}, "s32le", "pcm_s32le"},
		{types.PCMFormat{BitDepth: types.Depth32, Float: true}, "f32le", "pcm_f32le"},
	}

	for _, c := range cases {
		muxer, codec := sampleSpec(c.format)
		if muxer != c.muxer || codec != c.codec {
			t.Errorf("%+v: got %s/%s, want %s/%s", c.format, muxer, codec, c.muxer, c.codec)
		}
	}
}

func TestFormatFor(t *testing.T) {
	t.Parallel()

	format, err := FormatFor(&ffprobe.Stream{SampleRate: "48000", Channels: 8, ChannelLayout: "7.1"})
	if err != nil {
		t.Fatal(err)
	}

	want := types.PCMFormat{SampleRate: 48000, BitDepth: types.Depth32, Channels: 8, Float: true, Layout: types.Layout7_1}
	if format != want {
		t.Errorf("got %+v, want %+v", format, want)
	}

	if _, err := FormatFor(&ffprobe.Stream{SampleRate: "48000"}); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
