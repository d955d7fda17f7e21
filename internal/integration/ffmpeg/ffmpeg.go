package ffmpeg

import (
	"strconv"
	"time"

	"github.com/farcloser/auricle/internal/types"
)

const (
	name = "ffmpeg"
	// Decoding a long file from a slow mount takes a while.
	timeout = 10 * time.Minute
)

// sampleSpec returns the ffmpeg raw muxer and codec names for a PCM format: f32le, s16le, s24le, s32le.
func sampleSpec(format types.PCMFormat) (muxer, codec string) {
	if format.Float {
		return "f32le", "pcm_f32le"
	}

	//nolint:gosec // bit depth is one of 16, 24, 32
	muxer = "s" + strconv.Itoa(int(format.BitDepth)) + "le"

	return muxer, "pcm_" + muxer
}
