package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"

	"github.com/farcloser/primordium/fault"

	"github.com/farcloser/auricle/internal/integration/binary"
	"github.com/farcloser/auricle/internal/types"
)

// ExtractFile decodes one audio stream of a file to raw interleaved PCM written to output.
// Reading from a path rather than stdin lets ffmpeg seek, which containers like m4a require.
func ExtractFile(
	ctx context.Context,
	filePath string,
	output io.Writer,
	streamIndex int,
	format types.PCMFormat,
) error {
	slog.Debug("ffmpeg.ExtractFile", "file path", filePath, "stream index", streamIndex, "stage", "start")

	ffmpegPath, err := binary.Require(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	muxer, codec := sampleSpec(format)

	//nolint:gosec // filePath is intentionally user-provided input
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-nostdin",
		"-i", filePath,
		"-map", "0:a:"+strconv.Itoa(streamIndex),
		"-f", muxer,
		"-acodec", codec,
		"-v", "quiet",
		"-",
	)

	cmd.Stdout = output

	var stderr bytes.Buffer

	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Debug("ffmpeg.ExtractFile", "stream index", streamIndex, "stage", "timeout")

			return fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)
		}

		slog.Debug("ffmpeg.ExtractFile", "stream index", streamIndex, "stage", "error")

		return fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, stderr.String(), err)
	}

	slog.Debug("ffmpeg.ExtractFile", "stream index", streamIndex, "stage", "done")

	return nil
}
