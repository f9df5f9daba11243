// ABOUTME: Stretch entry points
// ABOUTME: Stretches a source into a sink, or an input file into an output file
package stretch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio/decode"
	"github.com/Resonate-Protocol/stretchaudio/pkg/audio/encode"
)

// Stretch renders src into dst so that dst ends up target long. The sink
// must carry the source's sample layout. Neither src nor dst is closed.
func Stretch(ctx context.Context, src decode.Source, dst encode.Encoder, target time.Duration, opts Options) (Result, error) {
	opts = opts.withDefaults()

	format := src.Format()
	if !format.SameLayout(dst.Format()) {
		return Result{}, &Error{Stage: StageCreate, Err: fmt.Errorf("%w: source %s, sink %s",
			ErrFormatMismatch, format, dst.Format())}
	}

	plan, err := NewPlan(src.Length(), format.Frames(target), opts.MaxFrames)
	if err != nil {
		return Result{}, &Error{Stage: StagePlan, Err: err}
	}

	renderer := NewOfflineRenderer(src, opts.MaxFrames)
	return NewSession(plan, renderer, dst, opts).Run(ctx)
}

// File stretches the audio file at inputPath by extra and writes it to
// outputPath, whose extension selects the container. The output is written
// to a temporary file beside outputPath and only renamed into place once
// complete; on failure nothing is left under outputPath.
func File(ctx context.Context, inputPath, outputPath string, extra time.Duration, opts Options) (res Result, err error) {
	opts = opts.withDefaults()
	log := opts.Logger.With().Str("run", uuid.NewString()).Logger()
	opts.Logger = &log

	if samePath(inputPath, outputPath) {
		return Result{}, &Error{Stage: StageCreate, Path: outputPath, Err: errors.New("output would overwrite input")}
	}

	src, err := decode.Open(inputPath)
	if err != nil {
		return Result{}, &Error{Stage: StageOpen, Path: inputPath, Err: err}
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = multierr.Append(err, &Error{Stage: StageFinalize, Path: inputPath, Err: cerr})
		}
	}()

	format := src.Format()
	target := format.Duration(src.Length()) + extra
	log.Info().
		Str("input", inputPath).
		Str("format", format.String()).
		Int64("frames", src.Length()).
		Dur("target", target).
		Msg("stretching")

	tmpPath := partialPath(outputPath)
	dst, err := encode.Create(tmpPath, format)
	if err != nil {
		return Result{}, &Error{Stage: StageCreate, Path: outputPath, Err: err}
	}

	res, err = Stretch(ctx, src, dst, target, opts)
	if err == nil && dst.Frames() != res.Plan.OutputFrames {
		err = &Error{Stage: StageFinalize, Path: outputPath, Err: fmt.Errorf("wrote %d of %d frames",
			dst.Frames(), res.Plan.OutputFrames)}
	}
	if err != nil {
		attachPath(err, inputPath, outputPath)
		return res, multierr.Combine(err, dst.Close(), os.Remove(tmpPath))
	}

	if err := dst.Close(); err != nil {
		return res, multierr.Append(&Error{Stage: StageFinalize, Path: outputPath, Err: err}, os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		return res, multierr.Append(&Error{Stage: StageFinalize, Path: outputPath, Err: err}, os.Remove(tmpPath))
	}

	log.Info().Str("output", outputPath).Int64("frames", res.WrittenFrames).Msg("stretched")
	return res, nil
}

// attachPath names the file a path-less stage error refers to
func attachPath(err error, inputPath, outputPath string) {
	var se *Error
	if !errors.As(err, &se) || se.Path != "" {
		return
	}
	switch se.Stage {
	case StageEncode, StageCreate, StageFinalize:
		se.Path = outputPath
	default:
		se.Path = inputPath
	}
}

// partialPath keeps the extension so the encoder is chosen as for path
func partialPath(path string) string {
	dir, base := filepath.Split(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, "."+strings.TrimSuffix(base, ext)+".partial"+ext)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
