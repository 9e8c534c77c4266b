package frames

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/forPelevin/placecut/internal/ports"
	"github.com/forPelevin/placecut/internal/types"
)

// ErrDecode marks a stream that could not be opened or failed before any
// frame was kept.
var ErrDecode = errors.New("decode failed")

type Sampler struct {
	decoder ports.MediaDecoder
	logger  *slog.Logger
}

func NewSampler(decoder ports.MediaDecoder, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sampler{decoder: decoder, logger: logger}
}

// Sample keeps every stride-th decoded frame, starting with the first, until
// maxFrames frames are kept or the stream ends.
//
// A decode error after at least one kept frame truncates the result instead of
// failing it.
func (s *Sampler) Sample(ctx context.Context, path string, stride, maxFrames int) ([]types.Frame, error) {
	if stride < 1 {
		stride = 1
	}
	if maxFrames < 1 {
		return nil, nil
	}

	rd, err := s.decoder.OpenStream(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream: %v", ErrDecode, err)
	}
	defer func() {
		if cerr := rd.Close(); cerr != nil {
			s.logger.Debug("close frame reader", slog.String("error", cerr.Error()))
		}
	}()

	out := make([]types.Frame, 0, maxFrames)
	for idx := 0; len(out) < maxFrames; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: frame %d: %v", ErrDecode, idx, err)
			}
			s.logger.Warn("decode error, truncating sample",
				slog.Int("frame_index", idx),
				slog.Int("kept", len(out)),
				slog.String("error", err.Error()),
			)
			break
		}
		if idx%stride != 0 {
			continue
		}
		out = append(out, types.Frame{Index: idx, Image: img})
	}
	return out, nil
}
