package ocrtext

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/placecut/internal/ports"
	"github.com/forPelevin/placecut/internal/types"
)

const DefaultMinTextLen = 2

type Config struct {
	// MinTextLen is exclusive: recognized text must be longer than this.
	MinTextLen int
	// Workers bounds concurrent recognitions. Zero means one per frame.
	Workers int
}

type Extractor struct {
	engine  ports.OCREngine
	minLen  int
	workers int
	logger  *slog.Logger
}

type Stats struct {
	Frames     int
	Recognized int
	Failed     int
}

func New(engine ports.OCREngine, cfg Config, logger *slog.Logger) *Extractor {
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{engine: engine, minLen: cfg.MinTextLen, workers: cfg.Workers, logger: logger}
}

// Extract recognizes the text on one frame. Recognizer failures and short
// results both yield ok=false. A panic while preprocessing or recognizing is
// returned as err so callers running Extract on worker goroutines can absorb
// it like any other recognizer failure.
func (e *Extractor) Extract(ctx context.Context, f types.Frame) (text string, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			text, ok, err = "", false, fmt.Errorf("ocr panic on frame %d: %v", f.Index, p)
		}
	}()

	raw, err := e.engine.Recognize(ctx, Preprocess(f.Image))
	if err != nil {
		return "", false, err
	}
	text = strings.TrimSpace(raw)
	if utf8.RuneCountInString(text) <= e.minLen {
		return "", false, nil
	}
	return text, true, nil
}

// ExtractAll runs Extract on every frame and returns the distinct texts in
// sorted order. It waits for every recognition to finish.
func (e *Extractor) ExtractAll(ctx context.Context, frames []types.Frame) ([]string, Stats, error) {
	type result struct {
		text string
		ok   bool
		err  error
	}
	results := make([]result, len(frames))

	var g errgroup.Group
	if e.workers > 0 {
		g.SetLimit(e.workers)
	}
	for i, f := range frames {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			text, ok, err := e.Extract(ctx, f)
			results[i] = result{text: text, ok: ok, err: err}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{Frames: len(frames)}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	seen := make(map[string]struct{}, len(frames))
	for i, r := range results {
		if r.err != nil {
			stats.Failed++
			e.logger.Debug("ocr failed, frame skipped",
				slog.Int("frame_index", frames[i].Index),
				slog.String("error", r.err.Error()),
			)
			continue
		}
		if !r.ok {
			continue
		}
		stats.Recognized++
		seen[r.text] = struct{}{}
	}

	texts := make([]string, 0, len(seen))
	for t := range seen {
		texts = append(texts, t)
	}
	sort.Strings(texts)
	return texts, stats, nil
}
