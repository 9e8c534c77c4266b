package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/forPelevin/placecut/internal/domain/frames"
	"github.com/forPelevin/placecut/internal/domain/geocode"
	"github.com/forPelevin/placecut/internal/domain/ocrtext"
	"github.com/forPelevin/placecut/internal/domain/places"
	"github.com/forPelevin/placecut/internal/metrics"
	"github.com/forPelevin/placecut/internal/ports"
	"github.com/forPelevin/placecut/internal/types"
)

const tracerName = "placecut/usecase"

type Deps struct {
	Video      ports.VideoProvider
	Decoder    ports.MediaDecoder
	OCR        ports.OCREngine
	Geocoder   ports.Geocoder
	Candidates ports.CandidateStrategy
	Logger     *slog.Logger
}

type Config struct {
	AllowedHosts []string
	Stride       int
	MaxFrames    int
	OCR          ocrtext.Config
	Geocode      geocode.Config
	// RunTimeout bounds a whole run. Zero disables it.
	RunTimeout time.Duration
}

type Usecase struct {
	d        Deps
	cfg      Config
	sampler  *frames.Sampler
	extract  *ocrtext.Extractor
	resolver *geocode.Resolver
	logger   *slog.Logger
}

func New(d Deps, cfg Config) *Usecase {
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if d.Candidates == nil {
		d.Candidates = places.NewCapitalizedPhrases()
	}
	return &Usecase{
		d:        d,
		cfg:      cfg,
		sampler:  frames.NewSampler(d.Decoder, logger),
		extract:  ocrtext.New(d.OCR, cfg.OCR, logger),
		resolver: geocode.NewResolver(d.Geocoder, cfg.Geocode, logger),
		logger:   logger,
	}
}

// StageError is the failure of a fatal stage.
type StageError struct {
	Kind types.ErrorKind
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// KindOf returns the kind of a StageError in err's chain, or InternalError.
func KindOf(err error) types.ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return types.ErrInternal
}

// Run validates rawURL, then fetches info, downloads, samples, recognizes
// and resolves. The downloaded file is removed on every return path.
func (u *Usecase) Run(ctx context.Context, rawURL string) (res types.PipelineResult, err error) {
	runID := uuid.NewString()
	log := u.logger.With(slog.String("run_id", runID))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "Usecase.Run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("video.url", rawURL),
	)
	defer span.End()

	metrics.ActiveRuns.Inc()
	started := time.Now()
	defer func() {
		metrics.ActiveRuns.Dec()
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
			span.SetStatus(codes.Error, err.Error())
			log.Error("run failed", slog.String("kind", outcome), slog.String("error", err.Error()))
		}
		metrics.RunsTotal.WithLabelValues(outcome).Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	}()
	defer func() {
		if p := recover(); p != nil {
			res = types.PipelineResult{}
			err = &StageError{Kind: types.ErrInternal, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	if verr := ValidateVideoURL(rawURL, u.cfg.AllowedHosts); verr != nil {
		return types.PipelineResult{}, &StageError{Kind: types.ErrValidation, Err: verr}
	}

	if u.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.RunTimeout)
		defer cancel()
	}

	log.Info("run started", slog.String("url", rawURL))

	var info types.VideoInfo
	if err := u.stage(ctx, "fetch_info", func(ctx context.Context) error {
		var ferr error
		info, ferr = u.d.Video.FetchInfo(ctx, rawURL)
		return ferr
	}); err != nil {
		return types.PipelineResult{}, u.fatal(ctx, types.ErrInfoFetch, err)
	}
	log.Info("video info fetched",
		slog.String("title", info.Title),
		slog.String("author", info.Author),
		slog.Int("duration_secs", info.DurationSeconds),
	)

	var path string
	if err := u.stage(ctx, "download", func(ctx context.Context) error {
		var derr error
		path, derr = u.d.Video.Download(ctx, rawURL)
		return derr
	}); err != nil {
		return types.PipelineResult{}, u.fatal(ctx, types.ErrDownload, err)
	}
	media := &mediaFile{path: path, logger: log}
	defer media.release()
	log.Debug("video downloaded", slog.String("path", path))

	var sampled []types.Frame
	if err := u.stage(ctx, "sample", func(ctx context.Context) error {
		var serr error
		sampled, serr = u.sampler.Sample(ctx, path, u.cfg.Stride, u.cfg.MaxFrames)
		return serr
	}); err != nil {
		return types.PipelineResult{}, u.fatal(ctx, types.ErrDecode, err)
	}
	metrics.FramesSampledTotal.Add(float64(len(sampled)))
	log.Info("frames sampled", slog.Int("count", len(sampled)))

	var texts []string
	if err := u.stage(ctx, "ocr", func(ctx context.Context) error {
		var (
			stats ocrtext.Stats
			oerr  error
		)
		texts, stats, oerr = u.extract.ExtractAll(ctx, sampled)
		metrics.OCRFailuresTotal.Add(float64(stats.Failed))
		log.Info("text recognized",
			slog.Int("frames", stats.Frames),
			slog.Int("recognized", stats.Recognized),
			slog.Int("failed", stats.Failed),
			slog.Int("distinct", len(texts)),
		)
		return oerr
	}); err != nil {
		return types.PipelineResult{}, u.fatal(ctx, types.ErrInternal, err)
	}
	sampled = nil

	cands := u.d.Candidates.Extract(texts)
	log.Info("candidates extracted", slog.Int("count", len(cands)))

	var locs []types.GeocodedLocation
	if err := u.stage(ctx, "resolve", func(ctx context.Context) error {
		var (
			stats geocode.Stats
			rerr  error
		)
		locs, stats, rerr = u.resolver.Resolve(ctx, cands)
		metrics.GeocodeLookupsTotal.WithLabelValues("resolved").Add(float64(stats.Resolved))
		metrics.GeocodeLookupsTotal.WithLabelValues("empty").Add(float64(stats.Empty))
		metrics.GeocodeLookupsTotal.WithLabelValues("failed").Add(float64(stats.Failed))
		metrics.GeocodeLookupsTotal.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
		return rerr
	}); err != nil {
		return types.PipelineResult{}, u.fatal(ctx, types.ErrInternal, err)
	}

	log.Info("run completed", slog.Int("locations", len(locs)))
	return types.PipelineResult{VideoInfo: info, Locations: locs}, nil
}

func (u *Usecase) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fatal classifies a stage failure. A run whose context has ended reports
// the cancellation instead of whatever the stage made of it.
func (u *Usecase) fatal(ctx context.Context, kind types.ErrorKind, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &StageError{Kind: types.ErrTimeout, Err: fmt.Errorf("run timed out: %w", context.DeadlineExceeded)}
	case errors.Is(ctx.Err(), context.Canceled):
		return &StageError{Kind: types.ErrInternal, Err: fmt.Errorf("run cancelled: %w", context.Canceled)}
	}
	return &StageError{Kind: kind, Err: err}
}

// mediaFile is the downloaded video. It is removed at most once.
type mediaFile struct {
	path   string
	logger *slog.Logger
	once   sync.Once
}

func (m *mediaFile) release() {
	m.once.Do(func() {
		if m.path == "" {
			return
		}
		if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("remove downloaded video", slog.String("path", m.path), slog.String("error", err.Error()))
			return
		}
		m.logger.Debug("downloaded video removed", slog.String("path", m.path))
	})
}
