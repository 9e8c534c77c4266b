package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forPelevin/placecut/internal/config"
	"github.com/forPelevin/placecut/internal/domain/geocode"
	"github.com/forPelevin/placecut/internal/domain/ocrtext"
	"github.com/forPelevin/placecut/internal/domain/places"
	"github.com/forPelevin/placecut/internal/ports"
	"github.com/forPelevin/placecut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/placecut/internal/ports/adapters/nominatim"
	"github.com/forPelevin/placecut/internal/ports/adapters/tesseract"
	"github.com/forPelevin/placecut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/placecut/internal/types"
	"github.com/forPelevin/placecut/internal/usecase"
)

// Runner executes one video-to-locations run.
type Runner interface {
	Run(ctx context.Context, rawURL string) (types.PipelineResult, error)
}

// Build wires the external tools from cfg into a ready Usecase. Downloads go
// to a placecut subdirectory of the configured output dir, which is created
// here.
func Build(cfg *config.Config, logger *slog.Logger) (*usecase.Usecase, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	workDir, err := prepareWorkDir(cfg.Video.OutputDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("workspace prepared", slog.String("dir", workDir))

	// adapters
	video := ytdlp.New(ytdlp.Options{
		Bin:       cfg.Video.Bin,
		Format:    cfg.Video.Format,
		OutputDir: workDir,
		Retries:   cfg.Video.Retries,
		Quiet:     cfg.Video.Quiet,
	})
	decoder := ffmpeg.New(cfg.Frames.FFmpegPath, cfg.Frames.FFprobePath)
	ocr := tesseract.New(cfg.OCR.Bin, cfg.OCR.Language, cfg.OCR.PSM)
	geo := nominatim.New(nominatim.Options{
		BaseURL:           cfg.Geocode.BaseURL,
		UserAgent:         cfg.Geocode.UserAgent,
		Email:             cfg.Geocode.Email,
		AcceptLanguage:    cfg.Geocode.AcceptLanguage,
		RequestsPerSecond: cfg.Geocode.RequestsPerSecond,
	})

	return usecase.New(usecase.Deps{
		Video:      video,
		Decoder:    decoder,
		OCR:        ocr,
		Geocoder:   geo,
		Candidates: places.NewCapitalizedPhrases(),
		Logger:     logger,
	}, UsecaseConfig(cfg)), nil
}

// UsecaseConfig maps the file/env configuration onto orchestration settings.
func UsecaseConfig(cfg *config.Config) usecase.Config {
	return usecase.Config{
		AllowedHosts: cfg.Video.AllowedHosts,
		Stride:       cfg.Frames.Stride,
		MaxFrames:    cfg.Frames.MaxFrames,
		OCR: ocrtext.Config{
			MinTextLen: cfg.OCR.MinTextLen,
			Workers:    cfg.OCR.Workers,
		},
		Geocode: geocode.Config{
			Concurrency:    cfg.Geocode.Concurrency,
			RequestTimeout: cfg.GeocodeRequestTimeout(),
			MinQueryLen:    cfg.Geocode.MinQueryLen,
		},
		RunTimeout: cfg.RunTimeout(),
	}
}

func prepareWorkDir(base string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "placecut")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare download dir: %w", err)
	}
	return dir, nil
}

// ensure adapters implement ports
var _ ports.VideoProvider = (*ytdlp.Adapter)(nil)
var _ ports.MediaDecoder = (*ffmpeg.Adapter)(nil)
var _ ports.OCREngine = (*tesseract.Adapter)(nil)
var _ ports.Geocoder = (*nominatim.Adapter)(nil)
var _ ports.CandidateStrategy = places.CapitalizedPhrases{}
var _ Runner = (*usecase.Usecase)(nil)
