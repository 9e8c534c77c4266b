package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/placecut/internal/config"
)

func TestBuildPreparesWorkDir(t *testing.T) {
	cfg := config.Default()
	cfg.Video.OutputDir = t.TempDir()

	uc, err := Build(&cfg, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if uc == nil {
		t.Fatal("expected usecase")
	}
	info, err := os.Stat(filepath.Join(cfg.Video.OutputDir, "placecut"))
	if err != nil || !info.IsDir() {
		t.Fatalf("expected download dir to exist: %v", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Video.OutputDir = t.TempDir()
	cfg.Geocode.BaseURL = "https://geocoder.example.com"

	_, err := Build(&cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "geocode base_url") {
		t.Fatalf("expected base url error, got %v", err)
	}
}

func TestUsecaseConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Frames.Stride = 12
	cfg.Frames.MaxFrames = 40
	cfg.OCR.Workers = 3
	cfg.Geocode.Concurrency = 4
	cfg.Geocode.RequestTimeoutMs = 2500
	cfg.Server.RunTimeoutSeconds = 90

	got := UsecaseConfig(&cfg)
	if got.Stride != 12 || got.MaxFrames != 40 {
		t.Fatalf("unexpected sampling config: %+v", got)
	}
	if got.OCR.Workers != 3 || got.OCR.MinTextLen != 2 {
		t.Fatalf("unexpected ocr config: %+v", got.OCR)
	}
	if got.Geocode.Concurrency != 4 || got.Geocode.RequestTimeout != 2500*time.Millisecond || got.Geocode.MinQueryLen != 3 {
		t.Fatalf("unexpected geocode config: %+v", got.Geocode)
	}
	if got.RunTimeout != 90*time.Second {
		t.Fatalf("run timeout = %s", got.RunTimeout)
	}
	if len(got.AllowedHosts) != len(cfg.Video.AllowedHosts) {
		t.Fatalf("allowed hosts not carried: %v", got.AllowedHosts)
	}
}
