package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/forPelevin/placecut/internal/types"
)

const (
	DefaultFormat = "bestvideo[height<=720]/best[height<=720]/best"
	unknown       = "Unknown"
)

// Options lists every yt-dlp setting the adapter passes through.
type Options struct {
	Bin string
	// Format is a yt-dlp format selector.
	Format string
	// OutputDir receives downloaded files, one uniquely named file per call.
	OutputDir string
	Retries   int
	Quiet     bool
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter {
	if opts.Bin == "" {
		opts.Bin = "yt-dlp"
	}
	if opts.Format == "" {
		opts.Format = DefaultFormat
	}
	if opts.OutputDir == "" {
		opts.OutputDir = os.TempDir()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Adapter{opts: opts}
}

func (a *Adapter) commonArgs() []string {
	args := []string{"--no-playlist", "--no-progress"}
	if a.opts.Quiet {
		args = append(args, "--quiet", "--no-warnings")
	}
	return args
}

func (a *Adapter) infoArgs(url string) []string {
	args := append(a.commonArgs(), "--dump-single-json", "--skip-download")
	return append(args, "--", url)
}

func (a *Adapter) downloadArgs(url, outTemplate string) []string {
	args := append(a.commonArgs(),
		"-f", a.opts.Format,
		"--retries", strconv.Itoa(a.opts.Retries),
		"--merge-output-format", "mp4",
		"-o", outTemplate,
		"--no-simulate",
		"--print", "after_move:filepath",
	)
	return append(args, "--", url)
}

type infoJSON struct {
	Title    string  `json:"title"`
	Uploader string  `json:"uploader"`
	Channel  string  `json:"channel"`
	Duration float64 `json:"duration"`
}

func (a *Adapter) FetchInfo(ctx context.Context, url string) (types.VideoInfo, error) {
	out, err := a.run(ctx, a.infoArgs(url))
	if err != nil {
		return types.VideoInfo{}, err
	}
	var raw infoJSON
	if err := json.Unmarshal(out, &raw); err != nil {
		return types.VideoInfo{}, fmt.Errorf("parse yt-dlp info: %w", err)
	}
	return toVideoInfo(raw), nil
}

func toVideoInfo(raw infoJSON) types.VideoInfo {
	info := types.VideoInfo{
		Title:  strings.TrimSpace(raw.Title),
		Author: strings.TrimSpace(raw.Uploader),
	}
	if info.Title == "" {
		info.Title = unknown
	}
	if info.Author == "" {
		info.Author = strings.TrimSpace(raw.Channel)
	}
	if info.Author == "" {
		info.Author = unknown
	}
	if raw.Duration > 0 {
		info.DurationSeconds = int(math.Round(raw.Duration))
	}
	return info
}

// Download fetches url into OutputDir and returns the final file path.
// Partial files are removed when the download fails.
func (a *Adapter) Download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(a.opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	id := uuid.NewString()
	tmpl := filepath.Join(a.opts.OutputDir, id+".%(ext)s")

	out, err := a.run(ctx, a.downloadArgs(url, tmpl))
	if err != nil {
		a.removeArtifacts(id)
		return "", err
	}

	path := lastLine(out)
	if path == "" {
		matches, _ := filepath.Glob(filepath.Join(a.opts.OutputDir, id+".*"))
		if len(matches) == 1 {
			path = matches[0]
		}
	}
	if path == "" {
		a.removeArtifacts(id)
		return "", fmt.Errorf("yt-dlp reported no output file for %s", url)
	}
	if _, err := os.Stat(path); err != nil {
		a.removeArtifacts(id)
		return "", fmt.Errorf("stat downloaded file: %w", err)
	}
	return path, nil
}

func (a *Adapter) removeArtifacts(id string) {
	matches, _ := filepath.Glob(filepath.Join(a.opts.OutputDir, id+"*"))
	for _, m := range matches {
		_ = os.Remove(m)
	}
}

func (a *Adapter) run(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, a.opts.Bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
