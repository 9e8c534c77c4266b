package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"

	"github.com/forPelevin/placecut/internal/ports/adapters/nominatim"
	"github.com/forPelevin/placecut/internal/usecase"
)

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig returns a commented configuration file with every default.
func SampleConfig() string { return sampleConfig }

// Server contains the HTTP surface settings.
type Server struct {
	Bind              string `toml:"bind"                env:"PLACECUT_BIND"`
	RunTimeoutSeconds int    `toml:"run_timeout_seconds" env:"PLACECUT_RUN_TIMEOUT_SECONDS"`
	ReadTimeoutSecs   int    `toml:"read_timeout_seconds"  env:"PLACECUT_READ_TIMEOUT_SECONDS"`
	WriteTimeoutSecs  int    `toml:"write_timeout_seconds" env:"PLACECUT_WRITE_TIMEOUT_SECONDS"`
}

// Video contains yt-dlp settings and the accepted video hosts.
type Video struct {
	Bin          string   `toml:"bin"           env:"PLACECUT_YTDLP_BIN"`
	Format       string   `toml:"format"        env:"PLACECUT_YTDLP_FORMAT"`
	OutputDir    string   `toml:"output_dir"    env:"PLACECUT_VIDEO_DIR"`
	Retries      int      `toml:"retries"       env:"PLACECUT_YTDLP_RETRIES"`
	Quiet        bool     `toml:"quiet"         env:"PLACECUT_YTDLP_QUIET"`
	AllowedHosts []string `toml:"allowed_hosts" env:"PLACECUT_VIDEO_ALLOWED_HOSTS" envSeparator:","`
}

// Frames contains decoding and sampling settings.
type Frames struct {
	FFmpegPath  string `toml:"ffmpeg_path"  env:"PLACECUT_FFMPEG_PATH"`
	FFprobePath string `toml:"ffprobe_path" env:"PLACECUT_FFPROBE_PATH"`
	Stride      int    `toml:"stride"       env:"PLACECUT_FRAME_STRIDE"`
	MaxFrames   int    `toml:"max_frames"   env:"PLACECUT_MAX_FRAMES"`
}

// OCR contains tesseract settings.
type OCR struct {
	Bin        string `toml:"bin"          env:"PLACECUT_TESSERACT_BIN"`
	Language   string `toml:"language"     env:"PLACECUT_OCR_LANG"`
	PSM        int    `toml:"psm"          env:"PLACECUT_OCR_PSM"`
	MinTextLen int    `toml:"min_text_len" env:"PLACECUT_OCR_MIN_TEXT_LEN"`
	// Workers bounds concurrent recognitions; 0 runs one per sampled frame.
	Workers int `toml:"workers"      env:"PLACECUT_OCR_WORKERS"`
}

// Geocode contains the Nominatim client settings.
type Geocode struct {
	BaseURL           string   `toml:"base_url"            env:"PLACECUT_GEOCODE_BASE_URL"`
	AllowedHosts      []string `toml:"allowed_hosts"       env:"PLACECUT_GEOCODE_ALLOWED_HOSTS" envSeparator:","`
	UserAgent         string   `toml:"user_agent"          env:"PLACECUT_GEOCODE_USER_AGENT"`
	Email             string   `toml:"email"               env:"PLACECUT_GEOCODE_EMAIL"`
	AcceptLanguage    string   `toml:"accept_language"     env:"PLACECUT_GEOCODE_LANGUAGE"`
	Concurrency       int      `toml:"concurrency"         env:"PLACECUT_GEOCODE_CONCURRENCY"`
	RequestTimeoutMs  int      `toml:"request_timeout_ms"  env:"PLACECUT_GEOCODE_TIMEOUT_MS"`
	RequestsPerSecond float64  `toml:"requests_per_second" env:"PLACECUT_GEOCODE_RPS"`
	MinQueryLen       int      `toml:"min_query_len"       env:"PLACECUT_GEOCODE_MIN_QUERY_LEN"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"  env:"PLACECUT_LOG_LEVEL"`
	Format string `toml:"format" env:"PLACECUT_LOG_FORMAT"`
}

type Metrics struct {
	Enabled bool `toml:"enabled" env:"PLACECUT_METRICS_ENABLED"`
}

type Tracing struct {
	// OTLPEndpoint is an OTLP/HTTP traces URL. Empty disables tracing.
	OTLPEndpoint string  `toml:"otlp_endpoint" env:"PLACECUT_OTLP_ENDPOINT"`
	Environment  string  `toml:"environment"   env:"PLACECUT_ENVIRONMENT"`
	SampleRatio  float64 `toml:"sample_ratio"  env:"PLACECUT_TRACE_SAMPLE_RATIO"`
}

// Config encapsulates all configuration values for placecut.
//
// Values are layered: code defaults, then the TOML file, then PLACECUT_*
// environment variables.
type Config struct {
	Server  Server  `toml:"server"`
	Video   Video   `toml:"video"`
	Frames  Frames  `toml:"frames"`
	OCR     OCR     `toml:"ocr"`
	Geocode Geocode `toml:"geocode"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
	Tracing Tracing `toml:"tracing"`
}

func Default() Config {
	return Config{
		Server: Server{
			Bind:              "127.0.0.1:5000",
			RunTimeoutSeconds: 600,
			ReadTimeoutSecs:   15,
			WriteTimeoutSecs:  660,
		},
		Video: Video{
			Bin:          "yt-dlp",
			Format:       "bestvideo[height<=720]/best[height<=720]/best",
			OutputDir:    os.TempDir(),
			Retries:      3,
			Quiet:        true,
			AllowedHosts: append([]string(nil), usecase.DefaultVideoHosts...),
		},
		Frames: Frames{
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
			Stride:      30,
			MaxFrames:   100,
		},
		OCR: OCR{
			Bin:        "tesseract",
			Language:   "eng",
			PSM:        6,
			MinTextLen: 2,
			Workers:    0,
		},
		Geocode: Geocode{
			BaseURL:           nominatim.DefaultBaseURL,
			AllowedHosts:      []string{nominatim.DefaultBaseHost},
			UserAgent:         nominatim.DefaultUserAgent,
			Concurrency:       2,
			RequestTimeoutMs:  10000,
			RequestsPerSecond: 1,
			MinQueryLen:       3,
		},
		Logging: Logging{Level: "info", Format: "console"},
		Metrics: Metrics{Enabled: true},
		Tracing: Tracing{SampleRatio: 1},
	}
}

// Load builds the configuration from defaults, the TOML file at path (if it
// exists) and the environment, then validates it. found reports whether the
// file was read.
func Load(path string) (cfg *Config, found bool, err error) {
	c := Default()

	if strings.TrimSpace(path) != "" {
		b, rerr := os.ReadFile(path)
		switch {
		case rerr == nil:
			if err := toml.Unmarshal(b, &c); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
			found = true
		case errors.Is(rerr, fs.ErrNotExist):
		default:
			return nil, false, fmt.Errorf("read config: %w", rerr)
		}
	}

	if err := env.Parse(&c); err != nil {
		return nil, found, fmt.Errorf("parse environment: %w", err)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, found, err
	}
	return &c, found, nil
}

func (c *Config) normalize() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Geocode.BaseURL = strings.TrimSpace(c.Geocode.BaseURL)
	c.Video.AllowedHosts = trimEmpty(c.Video.AllowedHosts)
	c.Geocode.AllowedHosts = trimEmpty(c.Geocode.AllowedHosts)
}

func trimEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Frames.Stride < 1 {
		errs = append(errs, errors.New("frames.stride must be >= 1"))
	}
	if c.Frames.MaxFrames < 1 {
		errs = append(errs, errors.New("frames.max_frames must be >= 1"))
	}
	if c.OCR.Workers < 0 {
		errs = append(errs, errors.New("ocr.workers must be >= 0"))
	}
	if c.OCR.MinTextLen < 0 {
		errs = append(errs, errors.New("ocr.min_text_len must be >= 0"))
	}
	if c.Geocode.Concurrency < 1 || c.Geocode.Concurrency > 5 {
		errs = append(errs, fmt.Errorf("geocode.concurrency must be within 1..5, got %d", c.Geocode.Concurrency))
	}
	if c.Geocode.RequestTimeoutMs <= 0 {
		errs = append(errs, errors.New("geocode.request_timeout_ms must be > 0"))
	}
	if c.Geocode.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("geocode.requests_per_second must be > 0"))
	}
	if c.Server.RunTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("server.run_timeout_seconds must be > 0"))
	}
	if c.Server.ReadTimeoutSecs <= 0 || c.Server.WriteTimeoutSecs <= 0 {
		errs = append(errs, errors.New("server read/write timeouts must be > 0"))
	}
	if len(c.Video.AllowedHosts) == 0 {
		errs = append(errs, errors.New("video.allowed_hosts must not be empty"))
	}
	if c.Tracing.SampleRatio <= 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be within (0, 1], got %v", c.Tracing.SampleRatio))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format))
	}
	if err := nominatim.ValidateBaseURL(c.Geocode.BaseURL, c.Geocode.AllowedHosts); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Server.RunTimeoutSeconds) * time.Second
}

func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSecs) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSecs) * time.Second
}

func (c *Config) GeocodeRequestTimeout() time.Duration {
	return time.Duration(c.Geocode.RequestTimeoutMs) * time.Millisecond
}
