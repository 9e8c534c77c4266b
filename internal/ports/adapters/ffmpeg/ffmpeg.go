package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/forPelevin/placecut/internal/ports"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// ProbeDimensions returns the coded size of the first video stream.
func (a *Adapter) ProbeDimensions(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=p=0:s=x",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions: %w\n%s", err, string(b))
	}
	return parseDimensions(string(b))
}

func parseDimensions(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	ws, hs, ok := strings.Cut(strings.TrimSuffix(s, "x"), "x")
	if !ok {
		return 0, 0, fmt.Errorf("parse dimensions %q: no video stream", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", ws, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", hs, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("parse dimensions %q: non-positive size", s)
	}
	return w, h, nil
}

// OpenStream starts ffmpeg decoding path to raw RGB frames on a pipe.
func (a *Adapter) OpenStream(ctx context.Context, path string) (ports.FrameReader, error) {
	w, h, err := a.ProbeDimensions(ctx, path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, a.ffmpeg, decodeArgs(path)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return &frameReader{
		cmd:    cmd,
		cancel: cancel,
		stdout: stdout,
		stderr: stderr,
		width:  w,
		height: h,
		buf:    make([]byte, w*h*3),
	}, nil
}

// decodeArgs emits every decoded frame exactly once. rawvideo output would
// otherwise be treated as constant frame rate and variable-rate phone clips
// would get frames duplicated or dropped.
func decodeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-an",
		"-fps_mode", "passthrough",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
}

type frameReader struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdout io.ReadCloser
	stderr *tailBuffer

	width  int
	height int
	buf    []byte

	waited  bool
	waitErr error
}

func (r *frameReader) Next() (image.Image, error) {
	n, err := io.ReadFull(r.stdout, r.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if werr := r.wait(); werr != nil {
			return nil, fmt.Errorf("ffmpeg decode: %w\n%s", werr, r.stderr.String())
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		werr := r.wait()
		return nil, fmt.Errorf("ffmpeg decode: short frame (%d of %d bytes): %v\n%s", n, len(r.buf), werr, r.stderr.String())
	default:
		return nil, fmt.Errorf("ffmpeg read: %w", err)
	}
	return rgbToImage(r.buf, r.width, r.height), nil
}

// Close stops ffmpeg and waits for it to exit, so the input file is no
// longer open once Close returns.
func (r *frameReader) Close() error {
	r.cancel()
	_ = r.wait()
	return nil
}

func (r *frameReader) wait() error {
	if !r.waited {
		r.waited = true
		r.waitErr = r.cmd.Wait()
	}
	return r.waitErr
}

func rgbToImage(buf []byte, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i+2 < len(buf) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = buf[i]
		img.Pix[j+1] = buf[i+1]
		img.Pix[j+2] = buf[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	b   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.b.Write(p)
	if over := t.b.Len() - t.max; over > 0 {
		t.b.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.b.String() }
