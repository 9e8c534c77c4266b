package ffmpeg

import (
	"strings"
	"testing"
)

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{in: "1080x1920\n", w: 1080, h: 1920},
		{in: "640x360x\n", w: 640, h: 360},
		{in: "320x240\n320x240\n", w: 320, h: 240},
		{in: "", wantErr: true},
		{in: "Nx240", wantErr: true},
		{in: "0x240", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := parseDimensions(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w != tt.w || h != tt.h {
				t.Fatalf("parseDimensions(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
			}
		})
	}
}

func TestRGBToImage(t *testing.T) {
	buf := []byte{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}
	img := rgbToImage(buf, 2, 2)
	r, g, b, a := img.At(1, 1).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 || a>>8 != 255 {
		t.Fatalf("unexpected pixel: %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 255 {
		t.Fatalf("expected red at origin")
	}
}

func TestTailBuffer_KeepsTail(t *testing.T) {
	tb := &tailBuffer{max: 8}
	_, _ = tb.Write([]byte("0123456789"))
	_, _ = tb.Write([]byte("ab"))
	if got := tb.String(); got != "456789ab" {
		t.Fatalf("expected tail %q, got %q", "456789ab", got)
	}
	if !strings.HasSuffix(tb.String(), "ab") {
		t.Fatalf("expected latest bytes to be kept")
	}
}

func TestDecodeArgsPassThroughFrames(t *testing.T) {
	args := decodeArgs("/tmp/in.mp4")
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "-fps_mode passthrough") {
		t.Fatalf("expected frames to pass through unchanged: %s", joined)
	}
	input := strings.Index(joined, "-i /tmp/in.mp4")
	mode := strings.Index(joined, "-fps_mode")
	if input < 0 || mode < input {
		t.Fatalf("fps_mode must be an output option after the input: %s", joined)
	}
	if args[len(args)-1] != "pipe:1" {
		t.Fatalf("expected output on stdout, got %q", args[len(args)-1])
	}
}
