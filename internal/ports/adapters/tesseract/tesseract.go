package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
)

// PSMSingleBlock assumes a single uniform block of text, which matches a
// caption overlaid on a video frame better than full page layout analysis.
const PSMSingleBlock = 6

type Adapter struct {
	bin  string
	lang string
	psm  int
}

func New(binPath, lang string, psm int) *Adapter {
	if binPath == "" {
		binPath = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	if psm <= 0 {
		psm = PSMSingleBlock
	}
	return &Adapter{bin: binPath, lang: lang, psm: psm}
}

func (a *Adapter) args() []string {
	return []string{
		"stdin", "stdout",
		"-l", a.lang,
		"--psm", strconv.Itoa(a.psm),
	}
}

// Recognize pipes img to tesseract as PNG and returns the raw recognized text.
func (a *Adapter) Recognize(ctx context.Context, img image.Image) (string, error) {
	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, a.bin, a.args()...)
	cmd.Stdin = &in
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract failed: %w\n%s", err, errOut.String())
	}
	return out.String(), nil
}
