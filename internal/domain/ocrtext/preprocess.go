package ocrtext

import (
	"image"
	"image/draw"
)

// Preprocess converts img to luminance and applies a 3x3 median filter.
func Preprocess(img image.Image) *image.Gray {
	return medianFilter(toGray(img))
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}

func medianFilter(src *image.Gray) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(b)
	if w < 3 || h < 3 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	var win [9]uint8
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clamp(y+dy, 0, h-1)
				row := src.Pix[yy*src.Stride:]
				for dx := -1; dx <= 1; dx++ {
					win[n] = row[clamp(x+dx, 0, w-1)]
					n++
				}
			}
			dst.Pix[y*dst.Stride+x] = median9(&win)
		}
	}
	return dst
}

func median9(w *[9]uint8) uint8 {
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j] < w[j-1]; j-- {
			w[j], w[j-1] = w[j-1], w[j]
		}
	}
	return w[4]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
