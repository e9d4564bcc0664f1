package ocr

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Binarize converts img to grayscale and applies a global Otsu threshold.
// Text ends up black on white, which is what Tesseract expects.
func Binarize(img image.Image) *image.Gray {
	gray := grayscale(img)
	return binarize(gray, otsuThreshold(gray))
}

// grayscale flattens img into an 8-bit luminance image anchored at (0,0).
func grayscale(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	b := src.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// binarize performs a global threshold: pixels above threshold become white.
func binarize(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var v uint8
			if img.GrayAt(x, y).Y > threshold {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return out
}

// otsuThreshold picks the threshold that maximises between-class variance of
// the histogram.
func otsuThreshold(img *image.Gray) uint8 {
	var hist [256]int
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i * n)
	}
	var (
		sumB     float64
		weightB  int
		best     float64
		selected int
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		meanB := sumB / float64(weightB)
		meanF := (sum - sumB) / float64(weightF)
		between := float64(weightB) * float64(weightF) * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best = between
			selected = t
		}
	}
	return uint8(selected)
}
