package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// RecognizeOptions tunes a single recognition call. Zero values keep the
// engine defaults.
type RecognizeOptions struct {
	PageSegMode int
	Whitelist   string
}

// Recognizer turns an image into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error)
}

// TesseractRecognizer runs Tesseract through gosseract. A fresh client is
// created per call so the recognizer is safe for concurrent scans.
type TesseractRecognizer struct {
	Language string
}

func (t TesseractRecognizer) Recognize(ctx context.Context, img image.Image, opts RecognizeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("set language %q: %w", lang, err)
	}
	if opts.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
			return "", fmt.Errorf("set psm %d: %w", opts.PageSegMode, err)
		}
	}
	if opts.Whitelist != "" {
		if err := client.SetWhitelist(opts.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	return client.Text()
}

const codeWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-/ "

// Extractor reads the full card text and the set/number strip at the bottom.
type Extractor struct {
	Recognizer Recognizer
	// CodeRegion is the fraction of the image height, measured from the
	// bottom edge, that holds the set code.
	CodeRegion      float64
	CodePageSegMode int
	CodeWhitelist   string
	Logger          *slog.Logger
}

func NewExtractor(r Recognizer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		Recognizer:      r,
		CodeRegion:      0.2,
		CodePageSegMode: 6,
		CodeWhitelist:   codeWhitelist,
		Logger:          logger,
	}
}

// FullText recognizes the whole binarized card.
func (e *Extractor) FullText(ctx context.Context, n *Normalized) (string, error) {
	text, err := e.Recognizer.Recognize(ctx, n.Binarized, RecognizeOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: full text: %w", ErrRecognition, err)
	}
	e.Logger.Debug("ocr full text", "snippet", snippet(strings.TrimSpace(text), 120))
	return text, nil
}

// CodeRegionText recognizes the bottom strip of the card where the set code
// is printed.
func (e *Extractor) CodeRegionText(ctx context.Context, n *Normalized) (string, error) {
	region := e.codeRegion(n.Image)
	text, err := e.Recognizer.Recognize(ctx, Binarize(region), RecognizeOptions{
		PageSegMode: e.CodePageSegMode,
		Whitelist:   e.CodeWhitelist,
	})
	if err != nil {
		return "", fmt.Errorf("%w: code region: %w", ErrRecognition, err)
	}
	e.Logger.Debug("ocr code region", "text", strings.TrimSpace(text))
	return text, nil
}

func (e *Extractor) codeRegion(img image.Image) image.Image {
	b := img.Bounds()
	h := int(math.Round(float64(b.Dy()) * e.CodeRegion))
	if h < 1 {
		h = 1
	}
	if h > b.Dy() {
		h = b.Dy()
	}
	return imaging.Crop(img, image.Rect(b.Min.X, b.Max.Y-h, b.Max.X, b.Max.Y))
}
