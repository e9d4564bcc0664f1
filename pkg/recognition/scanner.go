package recognition

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardscope/pkg/ocr"
	"cardscope/pkg/storage"
)

// Normalizer prepares raw upload bytes for OCR.
type Normalizer interface {
	Normalize(raw []byte) (*ocr.Normalized, error)
}

// TextExtractor runs OCR over a normalized image.
type TextExtractor interface {
	FullText(ctx context.Context, n *ocr.Normalized) (string, error)
	CodeRegionText(ctx context.Context, n *ocr.Normalized) (string, error)
}

// Resolver maps OCR output to a result.
type Resolver interface {
	Resolve(ctx context.Context, code *ocr.DetectedCode, fullText, imagePath string) ScanResult
}

// Scanner runs the whole pipeline for one image.
type Scanner struct {
	normalizer Normalizer
	extractor  TextExtractor
	resolver   Resolver
	uploader   storage.Uploader
	logger     *slog.Logger
}

// NewScanner wires the pipeline. uploader may be nil, in which case results
// never carry an image_path.
func NewScanner(n Normalizer, x TextExtractor, r Resolver, uploader storage.Uploader, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{normalizer: n, extractor: x, resolver: r, uploader: uploader, logger: logger}
}

// Scan identifies the card in raw. It fails only with ocr.ErrDecode for
// undecodable input or ocr.ErrRecognition when the OCR engine breaks; every
// other problem degrades the result instead.
func (s *Scanner) Scan(ctx context.Context, raw []byte) (*ScanResult, error) {
	start := time.Now()
	normalized, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	upload := s.startUpload(ctx, raw)

	fullText, err := s.extractor.FullText(ctx, normalized)
	if err != nil {
		return nil, err
	}
	codeText, err := s.extractor.CodeRegionText(ctx, normalized)
	if err != nil {
		return nil, err
	}
	code := ocr.ParseCode(ocr.NormalizeCodeText(codeText))

	imagePath := <-upload
	res := s.resolver.Resolve(ctx, code, fullText, imagePath)
	s.logger.Info("scan resolved",
		"method", res.ScanMethod,
		"confidence", res.Confidence,
		"boundary_found", normalized.BoundaryFound,
		"code_detected", code != nil,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return &res, nil
}

// startUpload stores raw in the background. The channel always yields
// exactly one value: the URL, or "" when storage is off or failed.
func (s *Scanner) startUpload(ctx context.Context, raw []byte) <-chan string {
	out := make(chan string, 1)
	if s.uploader == nil {
		out <- ""
		return out
	}
	contentType := http.DetectContentType(raw)
	key := "scans/" + uuid.NewString() + extensionFor(contentType)
	go func() {
		url, err := s.uploader.Upload(ctx, key, raw, contentType)
		switch {
		case errors.Is(err, storage.ErrNotConfigured):
			url = ""
		case err != nil:
			s.logger.Warn("scan image upload failed", "key", key, "error", err)
			url = ""
		}
		out <- url
	}()
	return out
}

func extensionFor(contentType string) string {
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
