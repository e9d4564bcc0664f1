package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotConfigured is returned by the disabled uploader.
var ErrNotConfigured = errors.New("storage not configured")

// Uploader stores scan images and returns the URL they can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, []byte, string) (string, error) {
	return "", ErrNotConfigured
}

// Local writes uploads below BaseDir and serves them from
// PublicBaseURL + "/public/" + key.
type Local struct {
	BaseDir       string
	PublicBaseURL string
}

func (l *Local) Upload(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)[1:]
	if clean == "" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	dst := filepath.Join(l.BaseDir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return strings.TrimRight(l.PublicBaseURL, "/") + "/public/" + filepath.ToSlash(clean), nil
}

// Options selects and configures an uploader.
type Options struct {
	// Driver is one of auto, s3, local, none. auto picks s3 when a bucket is
	// configured, otherwise local.
	Driver          string
	LocalDir        string
	PublicBaseURL   string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// New builds the uploader described by opts.
func New(ctx context.Context, opts Options) (Uploader, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" || driver == "auto" {
		driver = "local"
		if opts.Bucket != "" {
			driver = "s3"
		}
	}
	switch driver {
	case "s3":
		return NewS3(ctx, opts)
	case "local":
		if opts.LocalDir == "" {
			return nil, errors.New("local storage requires an upload directory")
		}
		return &Local{BaseDir: opts.LocalDir, PublicBaseURL: opts.PublicBaseURL}, nil
	case "none", "disabled":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
