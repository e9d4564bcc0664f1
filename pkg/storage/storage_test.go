package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestLocalUploadWritesFile(t *testing.T) {
	dir := t.TempDir()
	l := &Local{BaseDir: dir, PublicBaseURL: "http://localhost:8080/"}
	url, err := l.Upload(context.Background(), "scans/abc.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:8080/public/scans/abc.jpg" {
		t.Fatalf("unexpected url %s", url)
	}
	got, err := os.ReadFile(filepath.Join(dir, "scans", "abc.jpg"))
	if err != nil || string(got) != "jpeg" {
		t.Fatalf("unexpected file content %q err=%v", got, err)
	}
}

func TestLocalUploadStaysInBaseDir(t *testing.T) {
	dir := t.TempDir()
	l := &Local{BaseDir: filepath.Join(dir, "up")}
	if _, err := l.Upload(context.Background(), "../../escape.jpg", []byte("x"), ""); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "up", "escape.jpg")); err != nil {
		t.Fatalf("expected file inside base dir: %v", err)
	}
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3UploadURL(t *testing.T) {
	fp := &fakePutter{}
	s := &S3{Client: fp, Bucket: "cards", Region: "eu-west-1"}
	url, err := s.Upload(context.Background(), "scans/x.png", []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://cards.s3.eu-west-1.amazonaws.com/scans/x.png" {
		t.Fatalf("unexpected url %s", url)
	}
	if *fp.in.Key != "scans/x.png" || *fp.in.ContentType != "image/png" || string(fp.body) != "png" {
		t.Fatalf("unexpected put input %+v", fp.in)
	}
}

func TestS3UploadError(t *testing.T) {
	s := &S3{Client: &fakePutter{err: errors.New("denied")}, Bucket: "cards", Region: "us-east-1"}
	if _, err := s.Upload(context.Background(), "k", nil, ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewSelectsDriver(t *testing.T) {
	u, err := New(context.Background(), Options{LocalDir: t.TempDir()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := u.(*Local); !ok {
		t.Fatalf("expected local driver, got %T", u)
	}
	u, err = New(context.Background(), Options{Driver: "none"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := u.Upload(context.Background(), "k", nil, ""); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := New(context.Background(), Options{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
