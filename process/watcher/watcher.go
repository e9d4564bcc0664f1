// Package watcher ingests a directory of card photos: every image is scanned,
// recorded in the owner's scan history and, when the result is confident,
// added to the owner's collection. Processed files are moved aside so each
// photo is handled once.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"gorm.io/gorm"

	"cardscope/models"
	"cardscope/pkg/ocr"
	"cardscope/pkg/recognition"
)

// ErrLocked is returned when another watcher already owns the directory.
var ErrLocked = errors.New("directory is being processed by another instance")

const lockName = ".cardscope.lock"

// Scanner is the recognition pipeline.
type Scanner interface {
	Scan(ctx context.Context, raw []byte) (*recognition.ScanResult, error)
}

type Options struct {
	Dir string
	// ProcessedDir receives handled files; defaults to Dir/processed.
	ProcessedDir string
	OwnerID      uint
	Workers      int
	// Debounce is how long a new file must stay quiet before it is picked up.
	Debounce time.Duration
	// MaxProcessedBytes downsizes archived images above this size; 0 keeps them as is.
	MaxProcessedBytes int64
}

// Summary counts the outcome of a batch.
type Summary struct {
	Scanned     int
	CardsAdded  int
	NeedsReview int
	Failed      int
	Skipped     int
}

func (s Summary) String() string {
	return fmt.Sprintf("scanned=%d cards_added=%d needs_review=%d failed=%d skipped=%d",
		s.Scanned, s.CardsAdded, s.NeedsReview, s.Failed, s.Skipped)
}

type Watcher struct {
	db      *gorm.DB
	scanner Scanner
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	seen    map[string]bool // source names already in scan history
	summary Summary
}

func New(db *gorm.DB, scanner Scanner, opts Options, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ProcessedDir == "" {
		opts.ProcessedDir = filepath.Join(opts.Dir, "processed")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	return &Watcher{db: db, scanner: scanner, opts: opts, logger: logger}
}

// RunOnce processes every image currently in the directory and returns the
// batch summary.
func (w *Watcher) RunOnce(ctx context.Context) (Summary, error) {
	unlock, err := w.lock()
	if err != nil {
		return Summary{}, err
	}
	defer unlock()
	return w.runOnce(ctx)
}

// Watch processes the existing images and then keeps processing new ones
// until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.opts.Dir); err != nil {
		return err
	}

	sum, err := w.runOnce(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("initial batch done", "dir", w.opts.Dir, "summary", sum.String())
	w.logger.Info("watching for new images", "dir", w.opts.Dir, "workers", w.opts.Workers)

	fileCh := make(chan string, 256)
	go w.debounce(ctx, fw, fileCh)
	w.pool(ctx, fileCh)
	return ctx.Err()
}

func (w *Watcher) lock() (func(), error) {
	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return nil, err
	}
	lk := flock.New(filepath.Join(w.opts.Dir, lockName))
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := lk.Unlock(); err != nil {
			w.logger.Warn("failed to release lock", "error", err)
		}
	}, nil
}

func (w *Watcher) runOnce(ctx context.Context) (Summary, error) {
	if err := w.preload(ctx); err != nil {
		return Summary{}, err
	}
	w.mu.Lock()
	w.summary = Summary{}
	w.mu.Unlock()

	files := ListImages(w.opts.Dir)
	w.logger.Info("scanning directory", "dir", w.opts.Dir, "files", len(files), "workers", w.opts.Workers)
	fileCh := make(chan string, len(files))
	for _, f := range files {
		fileCh <- f
	}
	close(fileCh)
	w.pool(ctx, fileCh)

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary, ctx.Err()
}

// preload loads the names already present in the owner's scan history so
// restarts skip them without a query per file.
func (w *Watcher) preload(ctx context.Context) error {
	var sources []string
	if err := w.db.WithContext(ctx).Model(&models.ScanMetadata{}).
		Where("owner_id = ? AND source <> ''", w.opts.OwnerID).
		Pluck("source", &sources).Error; err != nil {
		return fmt.Errorf("load scan history: %w", err)
	}
	w.mu.Lock()
	w.seen = make(map[string]bool, len(sources))
	for _, s := range sources {
		w.seen[s] = true
	}
	w.mu.Unlock()
	return nil
}

// pool runs Workers goroutines over fileCh until it is closed or ctx ends.
func (w *Watcher) pool(ctx context.Context, fileCh <-chan string) {
	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case name, ok := <-fileCh:
					if !ok {
						return
					}
					w.processFile(ctx, name)
				}
			}
		}()
	}
	wg.Wait()
}

func (w *Watcher) debounce(ctx context.Context, fw *fsnotify.Watcher, out chan<- string) {
	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.opts.Debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != filepath.Clean(w.opts.Dir) || !IsSupported(name) {
				continue
			}
			pending[name] = time.Now()
		case <-ticker.C:
			now := time.Now()
			for name, t := range pending {
				if now.Sub(t) >= w.opts.Debounce {
					delete(pending, name)
					select {
					case out <- name:
					case <-ctx.Done():
						return
					}
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) count(fn func(*Summary)) {
	w.mu.Lock()
	fn(&w.summary)
	w.mu.Unlock()
}

// claim marks name as in progress; false means it was already handled.
func (w *Watcher) claim(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	if w.seen[name] {
		return false
	}
	w.seen[name] = true
	return true
}

func (w *Watcher) processFile(ctx context.Context, name string) {
	path := filepath.Join(w.opts.Dir, name)
	if !w.claim(name) {
		w.logger.Debug("skip already recorded", "file", name)
		w.count(func(s *Summary) { s.Skipped++ })
		return
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("read failed", "file", name, "error", err)
		w.count(func(s *Summary) { s.Failed++ })
		return
	}

	meta := models.ScanMetadata{OwnerID: w.opts.OwnerID, Source: name, Timestamp: time.Now()}
	res, err := w.scanner.Scan(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		meta.ScanMethod = string(recognition.MethodManual)
		meta.Failed = true
		meta.FailedReason = truncate(err.Error(), 255)
		if err := w.db.WithContext(ctx).Create(&meta).Error; err != nil {
			w.logger.Error("record failed scan", "file", name, "error", err)
		}
		w.count(func(s *Summary) { s.Failed++ })
		w.logger.Warn("scan failed", "file", name, "decode", errors.Is(err, ocr.ErrDecode), "error", err)
		w.archive(path, name, filepath.Join(w.opts.ProcessedDir, "failed"))
		return
	}

	meta.ScanMethod = string(res.ScanMethod)
	meta.Confidence = res.Confidence
	if res.CardData != nil {
		meta.ImagePath = res.CardData.ImagePath
	}

	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if res.CardData != nil && !res.RequiresConfirmation {
			card := CardFromResult(w.opts.OwnerID, res)
			if err := tx.Create(&card).Error; err != nil {
				return fmt.Errorf("create card: %w", err)
			}
			meta.CardID = &card.ID
		}
		return tx.Create(&meta).Error
	})
	if err != nil {
		w.logger.Error("record scan", "file", name, "error", err)
		w.count(func(s *Summary) { s.Failed++ })
		return
	}

	w.count(func(s *Summary) {
		s.Scanned++
		if meta.CardID != nil {
			s.CardsAdded++
		} else {
			s.NeedsReview++
		}
	})
	w.logger.Info("scanned", "file", name, "method", res.ScanMethod, "confidence", res.Confidence, "card_added", meta.CardID != nil)
	w.archive(path, name, w.opts.ProcessedDir)
}

func (w *Watcher) archive(path, name, dir string) {
	if err := MoveToProcessed(path, filepath.Join(dir, name), w.opts.MaxProcessedBytes); err != nil {
		w.logger.Warn("failed to move processed file", "file", name, "error", err)
	}
}

// CardFromResult converts a confident scan into a collection entry.
func CardFromResult(ownerID uint, res *recognition.ScanResult) models.Card {
	cd := res.CardData
	card := models.Card{
		OwnerID:     ownerID,
		Name:        cd.Name,
		Game:        cd.Game,
		SetCode:     cd.SetCode,
		CardNumber:  cd.CardNumber,
		Rarity:      cd.Rarity,
		Price:       cd.Price,
		Description: cd.Description,
		ImageURL:    cd.ImageURL,
		Confidence:  res.Confidence,
	}
	if cd.ImagePath != "" {
		p := cd.ImagePath
		card.ImagePath = &p
	}
	return card
}

// ListImages returns the supported image files directly inside dir, sorted.
func ListImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func IsSupported(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".heic", ".heif":
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
