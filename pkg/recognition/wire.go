package recognition

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"cardscope/pkg/catalog"
	"cardscope/pkg/config"
	"cardscope/pkg/ocr"
	"cardscope/pkg/storage"
)

// Build assembles a production Scanner from configuration: Tesseract OCR,
// the gorm reference table, both remote catalogs and the configured storage
// driver. A storage setup failure disables uploads instead of failing.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, logger *slog.Logger) (*Scanner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("recognition: config required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	extractor := ocr.NewExtractor(ocr.TesseractRecognizer{Language: cfg.OCR.Language}, logger)
	extractor.CodeRegion = cfg.OCR.CodeRegion
	extractor.CodePageSegMode = cfg.OCR.CodePageSegMode

	gateway := catalog.NewGateway(logger,
		catalog.NewYGOProDeck(cfg.Catalog.YGOProDeckURL, catalog.WithTimeout(cfg.Catalog.Timeout)),
		catalog.NewPokemonTCG(cfg.Catalog.PokemonTCGURL,
			catalog.WithTimeout(cfg.Catalog.Timeout),
			catalog.WithAPIKey(cfg.Catalog.PokemonTCGAPIKey)),
	)

	var refs catalog.ReferenceFinder
	if db != nil {
		refs = catalog.NewReferenceStore(db)
	}
	engine := NewEngine(refs, gateway, logger)

	uploader, err := storage.New(ctx, storage.Options{
		Driver:          cfg.Storage.Driver,
		LocalDir:        cfg.Storage.UploadBase,
		PublicBaseURL:   cfg.Storage.PublicBaseURL,
		Bucket:          cfg.Storage.Bucket,
		Region:          cfg.Storage.Region,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		Endpoint:        cfg.Storage.Endpoint,
	})
	if err != nil {
		logger.Warn("storage disabled", "error", err)
		uploader = storage.Disabled{}
	}

	return NewScanner(ocr.NewNormalizer(logger), extractor, engine, uploader, logger), nil
}
