package recognition

import (
	"context"
	"log/slog"
	"strings"

	"cardscope/pkg/catalog"
	"cardscope/pkg/ocr"
)

// ExternalFetcher queries the remote catalog for a game. It reports misses
// and failures alike as nil.
type ExternalFetcher interface {
	FetchExternal(ctx context.Context, game, setCode, cardNumber string) *catalog.ExternalCardData
}

// guessOrder is the order games are tried when a code is not in the local
// reference table.
var guessOrder = []string{catalog.GameYugioh, catalog.GamePokemon}

// Engine decides which tier a scan resolves to.
type Engine struct {
	refs     catalog.ReferenceFinder
	external ExternalFetcher
	logger   *slog.Logger
}

func NewEngine(refs catalog.ReferenceFinder, external ExternalFetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{refs: refs, external: external, logger: logger}
}

// Resolve applies, in order: local reference (+enrichment), external lookup
// by guessed game, visual text, manual. imagePath is attached to any card
// data produced.
func (e *Engine) Resolve(ctx context.Context, code *ocr.DetectedCode, fullText, imagePath string) ScanResult {
	res := e.resolve(ctx, code, fullText)
	if res.CardData != nil && imagePath != "" {
		res.CardData.ImagePath = imagePath
	}
	return res
}

func (e *Engine) resolve(ctx context.Context, code *ocr.DetectedCode, fullText string) ScanResult {
	if code != nil {
		if res, ok := e.fromReference(ctx, code); ok {
			return res
		}
		if res, ok := e.fromExternal(ctx, code); ok {
			return res
		}
	}
	if strings.TrimSpace(fullText) != "" {
		return ScanResult{
			ScanMethod:           MethodVisual,
			Confidence:           ConfidenceVisual,
			RequiresConfirmation: true,
			CardData: &CardData{
				Name: ocr.FirstLine(fullText, VisualNameLimit),
				Game: catalog.GameUnknown,
			},
		}
	}
	return ScanResult{
		ScanMethod:           MethodManual,
		Confidence:           ConfidenceNone,
		RequiresConfirmation: true,
	}
}

func (e *Engine) fromReference(ctx context.Context, code *ocr.DetectedCode) (ScanResult, bool) {
	if e.refs == nil {
		return ScanResult{}, false
	}
	ref, err := e.refs.FindReference(ctx, code.Set, code.Number)
	if err != nil {
		e.logger.Warn("reference lookup failed", "code", code.String(), "error", err)
		return ScanResult{}, false
	}
	if ref == nil {
		return ScanResult{}, false
	}
	card := &CardData{
		Name:       ref.Name,
		Game:       ref.Game,
		SetCode:    ref.SetCode,
		CardNumber: ref.CardNumber,
		Rarity:     ref.Rarity,
	}
	if e.external != nil {
		card.Merge(e.external.FetchExternal(ctx, ref.Game, ref.SetCode, ref.CardNumber), EnrichFields...)
	}
	return ScanResult{
		ScanMethod: MethodCode,
		Confidence: ConfidenceLocal,
		CardData:   card,
	}, true
}

func (e *Engine) fromExternal(ctx context.Context, code *ocr.DetectedCode) (ScanResult, bool) {
	if e.external == nil {
		return ScanResult{}, false
	}
	for _, game := range guessOrder {
		ext := e.external.FetchExternal(ctx, game, code.Set, code.Number)
		if ext == nil {
			continue
		}
		card := &CardData{SetCode: code.Set, CardNumber: code.Number, Game: ext.Game}
		if card.Game == "" {
			card.Game = game
		}
		card.Merge(ext, AllFields...)
		e.logger.Debug("code resolved externally", "code", code.String(), "game", card.Game)
		return ScanResult{
			ScanMethod:           MethodCode,
			Confidence:           ConfidenceExternal,
			RequiresConfirmation: true,
			CardData:             card,
		}, true
	}
	return ScanResult{}, false
}
