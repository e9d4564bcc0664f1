package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Game tags as stored on cards and references.
const (
	GameYugioh  = "Yu-Gi-Oh!"
	GamePokemon = "Pokemon"
	GameUnknown = "Unknown"
)

// ErrNotFound is returned by a Source when the remote catalog has no card for
// the requested code.
var ErrNotFound = errors.New("card not found")

// ExternalCardData is what a remote catalog knows about a card. A nil field
// means the catalog did not provide it. Game is the tag of the source that
// produced the record.
type ExternalCardData struct {
	Game        string  `json:"game"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	Rarity      *string `json:"rarity,omitempty"`
}

// Optional returns a pointer to s, or nil when s is empty.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Source looks up a single card in one remote catalog.
type Source interface {
	Lookup(ctx context.Context, setCode, cardNumber string) (*ExternalCardData, error)
}

// Gateway dispatches external lookups to the catalog for a game. It never
// returns errors: failures are logged and reported as a miss.
type Gateway struct {
	sources map[string]sourceEntry
	logger  *slog.Logger
}

type sourceEntry struct {
	game   string
	source Source
}

// NewGateway wires the per-game sources. A nil source disables that game.
func NewGateway(logger *slog.Logger, yugioh, pokemon Source) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{sources: map[string]sourceEntry{}, logger: logger}
	if yugioh != nil {
		g.sources[strings.ToLower(GameYugioh)] = sourceEntry{game: GameYugioh, source: yugioh}
	}
	if pokemon != nil {
		g.sources[strings.ToLower(GamePokemon)] = sourceEntry{game: GamePokemon, source: pokemon}
	}
	return g
}

// FetchExternal asks the catalog for game about set/number. Game matching is
// case-insensitive; unknown games, misses, timeouts and transport errors all
// yield nil.
func (g *Gateway) FetchExternal(ctx context.Context, game, setCode, cardNumber string) *ExternalCardData {
	entry, ok := g.sources[strings.ToLower(strings.TrimSpace(game))]
	if !ok {
		g.logger.Debug("no catalog for game", "game", game)
		return nil
	}
	data, err := entry.source.Lookup(ctx, setCode, cardNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.logger.Debug("external catalog miss", "game", entry.game, "set", setCode, "number", cardNumber)
		} else {
			g.logger.Warn("external catalog lookup failed", "game", entry.game, "set", setCode, "number", cardNumber, "error", err)
		}
		return nil
	}
	if data == nil {
		return nil
	}
	data.Game = entry.game
	return data
}
