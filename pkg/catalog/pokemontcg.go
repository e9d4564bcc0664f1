package catalog

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DefaultPokemonTCGURL is the public Pokemon TCG API v2.
const DefaultPokemonTCGURL = "https://api.pokemontcg.io/v2"

// priceBuckets is the preference order for tcgplayer price variants.
var priceBuckets = []string{
	"holofoil",
	"normal",
	"reverseHolofoil",
	"1stEditionHolofoil",
	"1stEditionNormal",
	"unlimitedHolofoil",
}

// PokemonTCG looks up Pokemon cards by set id and collector number.
type PokemonTCG struct {
	client
}

var _ Source = (*PokemonTCG)(nil)

func NewPokemonTCG(baseURL string, opts ...Option) *PokemonTCG {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultPokemonTCGURL
	}
	return &PokemonTCG{client: newClient(strings.TrimRight(baseURL, "/"), opts)}
}

type pokemonResponse struct {
	Data []pokemonCard `json:"data"`
}

type pokemonCard struct {
	Name       string `json:"name"`
	Rarity     string `json:"rarity"`
	FlavorText string `json:"flavorText"`
	Images     struct {
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"images"`
	TCGPlayer struct {
		Prices map[string]struct {
			Market *float64 `json:"market"`
		} `json:"prices"`
	} `json:"tcgplayer"`
}

// Lookup searches q=number:N set.id:set. Printed numbers carry leading zeros
// ("025") that the API does not store, so they are trimmed.
func (p *PokemonTCG) Lookup(ctx context.Context, setCode, cardNumber string) (*ExternalCardData, error) {
	query := "number:" + trimLeadingZeros(cardNumber)
	if setCode != "" {
		query += " set.id:" + strings.ToLower(setCode)
	}
	params := url.Values{}
	params.Set("q", query)
	var payload pokemonResponse
	if err := p.getJSON(ctx, p.baseURL+"/cards?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, ErrNotFound
	}
	card := payload.Data[0]
	price := marketPrice(card)
	return &ExternalCardData{
		Game:        GamePokemon,
		Name:        Optional(card.Name),
		Description: Optional(card.FlavorText),
		Price:       &price,
		ImageURL:    Optional(card.Images.Large),
		Rarity:      Optional(card.Rarity),
	}, nil
}

// marketPrice picks the market price of the first available bucket in
// priceBuckets order, then any remaining bucket in key order.
func marketPrice(card pokemonCard) string {
	prices := card.TCGPlayer.Prices
	if len(prices) == 0 {
		return "0.00"
	}
	order := append([]string(nil), priceBuckets...)
	var rest []string
	for k := range prices {
		known := false
		for _, b := range priceBuckets {
			if k == b {
				known = true
				break
			}
		}
		if !known {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	for _, k := range order {
		if v, ok := prices[k]; ok && v.Market != nil {
			return fmt.Sprintf("%.2f", *v.Market)
		}
	}
	return "0.00"
}

func trimLeadingZeros(n string) string {
	t := strings.TrimLeft(n, "0")
	if t == "" && n != "" {
		return "0"
	}
	return t
}
