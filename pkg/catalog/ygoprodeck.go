package catalog

import (
	"context"
	"net/url"
	"strings"
)

// DefaultYGOProDeckURL is the public YGOPRODeck v7 API.
const DefaultYGOProDeckURL = "https://db.ygoprodeck.com/api/v7"

// YGOProDeck looks up Yu-Gi-Oh! cards by printed set code.
type YGOProDeck struct {
	client
}

var _ Source = (*YGOProDeck)(nil)

func NewYGOProDeck(baseURL string, opts ...Option) *YGOProDeck {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultYGOProDeckURL
	}
	return &YGOProDeck{client: newClient(strings.TrimRight(baseURL, "/"), opts)}
}

type ygoResponse struct {
	Data []ygoCard `json:"data"`
}

type ygoCard struct {
	Name     string `json:"name"`
	Desc     string `json:"desc"`
	CardSets []struct {
		SetCode   string `json:"set_code"`
		SetRarity string `json:"set_rarity"`
		SetPrice  string `json:"set_price"`
	} `json:"card_sets"`
	CardImages []struct {
		ImageURL string `json:"image_url"`
	} `json:"card_images"`
	CardPrices []struct {
		TCGPlayerPrice string `json:"tcgplayer_price"`
	} `json:"card_prices"`
}

// Lookup queries cardinfo.php?cardset=SET-NUM and uses the first card.
func (y *YGOProDeck) Lookup(ctx context.Context, setCode, cardNumber string) (*ExternalCardData, error) {
	code := setCode + "-" + cardNumber
	params := url.Values{}
	params.Set("cardset", code)
	var payload ygoResponse
	if err := y.getJSON(ctx, y.baseURL+"/cardinfo.php?"+params.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, ErrNotFound
	}
	card := payload.Data[0]

	price, rarity := "0.00", "Common"
	full := strings.ToUpper(code)
	matched := false
	for _, s := range card.CardSets {
		if s.SetCode == full {
			price = orDefault(s.SetPrice, "0.00")
			rarity = orDefault(s.SetRarity, "Common")
			matched = true
			break
		}
	}
	if !matched && len(card.CardPrices) > 0 {
		price = orDefault(card.CardPrices[0].TCGPlayerPrice, "0.00")
		if len(card.CardSets) > 0 {
			rarity = orDefault(card.CardSets[0].SetRarity, "Common")
		}
	}

	out := &ExternalCardData{
		Game:        GameYugioh,
		Name:        Optional(card.Name),
		Description: Optional(card.Desc),
		Price:       &price,
		Rarity:      &rarity,
	}
	if len(card.CardImages) > 0 {
		out.ImageURL = Optional(card.CardImages[0].ImageURL)
	}
	return out, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
