package recognition_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cardscope/models"
	"cardscope/pkg/catalog"
	"cardscope/pkg/logging"
	"cardscope/pkg/ocr"
	"cardscope/pkg/recognition"
)

var _ = Describe("Engine", func() {
	var (
		ctx      context.Context
		refs     *MockReferences
		external *MockExternal
		engine   *recognition.Engine
		lob      *models.CardReference
	)

	BeforeEach(func() {
		ctx = context.Background()
		lob = &models.CardReference{
			Game: catalog.GameYugioh, SetCode: "LOB", CardNumber: "001",
			Name: "Blue-Eyes White Dragon", Rarity: catalog.Optional("Ultra Rare"),
		}
		refs = &MockReferences{ref: lob}
		external = &MockExternal{byGame: map[string]*catalog.ExternalCardData{}}
		engine = recognition.NewEngine(refs, external, logging.NewNop())
	})

	Context("with a code in the reference table", func() {
		It("returns the local card with full confidence", func() {
			res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "LOB", Number: "001"}, "", "")
			Expect(res.ScanMethod).To(Equal(recognition.MethodCode))
			Expect(res.Confidence).To(Equal(1.0))
			Expect(res.RequiresConfirmation).To(BeFalse())
			Expect(res.CardData.Name).To(Equal("Blue-Eyes White Dragon"))
			Expect(*res.CardData.Rarity).To(Equal("Ultra Rare"))
		})

		It("enriches price but keeps the local name", func() {
			external.byGame[catalog.GameYugioh] = &catalog.ExternalCardData{
				Game:  catalog.GameYugioh,
				Name:  catalog.Optional("Blue Eyes (external spelling)"),
				Price: catalog.Optional("25.00"),
			}
			res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "LOB", Number: "001"}, "", "")
			Expect(*res.CardData.Price).To(Equal("25.00"))
			Expect(res.CardData.Name).To(Equal("Blue-Eyes White Dragon"))
			Expect(*res.CardData.Rarity).To(Equal("Ultra Rare"))
			Expect(external.calls).To(ConsistOf(fetchCall{catalog.GameYugioh, "LOB", "001"}))
		})
	})

	Context("with a code only the external catalog knows", func() {
		It("tries Yu-Gi-Oh! before Pokemon", func() {
			external.byGame[catalog.GameYugioh] = &catalog.ExternalCardData{
				Game: catalog.GameYugioh, Name: catalog.Optional("Dark Magician"),
			}
			external.byGame[catalog.GamePokemon] = &catalog.ExternalCardData{
				Game: catalog.GamePokemon, Name: catalog.Optional("Pikachu"),
			}
			res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "SDY", Number: "006"}, "", "")
			Expect(res.ScanMethod).To(Equal(recognition.MethodCode))
			Expect(res.Confidence).To(Equal(0.9))
			Expect(res.RequiresConfirmation).To(BeTrue())
			Expect(res.CardData.Name).To(Equal("Dark Magician"))
			Expect(res.CardData.Game).To(Equal(catalog.GameYugioh))
			Expect(external.calls).To(HaveLen(1))
		})

		It("falls through to Pokemon and tags the game from the source", func() {
			external.byGame[catalog.GamePokemon] = &catalog.ExternalCardData{
				Game:  catalog.GamePokemon,
				Name:  catalog.Optional("Charizard"),
				Price: catalog.Optional("310.00"),
			}
			res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "BS", Number: "004"}, "", "")
			Expect(res.Confidence).To(Equal(0.9))
			Expect(res.CardData.Game).To(Equal(catalog.GamePokemon))
			Expect(res.CardData.SetCode).To(Equal("BS"))
			Expect(res.CardData.CardNumber).To(Equal("004"))
			Expect(*res.CardData.Price).To(Equal("310.00"))
			Expect(external.calls).To(Equal([]fetchCall{
				{catalog.GameYugioh, "BS", "004"},
				{catalog.GamePokemon, "BS", "004"},
			}))
		})
	})

	It("treats a reference lookup error as a miss", func() {
		refs.err = errors.New("connection refused")
		res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "LOB", Number: "001"}, "Blue-Eyes\nDragon", "")
		Expect(res.ScanMethod).To(Equal(recognition.MethodVisual))
	})

	Context("without a resolvable code", func() {
		It("guesses the name from the first line of text", func() {
			res := engine.Resolve(ctx, nil, "Dark Magician\n[Spellcaster/Normal]", "")
			Expect(res.ScanMethod).To(Equal(recognition.MethodVisual))
			Expect(res.Confidence).To(Equal(0.6))
			Expect(res.RequiresConfirmation).To(BeTrue())
			Expect(res.CardData.Name).To(Equal("Dark Magician"))
			Expect(res.CardData.Game).To(Equal(catalog.GameUnknown))
			Expect(res.CardData.SetCode).To(BeEmpty())
		})

		It("truncates long first lines to 50 characters", func() {
			res := engine.Resolve(ctx, nil, strings.Repeat("é", 80), "")
			Expect([]rune(res.CardData.Name)).To(HaveLen(50))
		})

		It("falls back to visual when the code is unknown everywhere", func() {
			res := engine.Resolve(ctx, &ocr.DetectedCode{Set: "ZZZ", Number: "999"}, "Mystery card", "")
			Expect(res.ScanMethod).To(Equal(recognition.MethodVisual))
			Expect(external.calls).To(HaveLen(2))
		})

		It("asks for manual entry when there is nothing to go on", func() {
			res := engine.Resolve(ctx, nil, "  \n\t ", "https://bucket/scans/a.jpg")
			Expect(res).To(Equal(recognition.ScanResult{
				ScanMethod:           recognition.MethodManual,
				Confidence:           0.0,
				RequiresConfirmation: true,
			}))
		})
	})

	It("attaches the stored image url to card data", func() {
		res := engine.Resolve(ctx, nil, "Pikachu", "https://bucket/scans/a.jpg")
		Expect(res.CardData.ImagePath).To(Equal("https://bucket/scans/a.jpg"))
	})
})

var _ = Describe("CardData.Merge", func() {
	It("is the identity for an empty external record", func() {
		card := &recognition.CardData{Name: "Pikachu", Price: catalog.Optional("1.00")}
		before := *card
		card.Merge(&catalog.ExternalCardData{}, recognition.AllFields...)
		Expect(*card).To(Equal(before))
	})

	It("only touches the selected fields", func() {
		card := &recognition.CardData{Name: "Local"}
		card.Merge(&catalog.ExternalCardData{
			Name:        catalog.Optional("Remote"),
			Description: catalog.Optional("desc"),
		}, recognition.EnrichFields...)
		Expect(card.Name).To(Equal("Local"))
		Expect(*card.Description).To(Equal("desc"))
	})
})
