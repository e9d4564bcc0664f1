package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardscope/models"
)

// ReferenceFinder resolves a printed code to a known card. A miss is
// (nil, nil).
type ReferenceFinder interface {
	FindReference(ctx context.Context, setCode, cardNumber string) (*models.CardReference, error)
}

// ReferenceStore is the gorm-backed reference table.
type ReferenceStore struct {
	db *gorm.DB
}

var _ ReferenceFinder = (*ReferenceStore)(nil)

func NewReferenceStore(db *gorm.DB) *ReferenceStore {
	return &ReferenceStore{db: db}
}

func (s *ReferenceStore) FindReference(ctx context.Context, setCode, cardNumber string) (*models.CardReference, error) {
	var ref models.CardReference
	err := s.db.WithContext(ctx).
		Where("set_code = ? AND card_number = ?", setCode, cardNumber).
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reference %s-%s: %w", setCode, cardNumber, err)
	}
	return &ref, nil
}

// Upsert inserts refs, updating name, game and rarity of rows whose code
// already exists. Running it twice with the same input is a no-op.
func (s *ReferenceStore) Upsert(ctx context.Context, refs []models.CardReference) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "set_code"}, {Name: "card_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"game", "name", "rarity", "updated_at"}),
	}).Create(&refs)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert references: %w", res.Error)
	}
	return len(refs), nil
}

// List returns references ordered by game and code, optionally filtered by game.
func (s *ReferenceStore) List(ctx context.Context, game string) ([]models.CardReference, error) {
	q := s.db.WithContext(ctx).Order("game, set_code, card_number")
	if game != "" {
		q = q.Where("LOWER(game) = LOWER(?)", game)
	}
	var refs []models.CardReference
	if err := q.Find(&refs).Error; err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	return refs, nil
}

// DefaultReferences is the sample data seeded on a fresh database.
func DefaultReferences() []models.CardReference {
	return []models.CardReference{
		{Game: GameYugioh, SetCode: "LOB", CardNumber: "001", Name: "Blue-Eyes White Dragon", Rarity: Optional("Ultra Rare")},
		{Game: GamePokemon, SetCode: "SV1", CardNumber: "025", Name: "Pikachu", Rarity: Optional("Rare")},
	}
}

type referenceFile struct {
	References []models.CardReference `yaml:"references"`
}

// LoadReferencesFile reads a YAML document of the form
//
//	references:
//	  - game: Pokemon
//	    set_code: SV1
//	    card_number: "025"
//	    name: Pikachu
func LoadReferencesFile(path string) ([]models.CardReference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f referenceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, r := range f.References {
		if r.Game == "" || r.SetCode == "" || r.CardNumber == "" || r.Name == "" {
			return nil, fmt.Errorf("%s: reference %d: game, set_code, card_number and name are required", path, i+1)
		}
	}
	return f.References, nil
}
