package models

import "time"

// CardReference is a known card keyed by its printed set code and number.
// The recognition pipeline only ever reads these rows.
type CardReference struct {
	ID         uint      `gorm:"primaryKey" json:"id" yaml:"-"`
	CreatedAt  time.Time `json:"-" yaml:"-"`
	UpdatedAt  time.Time `json:"-" yaml:"-"`
	Game       string    `gorm:"size:64;not null" json:"game" yaml:"game"`
	SetCode    string    `gorm:"size:64;not null;uniqueIndex:idx_ref_code" json:"set_code" yaml:"set_code"`
	CardNumber string    `gorm:"size:64;not null;uniqueIndex:idx_ref_code" json:"card_number" yaml:"card_number"`
	Name       string    `gorm:"size:255;not null" json:"name" yaml:"name"`
	Rarity     *string   `gorm:"size:128" json:"rarity" yaml:"rarity,omitempty"`
}
