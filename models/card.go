package models

import "time"

// Card is a trading card in a user's collection.
type Card struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	OwnerID     uint      `gorm:"index;not null" json:"owner_id"`
	Name        string    `gorm:"size:255;index;not null" json:"name"`
	Game        string    `gorm:"size:64;not null" json:"game"`
	SetCode     string    `gorm:"size:64;index" json:"set_code"`
	CardNumber  string    `gorm:"size:64" json:"card_number"`
	Rarity      *string   `gorm:"size:128" json:"rarity"`
	Price       *string   `gorm:"size:32" json:"price"`
	Description *string   `gorm:"type:text" json:"description"`
	ImageURL    *string   `gorm:"size:1024" json:"image_url"`
	ImagePath   *string   `gorm:"size:1024" json:"image_path"`
	Confidence  float64   `gorm:"not null" json:"confidence"`
}
