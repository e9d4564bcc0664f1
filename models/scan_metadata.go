package models

import "time"

// ScanMetadata records one recognition attempt. Failed scans are kept so an
// operator can review them instead of losing the upload.
type ScanMetadata struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"-"`
	OwnerID      uint      `gorm:"index;not null" json:"owner_id"`
	CardID       *uint     `gorm:"index" json:"card_id,omitempty"`
	Card         *Card     `gorm:"foreignKey:CardID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	ScanMethod   string    `gorm:"size:16;index;not null" json:"scan_method"`
	Confidence   float64   `json:"confidence"`
	ImagePath    string    `gorm:"size:1024" json:"image_path,omitempty"`
	Source       string    `gorm:"size:512" json:"source,omitempty"`
	Timestamp    time.Time `gorm:"index;not null" json:"timestamp"`
	Failed       bool      `gorm:"default:false;index" json:"failed"`
	FailedReason string    `gorm:"size:255" json:"failed_reason,omitempty"`
}

func (ScanMetadata) TableName() string { return "scan_metadata" }
