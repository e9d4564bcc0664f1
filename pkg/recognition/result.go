package recognition

import "cardscope/pkg/catalog"

// ScanMethod names the tier that produced a result.
type ScanMethod string

const (
	MethodCode   ScanMethod = "code"
	MethodVisual ScanMethod = "visual"
	MethodManual ScanMethod = "manual"
)

// Confidence per tier.
const (
	ConfidenceLocal    = 1.0
	ConfidenceExternal = 0.9
	ConfidenceVisual   = 0.6
	ConfidenceNone     = 0.0
)

// VisualNameLimit caps the name guessed from the first OCR line.
const VisualNameLimit = 50

// CardData is the card the scan resolved to. Optional fields are nil when
// unknown.
type CardData struct {
	Name        string  `json:"name"`
	Game        string  `json:"game"`
	SetCode     string  `json:"set_code"`
	CardNumber  string  `json:"card_number"`
	Rarity      *string `json:"rarity,omitempty"`
	Price       *string `json:"price,omitempty"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// ScanResult is the outcome of one scan. CardData is nil only for
// MethodManual.
type ScanResult struct {
	ScanMethod           ScanMethod `json:"scan_method"`
	Confidence           float64    `json:"confidence"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	CardData             *CardData  `json:"card_data"`
}

// Field selects an optional field for Merge.
type Field int

const (
	FieldName Field = iota
	FieldDescription
	FieldPrice
	FieldImageURL
	FieldRarity
)

// EnrichFields are the fields an external record may overwrite on a locally
// known card; the local name stays authoritative.
var EnrichFields = []Field{FieldPrice, FieldDescription, FieldImageURL, FieldRarity}

// AllFields copies everything an external record has.
var AllFields = []Field{FieldName, FieldDescription, FieldPrice, FieldImageURL, FieldRarity}

// Merge overwrites the selected fields with the values present in ext.
// Absent (nil) external fields leave the card untouched, so merging an empty
// record is the identity.
func (c *CardData) Merge(ext *catalog.ExternalCardData, fields ...Field) {
	if c == nil || ext == nil {
		return
	}
	for _, f := range fields {
		switch f {
		case FieldName:
			if ext.Name != nil {
				c.Name = *ext.Name
			}
		case FieldDescription:
			if ext.Description != nil {
				c.Description = ext.Description
			}
		case FieldPrice:
			if ext.Price != nil {
				c.Price = ext.Price
			}
		case FieldImageURL:
			if ext.ImageURL != nil {
				c.ImageURL = ext.ImageURL
			}
		case FieldRarity:
			if ext.Rarity != nil {
				c.Rarity = ext.Rarity
			}
		}
	}
}
