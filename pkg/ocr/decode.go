package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/heic"
)

// Decode turns raw upload bytes into an image. Phone photos carry EXIF
// orientation, so JPEGs are rotated upright before any geometry runs.
// HEIC/HEIF (the iPhone camera default) goes through the pure Go decoder.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}
	if isHEIC(raw) {
		img, err := heic.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: heic: %w", ErrDecode, err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// isHEIC sniffs the ISO-BMFF ftyp box for HEIC/HEIF brands.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}
