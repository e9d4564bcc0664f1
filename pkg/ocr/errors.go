package ocr

import "errors"

// ErrDecode is returned when the raw bytes cannot be decoded as an image at all.
var ErrDecode = errors.New("image could not be decoded")

// ErrRecognition wraps failures of the OCR engine itself. An empty recognition
// result is not an error.
var ErrRecognition = errors.New("text recognition failed")
