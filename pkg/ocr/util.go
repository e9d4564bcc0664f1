package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// dashFolder maps the dash and slash look-alikes Tesseract tends to emit onto
// the ASCII characters the code patterns expect.
var dashFolder = strings.NewReplacer(
	"‐", "-", "‑", "-", "‒", "-", "–", "-", "—", "-",
	"―", "-", "−", "-", "﹣", "-", "－", "-",
	"⁄", "/", "∕", "/", "／", "/",
)

// NormalizeCodeText prepares code-region OCR output for ParseCode: strips
// diacritics, folds dash variants and uppercases.
func NormalizeCodeText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToUpper(dashFolder.Replace(folded))
}

// FirstLine returns the first line of text truncated to max runes.
func FirstLine(text string, max int) string {
	line, _, _ := strings.Cut(text, "\n")
	line = strings.TrimRight(line, "\r")
	r := []rune(line)
	if len(r) > max {
		return string(r[:max])
	}
	return line
}
