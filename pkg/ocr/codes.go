package ocr

import "regexp"

// DetectedCode is a set/number pair read off the bottom of a card.
type DetectedCode struct {
	Set    string `json:"set_code"`
	Number string `json:"card_number"`
}

func (c DetectedCode) String() string { return c.Set + "-" + c.Number }

// codePatterns are tried in order; the first pattern that matches anywhere wins.
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z0-9]+)-([A-Z0-9]+)`), // LOB-001
	regexp.MustCompile(`([A-Z0-9]+)/([A-Z0-9]+)`), // 025/SV1
	regexp.MustCompile(`([A-Z]{2,3})([0-9]{3})`),  // EN023
}

// ParseCode extracts the first set/number code from text, or nil when none of
// the patterns match. Matching is case-sensitive; run NormalizeCodeText first.
func ParseCode(text string) *DetectedCode {
	for _, re := range codePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return &DetectedCode{Set: m[1], Number: m[2]}
		}
	}
	return nil
}
