package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Word forms seen in stream titles and hand-written configs.
var wordForms = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"español":    "es",
	"castellano": "es",
	"catalan":    "ca",
	"català":     "ca",
	"galician":   "gl",
	"basque":     "eu",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
}

// ISO 639-2 bibliographic codes still found in older containers.
var bibliographic = map[string]string{
	"baq": "eu",
	"chi": "zh",
	"dut": "nl",
	"fre": "fr",
	"ger": "de",
	"gre": "el",
	"per": "fa",
}

// Base returns the base language of any recognized tag, code or word form:
// the two-letter code where one exists, else the three-letter one. It
// returns "" for unrecognized input.
func Base(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "und" {
		return ""
	}
	if iso, ok := wordForms[code]; ok {
		return iso
	}
	if iso, ok := bibliographic[code]; ok {
		return iso
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == xlanguage.No {
		return ""
	}
	return base.String()
}

// Match reports whether two codes name the same base language.
func Match(a, b string) bool {
	baseA := Base(a)
	return baseA != "" && baseA == Base(b)
}

// DisplayName returns the English name of the language ("Spanish"), or the
// input when unrecognized.
func DisplayName(code string) string {
	base := Base(code)
	if base == "" {
		return strings.TrimSpace(code)
	}
	if name := display.English.Languages().Name(xlanguage.Make(base)); name != "" {
		return name
	}
	return base
}

// SelfName returns the language's own name for itself ("español").
func SelfName(code string) string {
	base := Base(code)
	if base == "" {
		return strings.TrimSpace(code)
	}
	if name := display.Self.Name(xlanguage.Make(base)); name != "" {
		return name
	}
	return DisplayName(base)
}
