package textutil

import (
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// VideoStem returns the file name of a video path without its extension,
// safe to use as an output directory and artifact prefix. Path separators,
// colons and asterisks become dashes; quoting, glob and control characters
// are dropped. A name that cleans down to nothing becomes "video".
func VideoStem(path string) string {
	name := filepath.Base(strings.TrimSpace(path))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*':
			return '-'
		case '?', '"', '<', '>', '|':
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), ".")
	if name == "" {
		return "video"
	}
	return name
}

// WorkToken folds a name into a lowercase ASCII token for scratch directory
// prefixes. Accents are stripped first, so "Película" becomes "pelicula";
// anything else outside [a-z0-9_-] becomes an underscore. Empty results
// become "job".
func WorkToken(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if token := strings.Trim(b.String(), "_-"); token != "" {
		return token
	}
	return "job"
}
