package subtitles

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"adscribe/internal/transcript"
)

// isolationGap is the silence on both sides that marks a segment as isolated.
const isolationGap = 10.0

// Removal records a transcript segment dropped before cue building.
type Removal struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Text   string  `json:"text"`
	Reason string  `json:"reason"`
}

// Phrases speech recognizers emit over silence or music (normalized form).
var hallucinationPhrases = lo.SliceToMap([]string{
	"thank you",
	"thank you for watching",
	"thanks for watching",
	"please subscribe",
	"bye",
	"gracias",
	"gracias por ver",
	"gracias por ver el vídeo",
	"suscríbete",
	"subtítulos realizados por la comunidad de amaraorg",
	"subtítulos por la comunidad de amaraorg",
}, func(phrase string) (string, bool) { return phrase, true })

var punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = punctuationRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// FilterArtifacts drops isolated hallucination phrases, music-only segments
// and empty segments. segments must be sorted by start.
func FilterArtifacts(segments []transcript.Segment) ([]transcript.Segment, []Removal) {
	var (
		kept     []transcript.Segment
		removals []Removal
	)
	for i, seg := range segments {
		text := seg.CleanText()
		reason := ""
		switch {
		case text == "":
			reason = "empty"
		case isMusicOnly(text):
			reason = "music_symbols"
		case isolated(segments, i) && isHallucination(text):
			reason = "isolated_hallucination"
		}
		if reason != "" {
			removals = append(removals, Removal{Start: seg.Start, End: seg.End, Text: text, Reason: reason})
			continue
		}
		kept = append(kept, seg)
	}
	return kept, removals
}

func isHallucination(text string) bool {
	return hallucinationPhrases[normalizeText(text)]
}

func isolated(segments []transcript.Segment, i int) bool {
	before := segments[i].Start
	if i > 0 {
		before = segments[i].Start - segments[i-1].End
	}
	after := isolationGap
	if i < len(segments)-1 {
		after = segments[i+1].Start - segments[i].End
	}
	return before >= isolationGap && after >= isolationGap
}

// isMusicOnly reports whether text is only music notation and whitespace.
func isMusicOnly(text string) bool {
	for _, r := range text {
		switch {
		case r == '¶', r == '♪', r == '♫', r == '*':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}
