package audio

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"adscribe/internal/media/ffprobe"
)

// Selection identifies the audio stream that descriptions are mixed into.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	// Ordinal is the position among audio streams, as used by "-map 0:a:N".
	Ordinal int
	// Alternatives lists the other audio stream indices, best first.
	Alternatives []int
}

// Found reports whether an audio stream was selected.
func (s Selection) Found() bool {
	return s.PrimaryIndex >= 0
}

// MapSpec returns the ffmpeg stream specifier for the selected stream.
func (s Selection) MapSpec() string {
	if !s.Found() {
		return "0:a:0"
	}
	return "0:a:" + strconv.Itoa(s.Ordinal)
}

// PrimaryLabel returns a human-readable summary of the selected primary stream.
func (s Selection) PrimaryLabel() string {
	if !s.Found() {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select picks the main programme audio for the requested language. Tracks
// tagged in that language win, then the default-flagged track; commentary
// and audio-description tracks are ranked last. With no audio streams the
// selection reports Found() == false.
func Select(streams []ffprobe.Stream, lang string) Selection {
	candidates := buildCandidates(streams, lang)
	if len(candidates) == 0 {
		return Selection{PrimaryIndex: -1, Ordinal: -1}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scorePrimary(candidates[i]) > scorePrimary(candidates[j])
	})
	best := candidates[0]
	selection := Selection{
		Primary:      best.stream,
		PrimaryIndex: best.stream.Index,
		Ordinal:      best.order,
	}
	for _, cand := range candidates[1:] {
		selection.Alternatives = append(selection.Alternatives, cand.stream.Index)
	}
	return selection
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	languageMatch  bool
	secondary      bool
	channels       int
	defaultFlagged bool
}

func scorePrimary(cand candidate) float64 {
	score := 0.0
	if cand.languageMatch {
		score += 1000
	}
	if cand.secondary {
		score -= 2000
	}
	if cand.defaultFlagged {
		score += 100
	}
	// Stereo and surround both downmix cleanly; mono is usually a dub or guide track.
	switch {
	case cand.channels >= 2:
		score += 20
	case cand.channels == 1:
		score += 10
	}
	score -= float64(cand.order) * 0.1
	return score
}

func buildCandidates(streams []ffprobe.Stream, lang string) []candidate {
	want, wantErr := language.Parse(strings.TrimSpace(lang))
	result := make([]candidate, 0)
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		title := normalizeTitle(stream.Tags)
		cand := candidate{
			stream:         stream,
			order:          order,
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			secondary: stream.Disposition["comment"] == 1 ||
				stream.Disposition["visual_impaired"] == 1 ||
				strings.Contains(title, "commentary") ||
				strings.Contains(title, "description"),
		}
		if wantErr == nil {
			cand.languageMatch = sameLanguage(want, normalizeLanguage(stream.Tags))
		}
		result = append(result, cand)
		order++
	}
	return result
}

// sameLanguage compares base languages so "spa", "es" and "es-MX" match.
func sameLanguage(want language.Tag, tagged string) bool {
	if tagged == "" || tagged == "und" {
		return false
	}
	got, err := language.Parse(tagged)
	if err != nil {
		return false
	}
	wantBase, _ := want.Base()
	gotBase, _ := got.Base()
	return wantBase == gotBase
}

func normalizeLanguage(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func normalizeTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := normalizeLanguage(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
