package subtitles

import (
	"strings"
	"unicode/utf8"

	"adscribe/internal/config"
	"adscribe/internal/transcript"
)

// Options are the UNE 153010 limits applied to generated cues.
type Options struct {
	MaxCharsPerLine int
	MaxLines        int
	CharsPerSecond  float64
	MinDuration     float64
	MaxDuration     float64
}

// OptionsFromConfig maps the subtitles config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxCharsPerLine: cfg.Subtitles.MaxCharsPerLine,
		MaxLines:        cfg.Subtitles.MaxLines,
		CharsPerSecond:  cfg.Subtitles.CharsPerSecond,
		MinDuration:     cfg.Subtitles.MinDuration,
		MaxDuration:     cfg.Subtitles.MaxDuration,
	}
}

type token struct {
	text       string
	start, end float64
}

// Build converts transcript segments into cues. Segments are sorted and
// filtered for artifacts first; the removals are returned for logging.
func Build(segments []transcript.Segment, opts Options) ([]Cue, []Removal) {
	kept, removals := FilterArtifacts(transcript.Sorted(segments))
	var cues []Cue
	for _, seg := range kept {
		for _, chunk := range chunkTokens(tokensFor(seg), opts) {
			words := make([]string, len(chunk))
			for i, tok := range chunk {
				words[i] = tok.text
			}
			cues = append(cues, Cue{
				Start: chunk[0].start,
				End:   chunk[len(chunk)-1].end,
				Lines: wrapLines(words, opts.MaxCharsPerLine),
			})
		}
	}
	retime(cues, opts)
	for i := range cues {
		cues[i].Index = i + 1
	}
	return cues, removals
}

// tokensFor uses word timings when present; otherwise the segment span is
// shared among words in proportion to their length.
func tokensFor(seg transcript.Segment) []token {
	var tokens []token
	if len(seg.Words) > 0 {
		for _, w := range seg.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			tokens = append(tokens, token{text: text, start: w.Start, end: w.End})
		}
		if len(tokens) > 0 {
			return tokens
		}
	}
	words := strings.Fields(seg.Text)
	if len(words) == 0 {
		return nil
	}
	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	span := seg.End - seg.Start
	at := seg.Start
	for _, w := range words {
		length := span * float64(utf8.RuneCountInString(w)) / float64(total)
		tokens = append(tokens, token{text: w, start: at, end: at + length})
		at += length
	}
	return tokens
}

// chunkTokens groups tokens so each group wraps into MaxLines lines and
// spans no more than MaxDuration.
func chunkTokens(tokens []token, opts Options) [][]token {
	var (
		chunks  [][]token
		current []token
		words   []string
	)
	for _, tok := range tokens {
		if len(current) > 0 {
			candidate := append(append([]string(nil), words...), tok.text)
			tooLong := opts.MaxDuration > 0 && tok.end-current[0].start > opts.MaxDuration
			if len(wrapLines(candidate, opts.MaxCharsPerLine)) > opts.MaxLines || tooLong {
				chunks = append(chunks, current)
				current, words = nil, nil
			}
		}
		current = append(current, tok)
		words = append(words, tok.text)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

// wrapLines fills lines greedily up to maxChars runes. A word longer than
// maxChars gets a line of its own.
func wrapLines(words []string, maxChars int) []string {
	var (
		lines []string
		line  strings.Builder
	)
	for _, w := range words {
		if line.Len() == 0 {
			line.WriteString(w)
			continue
		}
		if maxChars > 0 && utf8.RuneCountInString(line.String())+1+utf8.RuneCountInString(w) > maxChars {
			lines = append(lines, line.String())
			line.Reset()
			line.WriteString(w)
			continue
		}
		line.WriteByte(' ')
		line.WriteString(w)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return lines
}

// retime extends each cue to its minimum display time, caps it at
// MaxDuration, and never lets it run into the next cue.
func retime(cues []Cue, opts Options) {
	for i := range cues {
		cue := &cues[i]
		need := opts.MinDuration
		if opts.CharsPerSecond > 0 {
			need = max(need, float64(textLength(cue.Lines))/opts.CharsPerSecond)
		}
		if cue.Duration() < need {
			cue.End = cue.Start + need
		}
		if opts.MaxDuration > 0 && cue.Duration() > opts.MaxDuration {
			cue.End = cue.Start + opts.MaxDuration
		}
		if i+1 < len(cues) && cue.End > cues[i+1].Start {
			cue.End = max(cues[i+1].Start, cue.Start)
		}
	}
}

func textLength(lines []string) int {
	n := 0
	for _, line := range lines {
		n += utf8.RuneCountInString(line)
	}
	return n
}
