package subtitles

import (
	"fmt"
	"unicode/utf8"
)

// Issue is one standards violation found in a cue list.
type Issue struct {
	Index  int    `json:"index"`
	Rule   string `json:"rule"`
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	if i.Index == 0 {
		return fmt.Sprintf("%s: %s", i.Rule, i.Detail)
	}
	return fmt.Sprintf("cue %d %s: %s", i.Index, i.Rule, i.Detail)
}

// Rule names reported by Validate.
const (
	RuleEmpty        = "empty_subtitle_file"
	RuleLineLength   = "line_length"
	RuleLineCount    = "line_count"
	RuleMinDuration  = "min_duration"
	RuleMaxDuration  = "max_duration"
	RuleReadingSpeed = "reading_speed"
	RuleOverlap      = "overlap"
	RuleOrder        = "order"
	RuleBeyondVideo  = "beyond_video"
)

// durationSlack absorbs millisecond rounding in SRT timestamps.
const durationSlack = 0.0015

// Validate checks cues against opts. videoSeconds, when positive, bounds the
// last cue end.
func Validate(cues []Cue, opts Options, videoSeconds float64) []Issue {
	if len(cues) == 0 {
		return []Issue{{Rule: RuleEmpty, Detail: "no cues"}}
	}
	var issues []Issue
	add := func(cue Cue, position int, rule, format string, args ...any) {
		index := cue.Index
		if index == 0 {
			index = position + 1
		}
		issues = append(issues, Issue{Index: index, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}
	for i, cue := range cues {
		if opts.MaxLines > 0 && len(cue.Lines) > opts.MaxLines {
			add(cue, i, RuleLineCount, "%d lines exceeds %d", len(cue.Lines), opts.MaxLines)
		}
		for _, line := range cue.Lines {
			if n := utf8.RuneCountInString(line); opts.MaxCharsPerLine > 0 && n > opts.MaxCharsPerLine {
				add(cue, i, RuleLineLength, "%d characters exceeds %d", n, opts.MaxCharsPerLine)
			}
		}
		d := cue.Duration()
		if d+durationSlack < opts.MinDuration {
			add(cue, i, RuleMinDuration, "%.3fs shorter than %.1fs", d, opts.MinDuration)
		}
		if opts.MaxDuration > 0 && d > opts.MaxDuration+durationSlack {
			add(cue, i, RuleMaxDuration, "%.3fs longer than %.1fs", d, opts.MaxDuration)
		}
		if opts.CharsPerSecond > 0 && d > 0 {
			if cps := float64(textLength(cue.Lines)) / d; cps > opts.CharsPerSecond+durationSlack {
				add(cue, i, RuleReadingSpeed, "%.1f chars/s exceeds %.1f", cps, opts.CharsPerSecond)
			}
		}
		if i > 0 {
			prev := cues[i-1]
			if cue.Start < prev.Start {
				add(cue, i, RuleOrder, "starts before the previous cue")
			} else if cue.Start+durationSlack < prev.End {
				add(cue, i, RuleOverlap, "starts %.3fs before the previous cue ends", prev.End-cue.Start)
			}
		}
	}
	if last := cues[len(cues)-1]; videoSeconds > 0 && last.End > videoSeconds+durationSlack {
		add(last, len(cues)-1, RuleBeyondVideo, "ends at %.3fs after video end %.3fs", last.End, videoSeconds)
	}
	return issues
}

// ValidateFile parses an SRT file and validates it.
func ValidateFile(path string, opts Options, videoSeconds float64) ([]Issue, error) {
	cues, err := ReadSRTFile(path)
	if err != nil {
		return nil, err
	}
	return Validate(cues, opts, videoSeconds), nil
}
