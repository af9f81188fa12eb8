package schedule

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxWords is the word budget of a window: floor(duration x wordRate).
func MaxWords(duration, wordRate float64) int {
	if duration <= 0 || wordRate <= 0 {
		return 0
	}
	// Nudge past float error so 3.5s x 3.0 is 10, not 9.
	return int(math.Floor(duration*wordRate + 1e-9))
}

// Truncate keeps the first n words of text and ends them with a period.
// Text already within n words is returned with whitespace normalized.
func Truncate(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	if n <= 0 {
		return ""
	}
	kept := strings.Join(words[:n], " ")
	kept = strings.TrimRight(kept, ",;:.…!?-–— ")
	return kept + "."
}

// Limits are the reading-rate rules a description must satisfy.
type Limits struct {
	CharsPerSecond float64
	MinReadingTime float64
	MaxWPM         float64
}

// Check returns "" when text fits window duration, else the violated rule.
func (l Limits) Check(text string, duration float64) string {
	if l.CharsPerSecond > 0 {
		reading := float64(utf8.RuneCountInString(text)) / l.CharsPerSecond
		if reading < l.MinReadingTime {
			return fmt.Sprintf("reading time %.2fs below minimum %.1fs", reading, l.MinReadingTime)
		}
	}
	if duration <= 0 {
		return "window has no duration"
	}
	if l.MaxWPM > 0 {
		wpm := float64(len(strings.Fields(text))) / duration * 60
		if wpm > l.MaxWPM+1e-9 {
			return fmt.Sprintf("%.0f words per minute exceeds %.0f", wpm, l.MaxWPM)
		}
	}
	return ""
}

// Fit applies the word budget and then re-truncates one word at a time, up to
// retries times, until text passes the limits. It returns the fitted text or
// the reason the description was dropped.
func Fit(text string, maxWords int, duration float64, limits Limits, retries int) (string, string) {
	fitted := Truncate(text, maxWords)
	if fitted == "" {
		return "", "empty description"
	}
	var reason string
	for attempt := 0; ; attempt++ {
		reason = limits.Check(fitted, duration)
		if reason == "" {
			return fitted, ""
		}
		words := len(strings.Fields(fitted))
		if attempt >= retries || words <= 1 {
			break
		}
		fitted = Truncate(fitted, words-1)
	}
	return "", reason
}
