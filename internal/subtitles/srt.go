package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Cue is a single timed subtitle. Lines holds the wrapped text.
type Cue struct {
	Index int      `json:"index"`
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Lines []string `json:"lines"`
}

// Text returns the cue lines joined by a newline.
func (c Cue) Text() string {
	return strings.Join(c.Lines, "\n")
}

// Duration returns End - Start.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// WriteSRT renders cues in SRT form, numbering them from 1.
func WriteSRT(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for i, cue := range cues {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n", i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRTFile writes cues to path.
func WriteSRTFile(path string, cues []Cue) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create srt: %w", err)
	}
	if err := WriteSRT(file, cues); err != nil {
		_ = file.Close()
		return fmt.Errorf("write srt: %w", err)
	}
	return file.Close()
}

// ParseSRT reads cues from SRT content. Malformed blocks are skipped.
func ParseSRT(data []byte) []Cue {
	content := strings.TrimSpace(strings.ReplaceAll(string(data), "\r\n", "\n"))
	if content == "" {
		return nil
	}
	var cues []Cue
	for _, block := range strings.Split(content, "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		parts := strings.Split(lines[1], "-->")
		if len(parts) != 2 {
			continue
		}
		start, err := ParseTimestamp(parts[0])
		if err != nil {
			continue
		}
		end, err := ParseTimestamp(parts[1])
		if err != nil {
			continue
		}
		text := make([]string, 0, len(lines)-2)
		for _, line := range lines[2:] {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				text = append(text, trimmed)
			}
		}
		cues = append(cues, Cue{Index: index, Start: start, End: end, Lines: text})
	}
	return cues
}

// ReadSRTFile parses the SRT file at path.
func ReadSRTFile(path string) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	return ParseSRT(data), nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	total /= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total/60)%60, total%60, ms)
}

// ParseTimestamp parses HH:MM:SS,mmm (a period separator is also accepted).
func ParseTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
