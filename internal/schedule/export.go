package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"adscribe/internal/subtitles"
)

// ScriptEntry is one line of the exported description script.
type ScriptEntry struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Script converts cues into script entries.
func Script(cues []Cue) []ScriptEntry {
	entries := make([]ScriptEntry, len(cues))
	for i, cue := range cues {
		entries[i] = ScriptEntry{Start: cue.Window.Start, End: cue.End(), Text: cue.Text}
	}
	return entries
}

// WriteScript encodes the description script as an indented JSON array.
func WriteScript(w io.Writer, cues []Cue) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Script(cues))
}

// WriteScriptFile writes the description script to path.
func WriteScriptFile(path string, cues []Cue) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create script: %w", err)
	}
	if err := WriteScript(file, cues); err != nil {
		_ = file.Close()
		return fmt.Errorf("write script: %w", err)
	}
	return file.Close()
}

// SubtitleCues renders descriptions as single-line subtitle cues.
func SubtitleCues(cues []Cue) []subtitles.Cue {
	out := make([]subtitles.Cue, len(cues))
	for i, cue := range cues {
		out[i] = subtitles.Cue{Index: i + 1, Start: cue.Window.Start, End: cue.End(), Lines: []string{cue.Text}}
	}
	return out
}

// WriteSRTFile writes the descriptions as an SRT file.
func WriteSRTFile(path string, cues []Cue) error {
	return subtitles.WriteSRTFile(path, SubtitleCues(cues))
}
