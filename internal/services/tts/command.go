package tts

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"

	"adscribe/internal/compose"
	"adscribe/internal/language"
	"adscribe/internal/media/ffmpeg"
	"adscribe/internal/services"
)

// espeakWPM is espeak-ng's default speaking rate.
const espeakWPM = 175

// DefaultCommandArgs suits espeak-ng.
var DefaultCommandArgs = []string{"-v", "{lang}", "-s", "{wpm}", "-w", "{output}", "{text}"}

// Command renders speech by running an external binary. Args may contain the
// placeholders {text}, {output}, {voice}, {lang}, {speed} and {wpm}.
type Command struct {
	Binary string
	Args   []string
}

// Name implements Engine.
func (c Command) Name() string { return "command" }

// Render implements Engine.
func (c Command) Render(ctx context.Context, text string, voice compose.Voice, dest string) error {
	binary := strings.TrimSpace(c.Binary)
	if binary == "" {
		binary = "espeak-ng"
	}
	cmd := exec.CommandContext(ctx, binary, c.expand(text, voice, dest)...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.KindSystem, "tts", services.CodeMissingBinary, binary+" not found", err).
				WithSuggestion("install " + binary + " or set tts.provider = \"stub\"")
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.KindAudioProcessing, "tts", "", binary+" failed: "+ffmpeg.Tail(stderr.String(), 4), err)
	}
	return nil
}

func (c Command) expand(text string, voice compose.Voice, dest string) []string {
	args := c.Args
	if len(args) == 0 {
		args = DefaultCommandArgs
	}
	speed := voice.Speed
	if speed <= 0 {
		speed = 1
	}
	lang := language.Base(voice.Language)
	if lang == "" {
		lang = "es"
	}
	replacer := strings.NewReplacer(
		"{text}", text,
		"{output}", dest,
		"{voice}", voice.Name,
		"{lang}", lang,
		"{speed}", strconv.FormatFloat(speed, 'f', -1, 64),
		"{wpm}", strconv.Itoa(int(espeakWPM*speed+0.5)),
	)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}
