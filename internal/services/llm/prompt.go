package llm

import (
	"fmt"
	"strings"

	"adscribe/internal/language"
	"adscribe/internal/schedule"
)

const descriptionSystemPrompt = `You write audio descriptions for blind and low-vision viewers following UNE 153020.
Describe only what is visible: who is present, what they do, where they are, and any on-screen text.
Use the present tense and the third person. Do not interpret emotions or intentions, do not name the camera, and do not repeat what the dialogue already says.
Respond with JSON only: {"description": "<text>"}.`

// DescriptionPrompts returns the system and user prompts for one scene.
func DescriptionPrompts(sc schedule.SceneContext) (string, string) {
	var b strings.Builder
	lang := language.Base(sc.Language)
	if lang == "" {
		lang = "es"
	}
	fmt.Fprintf(&b, "Write the description in %s (%s).\n", language.SelfName(lang), language.DisplayName(lang))
	fmt.Fprintf(&b, "Use at most %d words; it must be spoken within %.1f seconds.\n", sc.MaxWords, sc.Window.Duration())
	if sc.Style == schedule.StyleDetailed {
		b.WriteString("Include setting, clothing and relevant objects when the word budget allows.\n")
	} else {
		b.WriteString("Mention only the essential action and the people involved.\n")
	}
	fmt.Fprintf(&b, "Scene %d runs from %.1fs to %.1fs of the video.", sc.Index+1, sc.Scene.Start, sc.Scene.End)
	if len(sc.Keyframe) == 0 {
		b.WriteString(" No frame is available for this scene; reply with an empty description if nothing can be stated with certainty.")
	}
	return descriptionSystemPrompt, b.String()
}
