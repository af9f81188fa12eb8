// Package gemini generates scene descriptions with Google's Gemini models
// through github.com/google/generative-ai-go. The keyframe is sent inline as
// a JPEG blob next to the shared description prompt, and the model is asked
// for a JSON object constrained by a response schema.
package gemini
