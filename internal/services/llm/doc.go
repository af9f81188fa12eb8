// Package llm talks to an OpenRouter-compatible chat completions endpoint and
// turns a scene into a short audio description.
//
// Generator implements schedule.DescriptionGenerator. Each call sends the
// description prompt plus the scene keyframe as an inline JPEG and expects
// a JSON reply of the form {"description": "..."}.
//
// The client performs a single request per call. Failures are classified as
// services errors so the caller's retry policy decides what happens next:
// HTTP 408/429/5xx, transport failures and empty replies are ai_service
// (retryable); 401/403 and missing keys are validation errors with the
// missing_credentials code; other 4xx responses are validation errors.
// A Retry-After header is surfaced through services.RetryAfter.
//
// Prompts are shared with the Gemini generator via DescriptionPrompts.
package llm
