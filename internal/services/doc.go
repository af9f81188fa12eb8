// Package services defines shared utilities consumed by the pipeline stages and
// the external provider integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The error taxonomy (validation, video/audio processing, AI service,
//     resource, system) with component, code, and user-facing suggestion.
//   - One retry policy with bounded attempts and exponential backoff, applied
//     where external collaborators are invoked.
//   - A token-bucket rate limiter shared per external service.
//
// Provider and stage code should classify failures through Wrap so job status,
// retries, and logs stay uniform.
package services
