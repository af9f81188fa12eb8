// Package pipeline runs the per-video job: validate the input, extract its
// audio, detect scenes and silence windows in parallel, schedule and fit
// descriptions, mix the synthesized speech into the original track and export
// the accessible artifacts.
//
// A Pipeline implements governor.Runner so queued jobs and the one-shot CLI
// commands share the same code path.
package pipeline
