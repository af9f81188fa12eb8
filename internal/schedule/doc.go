// Package schedule pairs scenes with silence windows and fits generated
// description text into each window.
//
// Pairing is a global nearest-start assignment: every (scene, window) pair is
// ranked by |window.start - scene.start| and taken in that order when both
// sides are still free, so a window goes to the scene that starts closest to
// it. Each window's word budget is floor(duration x word rate). Generated text
// over budget is cut to the budget and terminated with a period, then checked
// against the reading-time and words-per-minute limits of UNE 153020.
package schedule
