// Package scene detects visual scene boundaries from sampled frames.
//
// Consecutive frames are compared with either the mean absolute grayscale
// difference or a luminance-histogram correlation. A pair scoring above the
// threshold starts a new scene whose confidence is 1 - score. Scenes shorter
// than the minimum duration are folded into the preceding scene, keeping the
// lower confidence. Frame comparisons run on a bounded errgroup while the
// next frame is decoded.
package scene
