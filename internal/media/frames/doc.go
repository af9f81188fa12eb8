// Package frames samples video frames for scene analysis and grabs
// keyframes for description prompts.
//
// Sample asks ffmpeg for one frame per interval at a small analysis width
// and returns a Sequence that decodes the files lazily, so decoding can run
// ahead of comparison. Image handling (decode, resize, grayscale, JPEG
// encoding) uses github.com/disintegration/imaging.
package frames
