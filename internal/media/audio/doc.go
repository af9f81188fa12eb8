// Package audio chooses which audio stream of a video carries the programme
// sound that descriptions are mixed into.
//
// Select ranks audio streams by language tag (compared on the base language
// through golang.org/x/text/language), default disposition and channel
// layout, pushing commentary and existing description tracks to the end.
package audio
