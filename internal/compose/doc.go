// Package compose synthesizes scheduled descriptions and mixes them into the
// original soundtrack.
//
// Each clip must fit its silence window. A clip that runs long is requested
// again with fewer words; if it still runs long after the bounded number of
// attempts it is kept and a compliance warning is recorded. Under each clip
// the original is ducked in proportion to how loud that passage is relative
// to the whole track, easing down at entry and back up at exit, with a further
// fixed reduction while the clip plays.
package compose
