// Package cache stores stage results on disk keyed by a content hash of the
// source video and the stage parameters.
//
// Entries live under <root>/<key[:2]>/<key>/ with a JSON metadata sidecar and
// a msgpack payload. Lookups treat entries older than the configured max age as
// misses. Every Put prunes oldest-first until the cache fits its size budget and
// the volume keeps a free-space floor. Spool writes large record streams as
// fixed-size chunk files that become visible only on Commit.
package cache
