// Package pebblestore wraps Pebble as the frontier's durable index.
//
// The frontier needs two logical column families: URL (existence) and SCHED
// (scheduling order). Pebble does not have column families, so each keyspace
// lives under a fixed two-byte physical prefix ("u/", "s/"); the wrapper
// strips the prefix on iteration, so callers only ever see keyspace-relative
// keys in the interop byte layout.
//
// Durability follows an fsync policy (always / interval group-commit /
// never). Point writes are durable on return under FsyncModeAlways; range
// deletes are atomic per call; a Batch commits multi-key updates atomically.
package pebblestore
