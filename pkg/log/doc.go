// Package log implements the structured logger shared by the frontier
// server, storage layer, and CLI. Entries carry typed Fields, are rendered
// by a pluggable Formatter (JSON or text), and written to one or more
// Outputs. RedirectStdLog captures standard-library logging (e.g. Pebble's)
// into the same pipeline.
package log
