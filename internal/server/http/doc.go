// Package httpserver exposes the frontier API over HTTP: JSON for unary
// operations and NDJSON for the two streaming directions (put acks and
// dispatched URLs).
package httpserver
