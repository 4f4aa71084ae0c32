// Package id generates sortable per-process identifiers, used to tag put and
// get streams in transport logs.
package id
