// Package client implements the CLI subcommands that talk to a running
// frontier server over its HTTP API.
package client
