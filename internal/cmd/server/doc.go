// Package serverrun hosts the server run loop: signal handling, logger
// setup, store/frontier recovery, and graceful shutdown ordering.
package serverrun
