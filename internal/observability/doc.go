// Package observability provides structured logging and metrics
// for Secure Notes.
//
// This package implements:
//   - zap logger construction from configuration
//   - Prometheus metrics for authentication outcomes and HTTP traffic
package observability
