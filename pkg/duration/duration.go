// Package duration provides canonical time constants for vulntracker.
//
// Usage:
//
//	ctx, cancel := context.WithTimeout(ctx, duration.RunTimeout)
//
// DO NOT use hardcoded time.Duration values like `30 * time.Second` anywhere.
// Instead, reference the appropriate constant from this package.
package duration

import "time"

// ============================================================================
// HTTP CLIENT TIMEOUTS
// ============================================================================

const (
	// HTTPAPI is the per-request timeout for Qualys API calls (60s).
	// Report fetches can take a while on large saved reports.
	HTTPAPI = 60 * time.Second

	// HTTPSession is the timeout for login/logout calls (30s)
	HTTPSession = 30 * time.Second
)

// ============================================================================
// CONTEXT/OPERATION TIMEOUTS
// ============================================================================

const (
	// RunTimeout bounds a full pipeline run (15min)
	RunTimeout = 15 * time.Minute

	// ShutdownGrace is how long telemetry exporters get to flush (5s)
	ShutdownGrace = 5 * time.Second

	// ExporterConnect is the timeout for establishing the OTLP connection (10s)
	ExporterConnect = 10 * time.Second
)

// ============================================================================
// NETWORK/TRANSPORT
// ============================================================================

const (
	// DialTimeout is for establishing TCP connections (10s)
	DialTimeout = 10 * time.Second

	// KeepAlive is for TCP keep-alive interval (30s)
	KeepAlive = 30 * time.Second

	// IdleConnTimeout is for idle connection pool timeout (90s)
	IdleConnTimeout = 90 * time.Second

	// TLSHandshake is for TLS handshake timeout (10s)
	TLSHandshake = 10 * time.Second
)
