// Package server hosts the Fiber HTTP service, request middleware chain, and
// the upstream registry glue that maps mounted path prefixes to proxy routes.
// It bootstraps Fiber with recovery, request ID and error handling middleware,
// builds the UpstreamRegistry from config, and exposes the shared HTTP client
// that proxy handlers reuse for upstream calls. Route registration itself
// lives in server/routes so tests can wire handlers piecemeal; keep exports
// narrow and accept explicit dependencies.
package server
