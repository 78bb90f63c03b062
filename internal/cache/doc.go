// Package cache implements the in-memory read-through cache for the
// repository list. A single entry holds the last successful fetch and its
// timestamp; reads inside the TTL window are served directly, reads past it
// trigger one refresh shared by all concurrent callers. A refresh failure
// never surfaces to callers: stale data is re-served (and the window
// re-armed), and when nothing was ever cached the bundled fallback dataset
// takes its place. HTTP-facing handlers depend on this package for every
// repository read.
package cache
