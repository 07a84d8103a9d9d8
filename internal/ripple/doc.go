// Package ripple propagates judgment changes through the static dependency
// graph. When a judgment changes, every assumption resting on it goes stale
// before anything else happens, every derived judgment reading it is
// recomputed (unless the user edited the target directly), and any pipeline
// stage that consumed the old value is flagged for a re-run. Propagation is
// an explicit graph walk, so it is total, deterministic, and idempotent.
package ripple
