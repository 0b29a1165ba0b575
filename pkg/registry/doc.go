// Package registry is the concurrency-safe map from registry key to
// ProcessEntry, plus per-key start locks that serialize concurrent starts
// for the same backend.
package registry
