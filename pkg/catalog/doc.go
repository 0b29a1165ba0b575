// Package catalog persists the subagent definition catalog as a single
// JSON file, written atomically so a crash mid-write never leaves a torn
// file behind.
package catalog
