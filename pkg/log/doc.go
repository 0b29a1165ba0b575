// Package log provides structured logging for agentpool using zerolog.
//
// A single package-level Logger is initialized once via Init and shared by
// every component. WithComponent roots a component-scoped logger off it at
// wiring time; WithRunID, WithModelKey, and WithRegistryKey then attach
// per-call context fields onto that logger so log lines from the backend
// driver and coordinator can be correlated without
// passing a logger through every call.
package log
