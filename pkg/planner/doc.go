// Package planner turns a batch of TaskDescriptors into a topologically
// valid execution order and decides whether the batch can run in parallel
// given the memory accountant's effective cap.
package planner
