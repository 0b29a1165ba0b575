package planner

import (
	"sort"

	"github.com/cuemby/agentpool/pkg/metrics"
	"github.com/cuemby/agentpool/pkg/types"
)

// Strategy is the planner's recommended execution mode for a batch.
type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
)

// Plan is the planner's verdict for a batch of TaskDescriptors.
type Plan struct {
	Strategy Strategy
	Order    []string
	CanRun   bool
	Reason   string
}

// isAccelerated reports whether a task's provider participates in memory
// feasibility accounting.
func isAccelerated(p types.Provider) bool {
	return p == types.ProviderVLLM || p == types.ProviderSGLang
}

// Build produces an execution plan for tasks against effectiveCap, the
// memory accountant's current effective utilisation cap.
func Build(tasks []types.TaskDescriptor, effectiveCap float64) Plan {
	order, ok, residual := topoSort(tasks)
	if !ok {
		metrics.PlannerDecisionsTotal.WithLabelValues("rejected-cycle").Inc()
		return Plan{Strategy: StrategySequential, Order: residual, CanRun: false, Reason: "dependency cycle detected"}
	}

	if !hasEdges(tasks) {
		k, total := maxFeasibleSubsetSize(tasks, effectiveCap)
		if total == 0 || k >= total {
			metrics.PlannerDecisionsTotal.WithLabelValues(string(StrategyParallel)).Inc()
			return Plan{Strategy: StrategyParallel, Order: order, CanRun: true}
		}
		metrics.PlannerDecisionsTotal.WithLabelValues(string(StrategySequential)).Inc()
		return Plan{
			Strategy: StrategySequential,
			Order:    order,
			CanRun:   true,
			Reason:   "memory cap does not allow all accelerated tasks to run concurrently",
		}
	}

	metrics.PlannerDecisionsTotal.WithLabelValues(string(StrategySequential)).Inc()
	return Plan{Strategy: StrategySequential, Order: order, CanRun: true}
}

func hasEdges(tasks []types.TaskDescriptor) bool {
	for _, t := range tasks {
		if t.DependsOn != "" {
			return true
		}
	}
	return false
}

// topoSort repeatedly extracts tasks whose dependency (if any) is already
// scheduled. If a pass makes no progress while tasks remain, it reports a
// cycle and returns the unscheduled residual as order.
func topoSort(tasks []types.TaskDescriptor) (order []string, ok bool, residual []string) {
	scheduled := make(map[string]bool, len(tasks))
	remaining := make([]types.TaskDescriptor, len(tasks))
	copy(remaining, tasks)
	order = make([]string, 0, len(tasks))

	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0:0]

		for _, t := range remaining {
			if t.DependsOn == "" || scheduled[t.DependsOn] {
				order = append(order, t.SubagentID)
				scheduled[t.SubagentID] = true
				progressed = true
				continue
			}
			next = append(next, t)
		}

		if !progressed {
			residual = make([]string, 0, len(next))
			for _, t := range next {
				residual = append(residual, t.SubagentID)
			}
			return order, false, residual
		}
		remaining = next
	}

	return order, true, nil
}

// maxFeasibleSubsetSize returns the largest k such that some k-subset of
// the batch's accelerated tasks has total reserved fraction <= cap, and the
// total number of accelerated tasks in the batch. Maximizing count under a
// sum bound is solved optimally by taking the smallest fractions first.
func maxFeasibleSubsetSize(tasks []types.TaskDescriptor, cap float64) (k, total int) {
	fractions := make([]float64, 0, len(tasks))
	for _, t := range tasks {
		if isAccelerated(t.Provider) {
			fractions = append(fractions, t.ReservedFraction)
		}
	}
	total = len(fractions)

	sort.Float64s(fractions)

	sum := 0.0
	for _, f := range fractions {
		if sum+f > cap {
			break
		}
		sum += f
		k++
	}
	return k, total
}
