package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/agentpool/pkg/catalog"
	"github.com/cuemby/agentpool/pkg/memmodel"
	"github.com/cuemby/agentpool/pkg/planner"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/spf13/cobra"
)

// planTask mirrors types.TaskDescriptor with JSON tags, since the task
// descriptor itself carries none (it is built in memory by callers, not
// persisted).
type planTask struct {
	SubagentID       string         `json:"subagentId"`
	Provider         types.Provider `json:"provider"`
	ReservedFraction float64        `json:"reservedFraction"`
	DependsOn        string         `json:"dependsOn,omitempty"`
}

var planCmd = &cobra.Command{
	Use:   "plan FILE",
	Short: "Compute an execution plan for a batch of tasks described in a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		capOverride, _ := cmd.Flags().GetFloat64("effective-cap")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var planTasks []planTask
		if err := json.Unmarshal(data, &planTasks); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		tasks := make([]types.TaskDescriptor, 0, len(planTasks))
		for _, t := range planTasks {
			tasks = append(tasks, types.TaskDescriptor{
				SubagentID:       t.SubagentID,
				Provider:         t.Provider,
				ReservedFraction: t.ReservedFraction,
				DependsOn:        t.DependsOn,
			})
		}

		effectiveCap := capOverride
		if effectiveCap == 0 {
			effectiveCap = effectiveCapFromCatalog(cmd.Context())
		}

		plan := planner.Build(tasks, effectiveCap)

		fmt.Printf("strategy: %s\n", plan.Strategy)
		fmt.Printf("canRun:   %v\n", plan.CanRun)
		if plan.Reason != "" {
			fmt.Printf("reason:   %s\n", plan.Reason)
		}
		fmt.Printf("order:    %v\n", plan.Order)
		return nil
	},
}

// effectiveCapFromCatalog detects the host architecture, applies the
// config's memory overrides, and returns the effective utilisation cap, the
// same value the coordinator's
// accountant would use at runtime, when the caller has not pinned one with
// --effective-cap.
func effectiveCapFromCatalog(ctx context.Context) float64 {
	mc, err := catalog.LoadModelCatalog(cfg.Catalog.ModelPath)
	hasRemote := false
	if err == nil {
		hasRemote = mc.HasRemoteEntry()
	}
	arch := memmodel.Detect(ctx, memmodel.DetectOptions{CatalogHasRemoteEntry: hasRemote})
	var overrides *memmodel.Overrides
	if cfg.Memory.MaxOverride != nil || cfg.Memory.ReserveOverride != nil {
		overrides = &memmodel.Overrides{Max: cfg.Memory.MaxOverride, Reserve: cfg.Memory.ReserveOverride}
	}
	if cfg.Memory.ArchitectureOverride != "" {
		arch = memmodel.Architecture(cfg.Memory.ArchitectureOverride)
	}
	return memmodel.New(arch, overrides).EffectiveCap()
}

func init() {
	planCmd.Flags().Float64("effective-cap", 0, "Override the detected memory accountant's effective cap (0 = auto-detect)")
}
