package main

import (
	"fmt"
	"sort"

	"github.com/cuemby/agentpool/pkg/catalog"
	"github.com/spf13/cobra"
)

var bindingCmd = &cobra.Command{
	Use:   "binding",
	Short: "Manage subagent-label to model bindings",
}

func openBindingStore() (*catalog.BindingStore, error) {
	return catalog.LoadBindingStore(cfg.Catalog.BindingPath)
}

var bindingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every label binding",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openBindingStore()
		if err != nil {
			return err
		}
		all := store.All()
		labels := make([]string, 0, len(all))
		for label := range all {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			b := all[label]
			fmt.Printf("%-20s model=%-20s autoLoad=%-5v autoUnload=%-5v unloadDelayMs=%d\n",
				label, b.ModelID, b.AutoLoad, b.AutoUnload, b.UnloadDelayMs)
		}
		return nil
	},
}

var bindingGetCmd = &cobra.Command{
	Use:   "get LABEL",
	Short: "Show one label's binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openBindingStore()
		if err != nil {
			return err
		}
		b, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("no binding for label %q", args[0])
		}
		fmt.Printf("model=%s autoLoad=%v autoUnload=%v unloadDelayMs=%d\n", b.ModelID, b.AutoLoad, b.AutoUnload, b.UnloadDelayMs)
		return nil
	},
}

var bindingSetCmd = &cobra.Command{
	Use:   "set LABEL MODEL_ID",
	Short: "Assign or replace a label's model binding",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		autoLoad, _ := cmd.Flags().GetBool("auto-load")
		autoUnload, _ := cmd.Flags().GetBool("auto-unload")
		unloadDelayMs, _ := cmd.Flags().GetInt("unload-delay-ms")

		store, err := openBindingStore()
		if err != nil {
			return err
		}
		if err := store.Set(args[0], catalog.Binding{
			ModelID:       args[1],
			AutoLoad:      autoLoad,
			AutoUnload:    autoUnload,
			UnloadDelayMs: unloadDelayMs,
		}); err != nil {
			return err
		}
		fmt.Printf("✓ %s -> %s\n", args[0], args[1])
		return nil
	},
}

var bindingRemoveCmd = &cobra.Command{
	Use:   "remove LABEL",
	Short: "Remove a label's binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openBindingStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Binding %s removed\n", args[0])
		return nil
	},
}

func init() {
	bindingSetCmd.Flags().Bool("auto-load", true, "Start the backend on first use")
	bindingSetCmd.Flags().Bool("auto-unload", false, "Stop the backend when idle")
	bindingSetCmd.Flags().Int("unload-delay-ms", 0, "Delay before an idle unload takes effect")

	bindingCmd.AddCommand(bindingListCmd)
	bindingCmd.AddCommand(bindingGetCmd)
	bindingCmd.AddCommand(bindingSetCmd)
	bindingCmd.AddCommand(bindingRemoveCmd)
}
