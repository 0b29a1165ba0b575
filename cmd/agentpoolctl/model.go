package main

import (
	"fmt"

	"github.com/cuemby/agentpool/pkg/catalog"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/spf13/cobra"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Manage the model catalog",
}

func openModelCatalog() (*catalog.ModelCatalog, error) {
	return catalog.LoadModelCatalog(cfg.Catalog.ModelPath)
}

var modelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		mc, err := openModelCatalog()
		if err != nil {
			return err
		}
		for _, e := range mc.List() {
			flags := ""
			if e.IsMainAgent {
				flags += " main"
			}
			if e.IsSubagentOnly {
				flags += " subagent-only"
			}
			fmt.Printf("%-20s %-10s %-30s%s\n", e.ID, e.Provider, e.DisplayName, flags)
		}
		return nil
	},
}

var modelAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Add or replace a model catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		displayName, _ := cmd.Flags().GetString("display-name")
		provider, _ := cmd.Flags().GetString("provider")
		modelPath, _ := cmd.Flags().GetString("model")
		apiKey, _ := cmd.Flags().GetString("api-key")
		isMain, _ := cmd.Flags().GetBool("main")
		subagentOnly, _ := cmd.Flags().GetBool("subagent-only")

		mc, err := openModelCatalog()
		if err != nil {
			return err
		}
		if err := mc.Upsert(&catalog.ModelCatalogEntry{
			ID:                  args[0],
			DisplayName:         displayName,
			Provider:            types.Provider(provider),
			ModelPathOrHostedID: modelPath,
			APIKey:              apiKey,
			IsMainAgent:         isMain,
			IsSubagentOnly:      subagentOnly,
		}); err != nil {
			return err
		}
		fmt.Printf("✓ Model %s added\n", args[0])
		return nil
	},
}

var modelRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a model catalog entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mc, err := openModelCatalog()
		if err != nil {
			return err
		}
		if err := mc.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Model %s removed\n", args[0])
		return nil
	},
}

func init() {
	modelAddCmd.Flags().String("display-name", "", "Human-readable name")
	modelAddCmd.Flags().String("provider", "", "Provider: vllm, sglang, ollama, openai, anthropic, custom")
	modelAddCmd.Flags().String("model", "", "Model path (local) or hosted model id")
	modelAddCmd.Flags().String("api-key", "", "API key for hosted providers")
	modelAddCmd.Flags().Bool("main", false, "Start this model as a main backend in `serve`")
	modelAddCmd.Flags().Bool("subagent-only", false, "Mark this entry subagent-only (stored in the catalog and shown by list)")

	modelCmd.AddCommand(modelListCmd)
	modelCmd.AddCommand(modelAddCmd)
	modelCmd.AddCommand(modelRemoveCmd)
}
