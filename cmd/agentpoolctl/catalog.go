package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/agentpool/pkg/catalog"
	"github.com/cuemby/agentpool/pkg/types"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the subagent catalog",
}

func openSubagentStore() (*catalog.Store, error) {
	return catalog.Load(cfg.Catalog.SubagentPath)
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subagent definitions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		for _, def := range store.List() {
			fmt.Printf("%-20s %-30s model=%s/%s\n", def.ID, def.Name, def.Model.Endpoint.Provider, def.Model.Endpoint.Model)
		}
		return nil
	},
}

var catalogAddCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Add or replace a subagent definition from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		var def types.SubagentDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		if def.ID == "" {
			return fmt.Errorf("definition in %s has no id", args[0])
		}

		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		if err := store.Upsert(&def); err != nil {
			return err
		}
		fmt.Printf("✓ Subagent %s added\n", def.ID)
		return nil
	},
}

var catalogRemoveCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Remove a subagent definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Subagent %s removed\n", args[0])
		return nil
	},
}

var catalogDuplicateCmd = &cobra.Command{
	Use:   "duplicate ID NEW_ID NEW_NAME",
	Short: "Duplicate a subagent definition under a new id and name",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		dup, err := store.Duplicate(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Duplicated %s -> %s (%s)\n", args[0], dup.ID, dup.Name)
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export ID FILE",
	Short: "Export a subagent definition to a versioned JSON envelope",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		data, err := store.Export(args[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[1], data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", args[1], err)
		}
		fmt.Printf("✓ Exported %s to %s\n", args[0], args[1])
		return nil
	},
}

var catalogImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a subagent definition from an exported envelope and install it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		def, err := catalog.Import(data)
		if err != nil {
			return err
		}
		store, err := openSubagentStore()
		if err != nil {
			return err
		}
		if err := store.Upsert(def); err != nil {
			return err
		}
		fmt.Printf("✓ Imported %s\n", def.ID)
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogAddCmd)
	catalogCmd.AddCommand(catalogRemoveCmd)
	catalogCmd.AddCommand(catalogDuplicateCmd)
	catalogCmd.AddCommand(catalogExportCmd)
	catalogCmd.AddCommand(catalogImportCmd)
}
