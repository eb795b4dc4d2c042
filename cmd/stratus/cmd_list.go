package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/types"
)

var listCmd = &cobra.Command{
	Use:   "list [kind...]",
	Short: "List cloud resources by kind",
	Long: `List resources of the given kinds as JSON. Instances are always
included. Valid kinds: instances, reserved, spot, ami, volume, snapshot,
ecr, key, script, user, group, access-key, route53, systemd,
inbound-email, security-group, all.`,
	Example: `  stratus list
  stratus list spot volume
  stratus list all`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	kinds := make([]types.Kind, 0, len(args))
	for _, arg := range args {
		kind, err := types.ParseKind(arg)
		if err != nil {
			return err
		}
		kinds = append(kinds, kind)
	}

	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	listings, err := a.orch.List(cmd.Context(), kinds...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(listings)
}
