package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "stratus",
		Short: "Single-tenant cloud operator console",
		Long: `Stratus - operator console for a single-tenant AWS account

Stratus gives operators a uniform view and lifecycle control over
compute, storage, container, identity, DNS and host-local service
resources, backed by a Postgres catalog of instance types, prices,
inbound mail and DMARC reports.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
