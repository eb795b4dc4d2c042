package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/pricing"
)

var pricesSearch string

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Show the price table for known instance types",
	RunE:  runPrices,
}

var pricesRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh ondemand and reserved prices from the pricing API",
	RunE:  runPricesRefresh,
}

func init() {
	rootCmd.AddCommand(pricesCmd)
	pricesCmd.AddCommand(pricesRefreshCmd)
	pricesCmd.Flags().StringVar(&pricesSearch, "search", "", "Substring filter on type or family name")
}

func newPricingRefresher(a *app) *pricing.Refresher {
	return pricing.New(a.adapter, a.store, a.store)
}

func runPrices(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := a.orch.GetEC2Prices(cmd.Context(), pricesSearch)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func runPricesRefresh(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := newPricingRefresher(a).Run(cmd.Context()); err != nil {
		return fmt.Errorf("refresh prices: %w", err)
	}
	fmt.Println("pricing observations refreshed")
	return nil
}
