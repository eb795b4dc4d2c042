package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Refresh the instance-type catalog from the vendor pages",
	Long: `Fetch the current- and previous-generation instance-type pages,
parse the family and type tables and upsert them into the catalog.`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func newScraper(a *app) *scraper.Scraper {
	return scraper.New(a.store)
}

func runScrape(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := newScraper(a).Run(cmd.Context()); err != nil {
		return fmt.Errorf("scrape catalog: %w", err)
	}
	fmt.Println("instance-type catalog refreshed")
	return nil
}
