package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Inbound-email pipeline operations",
}

var mailSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile inbound_email with the mail bucket and extract attachments",
	RunE:  runMailSync,
}

var mailDmarcCmd = &cobra.Command{
	Use:   "dmarc",
	Short: "Ingest unprocessed DMARC aggregate reports from the attachment prefix",
	RunE:  runMailDmarc,
}

func init() {
	rootCmd.AddCommand(mailCmd)
	mailCmd.AddCommand(mailSyncCmd)
	mailCmd.AddCommand(mailDmarcCmd)
}

func runMailSync(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.mailroom.SyncDB(cmd.Context()); err != nil {
		return fmt.Errorf("sync inbound email: %w", err)
	}
	fmt.Println("inbound email synchronized")
	return nil
}

func runMailDmarc(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.mailroom.ProcessDmarc(cmd.Context()); err != nil {
		return fmt.Errorf("process dmarc reports: %w", err)
	}
	fmt.Println("dmarc reports ingested")
	return nil
}
