package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratus-ops/stratus/config"
	"github.com/stratus-ops/stratus/procstat"
	"github.com/stratus-ops/stratus/sysd"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Inspect and control the managed systemd services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the run state of every managed service",
	RunE:  runServicesList,
}

var servicesStatusCmd = &cobra.Command{
	Use:   "status <service>",
	Short: "Show detailed unit status",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesStatus,
}

var servicesLogsCmd = &cobra.Command{
	Use:   "logs <service>",
	Short: "Show the last 100 journal lines for a unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesLogs,
}

var servicesActionCmd = &cobra.Command{
	Use:   "action <start|stop|restart> <service>",
	Short: "Start, stop or restart one unit",
	Args:  cobra.ExactArgs(2),
	RunE:  runServicesAction,
}

var servicesRestartAllCmd = &cobra.Command{
	Use:   "restart-all",
	Short: "Restart every managed service except the blacklist and this one",
	RunE:  runServicesRestartAll,
}

var servicesPsCmd = &cobra.Command{
	Use:   "ps",
	Short: "Sample CPU, memory and IO for the managed service processes",
	RunE:  runServicesPs,
}

var servicesCrontabCmd = &cobra.Command{
	Use:   "crontab <root|user>",
	Short: "Print the root or user crontab",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesCrontab,
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	servicesCmd.AddCommand(servicesListCmd)
	servicesCmd.AddCommand(servicesStatusCmd)
	servicesCmd.AddCommand(servicesLogsCmd)
	servicesCmd.AddCommand(servicesActionCmd)
	servicesCmd.AddCommand(servicesRestartAllCmd)
	servicesCmd.AddCommand(servicesPsCmd)
	servicesCmd.AddCommand(servicesCrontabCmd)
}

// buildSupervisor wires the supervisor without touching the database or
// the cloud provider.
func buildSupervisor() (*sysd.Supervisor, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return sysd.New(cfg.SystemdServices, serviceName), nil
}

func runServicesList(cmd *cobra.Command, args []string) error {
	sup, err := buildSupervisor()
	if err != nil {
		return err
	}
	states, err := sup.ListRunning(cmd.Context())
	if err != nil {
		return err
	}
	for name, state := range states {
		fmt.Printf("%-30s %s\n", name, state)
	}
	return nil
}

func runServicesStatus(cmd *cobra.Command, args []string) error {
	sup, err := buildSupervisor()
	if err != nil {
		return err
	}
	status, err := sup.Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s/%s (%s) pid=%d tasks=%d mem=%d\n",
		status.Name, status.ActiveState, status.SubState, status.LoadState,
		status.MainPID, status.TasksCurrent, status.MemoryCurrent)
	return nil
}

func runServicesLogs(cmd *cobra.Command, args []string) error {
	sup, err := buildSupervisor()
	if err != nil {
		return err
	}
	entries, err := sup.Logs(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s %s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Hostname, e.Message)
	}
	return nil
}

func runServicesAction(cmd *cobra.Command, args []string) error {
	sup, err := buildSupervisor()
	if err != nil {
		return err
	}
	output, err := sup.Action(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Print(output)
	}
	return nil
}

func runServicesRestartAll(cmd *cobra.Command, args []string) error {
	sup, err := buildSupervisor()
	if err != nil {
		return err
	}
	return sup.RestartAll(cmd.Context())
}

func runServicesPs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stats, err := procstat.New(cfg.SystemdServices).Snapshot(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%-30s %7s %7s %12s %12s %12s\n", "NAME", "PID", "CPU%", "MEM", "READ", "WRITE")
	for _, s := range stats {
		fmt.Printf("%-30s %7d %7.1f %12d %12d %12d\n",
			s.Name, s.PID, s.CPUPercent, s.MemoryBytes, s.ReadBytes, s.WriteBytes)
	}
	return nil
}

func runServicesCrontab(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	path, err := crontabPath(cfg, args[0])
	if err != nil {
		return err
	}
	content, err := sysd.ReadCrontab(path)
	if err != nil {
		return err
	}
	fmt.Print(content)
	return nil
}

func crontabPath(cfg *config.Config, which string) (string, error) {
	var path string
	switch which {
	case "root":
		path = cfg.RootCrontab
	case "user":
		path = cfg.UserCrontab
	default:
		return "", fmt.Errorf("unknown crontab %q, want root or user", which)
	}
	if path == "" {
		return "", fmt.Errorf("%s crontab path is not configured", which)
	}
	return path, nil
}
