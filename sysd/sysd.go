// Package sysd wraps the host's systemd and journal for a fixed set of
// managed services.
package sysd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/stratus-ops/stratus/telemetry"
)

// RunState is the coarse running/not-running view used by list_running.
type RunState string

const (
	Running    RunState = "Running"
	NotRunning RunState = "NotRunning"
)

// UnitStatus carries the subset of `systemctl show` properties we expose.
type UnitStatus struct {
	Name          string
	ActiveState   string
	SubState      string
	LoadState     string
	MainPID       int
	TasksCurrent  int64
	MemoryCurrent int64
}

// LogEntry is one journal line, newest first.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Hostname  string
}

// commandRunner abstracts child-process execution so tests can stub the
// systemctl and journalctl invocations.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Supervisor manages the configured service set. selfName identifies the
// unit this process runs under, so restart_all can defer its own restart.
type Supervisor struct {
	services []string
	selfName string
	runner   commandRunner
	logger   *telemetry.Logger
	sleep    func(time.Duration)
}

// Services permanently excluded from restart_all.
var restartBlacklist = map[string]struct{}{"nginx": {}}

func New(services []string, selfName string) *Supervisor {
	return &Supervisor{
		services: services,
		selfName: selfName,
		runner:   execRunner{},
		logger:   telemetry.NewLogger("sysd"),
		sleep:    time.Sleep,
	}
}

// ListRunning reports each configured service as Running or NotRunning.
// Services absent from the list-units output count as NotRunning.
func (s *Supervisor) ListRunning(ctx context.Context) (map[string]RunState, error) {
	output, err := s.runner.Run(ctx, "systemctl", "list-units", "--type=service", "--no-pager", "--no-legend")
	if err != nil {
		return nil, fmt.Errorf("systemctl list-units: %w", err)
	}

	active := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(strings.TrimPrefix(scanner.Text(), "●"))
		if len(fields) < 4 {
			continue
		}
		unit := strings.TrimSuffix(fields[0], ".service")
		if fields[3] == "running" {
			active[unit] = struct{}{}
		}
	}

	states := make(map[string]RunState, len(s.services))
	for _, name := range s.services {
		if _, ok := active[name]; ok {
			states[name] = Running
		} else {
			states[name] = NotRunning
		}
	}
	return states, nil
}

// Status returns the parsed `systemctl show` properties for one unit.
func (s *Supervisor) Status(ctx context.Context, name string) (*UnitStatus, error) {
	output, err := s.runner.Run(ctx, "systemctl", "show", name)
	if err != nil {
		return nil, fmt.Errorf("systemctl show %s: %w", name, err)
	}

	status := &UnitStatus{Name: name}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "ActiveState":
			status.ActiveState = value
		case "SubState":
			status.SubState = value
		case "LoadState":
			status.LoadState = value
		case "MainPID":
			status.MainPID, _ = strconv.Atoi(value)
		case "TasksCurrent":
			status.TasksCurrent, _ = strconv.ParseInt(value, 10, 64)
		case "MemoryCurrent":
			status.MemoryCurrent, _ = strconv.ParseInt(value, 10, 64)
		}
	}
	return status, nil
}

// Logs returns the last 100 journal lines for a unit in the current
// boot, newest first.
func (s *Supervisor) Logs(ctx context.Context, name string) ([]LogEntry, error) {
	output, err := s.runner.Run(ctx, "journalctl", "-b", "-u", name, "-o", "json", "-n", "100", "-r")
	if err != nil {
		return nil, fmt.Errorf("journalctl for %s: %w", name, err)
	}

	var entries []LogEntry
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var record struct {
			RealtimeTimestamp string `json:"__REALTIME_TIMESTAMP"`
			Message           string `json:"MESSAGE"`
			Hostname          string `json:"_HOSTNAME"`
		}
		if err := json.Unmarshal(line, &record); err != nil {
			continue
		}
		micros, err := strconv.ParseInt(record.RealtimeTimestamp, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, LogEntry{
			Timestamp: time.Unix(micros/1e6, (micros%1e6)*1000).UTC(),
			Message:   record.Message,
			Hostname:  record.Hostname,
		})
	}
	return entries, scanner.Err()
}

// Action runs start, stop or restart for a unit under sudo and returns
// raw stdout.
func (s *Supervisor) Action(ctx context.Context, verb, name string) (string, error) {
	switch verb {
	case "start", "stop", "restart":
	default:
		return "", fmt.Errorf("unsupported action %q", verb)
	}
	output, err := s.runner.Run(ctx, "sudo", "systemctl", verb, name)
	if err != nil {
		return "", fmt.Errorf("systemctl %s %s: %w", verb, name, err)
	}
	s.logger.Info().Str("verb", verb).Str("service", name).Msg("service action")
	return string(output), nil
}

// RestartAll restarts every configured service except blacklisted ones
// and the caller's own unit. If the own unit is in the set, its restart
// is issued from a detached goroutine after a short delay so this call
// can return first.
func (s *Supervisor) RestartAll(ctx context.Context) error {
	selfManaged := false
	for _, name := range s.services {
		if name == s.selfName {
			selfManaged = true
			continue
		}
		if _, blocked := restartBlacklist[name]; blocked {
			continue
		}
		if _, err := s.Action(ctx, "restart", name); err != nil {
			return err
		}
	}

	if selfManaged {
		go func() {
			s.sleep(time.Second)
			if _, err := s.Action(context.Background(), "restart", s.selfName); err != nil {
				s.logger.Error().Err(err).Msg("self restart failed")
			}
		}()
	}
	return nil
}

// ReadCrontab returns the raw contents of a crontab file.
func ReadCrontab(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read crontab %s: %w", path, err)
	}
	return string(data), nil
}
