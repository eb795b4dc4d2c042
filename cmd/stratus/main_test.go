package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratus-ops/stratus/config"
)

func TestCommandTree(t *testing.T) {
	expected := []string{"serve", "scrape", "prices", "mail", "services", "users", "list", "ip"}
	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range expected {
		assert.True(t, registered[name], "command %s not registered", name)
	}
}

func TestServicesSubcommands(t *testing.T) {
	subs := map[string]bool{}
	for _, cmd := range servicesCmd.Commands() {
		subs[cmd.Name()] = true
	}
	for _, name := range []string{"list", "status", "logs", "action", "restart-all", "ps", "crontab"} {
		assert.True(t, subs[name], "services %s not registered", name)
	}
}

func TestCrontabPath(t *testing.T) {
	cfg := &config.Config{RootCrontab: "/var/spool/cron/crontabs/root"}

	path, err := crontabPath(cfg, "root")
	require.NoError(t, err)
	assert.Equal(t, "/var/spool/cron/crontabs/root", path)

	_, err = crontabPath(cfg, "user")
	assert.ErrorContains(t, err, "not configured")

	_, err = crontabPath(cfg, "system")
	assert.ErrorContains(t, err, "unknown crontab")
}

func TestMailSubcommands(t *testing.T) {
	subs := map[string]bool{}
	for _, cmd := range mailCmd.Commands() {
		subs[cmd.Name()] = true
	}
	require.True(t, subs["sync"])
	require.True(t, subs["dmarc"])
}
