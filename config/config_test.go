package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://stratus@localhost/stratus")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.Equal(t, 0.20, cfg.MaxSpotPrice)
	assert.Equal(t, "bionic-18.04", cfg.UbuntuRelease)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 3096, cfg.Port)
	assert.Equal(t, "localhost", cfg.Domain)
	assert.NotEmpty(t, cfg.ScriptDirectory)
	assert.NotEmpty(t, cfg.SecretPath)
	assert.False(t, cfg.NovncEnabled())
	assert.False(t, cfg.MailEnabled())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadServicesList(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgresql://stratus@localhost/stratus")
	t.Setenv("SYSTEMD_SERVICES", "nginx,stratus,postgresql")
	t.Setenv("INBOUND_EMAIL_BUCKET", "mail-bucket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"nginx", "stratus", "postgresql"}, cfg.SystemdServices)
	assert.True(t, cfg.MailEnabled())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgresql://x", Port: 70000}
	assert.Error(t, cfg.Validate())
}
