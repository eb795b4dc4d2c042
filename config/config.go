// Package config loads the console configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full configuration surface of the console.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	AWSRegion string `envconfig:"AWS_REGION_NAME" default:"us-east-1"`
	// OwnerID scopes AMI/snapshot listings to the tenant. When empty those
	// listings return empty results rather than erroring.
	OwnerID string `envconfig:"MY_OWNER_ID"`

	MaxSpotPrice         float64 `envconfig:"MAX_SPOT_PRICE" default:"0.20"`
	DefaultSecurityGroup string  `envconfig:"DEFAULT_SECURITY_GROUP"`
	SpotSecurityGroup    string  `envconfig:"SPOT_SECURITY_GROUP"`
	DefaultKeyName       string  `envconfig:"DEFAULT_KEY_NAME"`

	ScriptDirectory string `envconfig:"SCRIPT_DIRECTORY"`
	UbuntuRelease   string `envconfig:"UBUNTU_RELEASE" default:"bionic-18.04"`

	Host   string `envconfig:"HOST" default:"0.0.0.0"`
	Port   int    `envconfig:"PORT" default:"3096"`
	Domain string `envconfig:"DOMAIN" default:"localhost"`

	// The remote-desktop feature is disabled unless all three are set.
	NovncPath     string `envconfig:"NOVNC_PATH"`
	NovncCertPath string `envconfig:"NOVNC_CERT_PATH"`
	NovncKeyPath  string `envconfig:"NOVNC_KEY_PATH"`

	SecretPath    string `envconfig:"SECRET_PATH"`
	JWTSecretPath string `envconfig:"JWT_SECRET_PATH"`

	SystemdServices []string `envconfig:"SYSTEMD_SERVICES"`

	RootCrontab string `envconfig:"ROOT_CRONTAB" default:"/var/spool/cron/crontabs/root"`
	UserCrontab string `envconfig:"USER_CRONTAB"`

	// InboundEmailBucket enables the mail pipeline when set.
	InboundEmailBucket string `envconfig:"INBOUND_EMAIL_BUCKET"`
}

// Load reads configuration from the environment and fills path defaults
// under the user config directory.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := applyPathDefaults(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyPathDefaults(cfg *Config) error {
	confDir, err := os.UserConfigDir()
	if err != nil {
		return fmt.Errorf("resolve user config dir: %w", err)
	}
	base := filepath.Join(confDir, "stratus")

	if cfg.ScriptDirectory == "" {
		cfg.ScriptDirectory = filepath.Join(base, "scripts")
	}
	if cfg.SecretPath == "" {
		cfg.SecretPath = filepath.Join(base, "secret-file")
	}
	if cfg.JWTSecretPath == "" {
		cfg.JWTSecretPath = filepath.Join(base, "jwt-secret")
	}
	return nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.MaxSpotPrice < 0 {
		return fmt.Errorf("max_spot_price must not be negative (got %v)", c.MaxSpotPrice)
	}
	return nil
}

// NovncEnabled reports whether the remote-desktop launcher has everything
// it needs.
func (c *Config) NovncEnabled() bool {
	return c.NovncPath != "" && c.NovncCertPath != "" && c.NovncKeyPath != ""
}

// MailEnabled reports whether the inbound-email pipeline is configured.
func (c *Config) MailEnabled() bool {
	return c.InboundEmailBucket != ""
}
