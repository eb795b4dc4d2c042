package main

import (
	"context"
	"fmt"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/config"
	"github.com/stratus-ops/stratus/mailroom"
	"github.com/stratus-ops/stratus/orchestrator"
	"github.com/stratus-ops/stratus/providers/aws"
	"github.com/stratus-ops/stratus/sysd"
)

// serviceName is the systemd unit this binary runs under.
const serviceName = "stratus"

// app bundles the wired subsystems one command needs. Fields not needed
// by a command stay nil.
type app struct {
	cfg      *config.Config
	adapter  *aws.Adapter
	store    *catalog.Store
	orch     *orchestrator.Orchestrator
	mailroom *mailroom.Mailroom
	sup      *sysd.Supervisor
}

// buildApp wires config, adapter and catalog. withMail additionally
// requires the inbound-email bucket to be configured.
func buildApp(ctx context.Context, withMail bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	adapter, err := aws.New(ctx, aws.Config{Region: cfg.AWSRegion, OwnerID: cfg.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("create cloud adapter: %w", err)
	}

	store, err := catalog.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	sup := sysd.New(cfg.SystemdServices, serviceName)
	orch := orchestrator.New(adapter, orchestrator.Config{
		MaxSpotPrice:  cfg.MaxSpotPrice,
		UbuntuRelease: cfg.UbuntuRelease,
		ScriptDir:     cfg.ScriptDirectory,
	}).WithCatalog(store, store).WithSupervisor(sup)

	a := &app{cfg: cfg, adapter: adapter, store: store, orch: orch, sup: sup}

	if cfg.MailEnabled() {
		a.mailroom = mailroom.New(store, adapter, cfg.InboundEmailBucket)
		a.orch.WithMailStore(store)
	} else if withMail {
		return nil, fmt.Errorf("INBOUND_EMAIL_BUCKET is not configured")
	}
	return a, nil
}

func (a *app) Close() {
	a.orch.Close()
	a.store.Close()
}
