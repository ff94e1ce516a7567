package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/quireapp/quire"
	"github.com/quireapp/quire/config"
	"github.com/quireapp/quire/database"
	"github.com/quireapp/quire/storage"
	"github.com/quireapp/quire/storage/providers"
)

// stack bundles the wired service with the pieces commands need beyond
// the service itself.
type stack struct {
	service *quire.LibraryService
	health  *storage.HealthTracker
	close   func()
}

// buildStack connects the shard set, constructs the provider gateway and
// wires both into the library service.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	repo, _, closeDB, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	client := &http.Client{Timeout: providers.DefaultTimeout}
	tracker := storage.NewHealthTracker()

	gateway, err := storage.NewGateway(tracker, providers.Resolver(client))
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	serviceCfg := quire.ServiceConfig{
		Providers:      cfg.Providers,
		CleanupTimeout: time.Duration(cfg.Service.CleanupTimeout) * time.Second,
	}
	service, err := quire.NewLibraryService(repo, gateway, serviceCfg)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("create service: %w", err)
	}

	return &stack{service: service, health: tracker, close: closeDB}, nil
}
