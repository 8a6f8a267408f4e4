package main

import (
	"context"
	"fmt"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/engine"
	"github.com/tallyhq/tally/internal/rates"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/storage"
)

// app bundles the collaborators every command needs.
type app struct {
	store    service.Storage
	rates    service.RateLookup
	settings *config.Settings
}

// initApp loads configuration, opens storage and runs migrations.
func initApp(ctx context.Context) (*app, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(settings.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	lookup, err := rates.NewStaticLookup(settings.Rates)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		store:    store,
		rates:    lookup,
		settings: settings,
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

// snapshot loads the consistent view of the user's data that previews and
// budget reports compute over.
func (a *app) snapshot(ctx context.Context) (engine.Snapshot, error) {
	cats, err := a.store.GetCategories(ctx, a.settings.UserID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	tree, err := category.NewTree(cats)
	if err != nil {
		return engine.Snapshot{}, err
	}

	entries, err := a.store.GetEntries(ctx, a.settings.UserID, service.LedgerFilter{})
	if err != nil {
		return engine.Snapshot{}, err
	}

	ruleList, err := a.store.GetActiveRules(ctx, a.settings.UserID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	return engine.Snapshot{
		Tree:    tree,
		Entries: entries,
		Rules:   ruleList,
	}, nil
}
