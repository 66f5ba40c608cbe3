package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/simp-lee/gemfront/internal/catalog"
	"github.com/simp-lee/gemfront/internal/config"
	"github.com/simp-lee/gemfront/internal/pkg"
	"github.com/simp-lee/gemfront/internal/remote"
)

// fetch mounts a controller for the requested view, applies the flags and
// waits for the first page to settle. Logs go to logOut.
func fetch(ctx context.Context, flags *queryFlags, logOut io.Writer) (catalog.Snapshot, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("load config: %w", err)
	}
	if !knownView(cfg, flags.view) {
		return catalog.Snapshot{}, fmt.Errorf("unknown view %q", flags.view)
	}

	log, err := config.SetupLogger(&cfg.Log, logOut)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("setup logger: %w", err)
	}
	defer log.Close()

	client, err := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: config.Duration(cfg.Remote.Timeout, remote.DefaultTimeout),
	})
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("setup remote client: %w", err)
	}
	fetcher, err := catalog.NewHTTPFetcher(client, catalog.Endpoints{
		Listing: cfg.Remote.Endpoints.Listing,
		Search:  cfg.Remote.Endpoints.Search,
	}, remote.BearerHeaders)
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("setup catalog fetcher: %w", err)
	}

	table := cfg.FilterTable()
	q, err := flags.values(table)
	if err != nil {
		return catalog.Snapshot{}, err
	}

	base := context.Background()
	if flags.token != "" {
		base = remote.WithBearer(base, flags.token)
	}
	ctrl, err := catalog.NewController(cfg.ViewDefaults(flags.view), catalog.Options{
		Name:           flags.view,
		Table:          table,
		Fetcher:        fetcher,
		Debounce:       config.Duration(cfg.Catalog.Debounce, catalog.DefaultDebounce),
		RequestTimeout: config.Duration(cfg.Catalog.RequestTimeout, 0),
		BaseContext:    base,
		Logger:         log.Logger,
	})
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("create controller: %w", err)
	}
	defer func() {
		ctrl.Close()
		ctrl.Wait()
	}()

	pkg.Apply(ctrl, pkg.ParseQuery(q, table, pkg.QueryOptions{
		MaxPageSize: cfg.Catalog.MaxPageSize,
		SortFields:  cfg.Catalog.SortFields,
	}))
	ctrl.Mount()

	waitCtx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()
	if err := ctrl.Await(waitCtx); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("wait for inventory: %w", err)
	}

	snap := ctrl.Snapshot()
	if snap.Result.Error != "" {
		return snap, errors.New(snap.Result.Error)
	}
	return snap, nil
}

func knownView(cfg *config.Config, name string) bool {
	if name == "public" || name == "admin" {
		return true
	}
	_, ok := cfg.Catalog.Views[name]
	return ok
}
