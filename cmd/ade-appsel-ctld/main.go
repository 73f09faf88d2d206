package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/0xADE/ade-appsel/internal/catalog"
	"github.com/0xADE/ade-appsel/internal/config"
	"github.com/0xADE/ade-appsel/internal/filter"
	"github.com/0xADE/ade-appsel/internal/platform/adb"
	"github.com/0xADE/ade-appsel/internal/prefs"
	"github.com/0xADE/ade-appsel/internal/selector"
	"github.com/0xADE/ade-appsel/server"
)

func main() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := os.MkdirAll(filepath.Dir(cfg.UnixSocket()), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create socket directory: %v\n", err)
		os.Exit(1)
	}
	lock := flock.New(cfg.UnixSocket() + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to acquire process lock: %v\n", err)
		os.Exit(1)
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "Another ade-appsel-ctld instance is already running\n")
		os.Exit(1)
	}
	defer lock.Unlock()

	store, err := prefs.NewStoreWithDir(cfg.DataDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open preferences: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	filterFunc, err := filter.NewCached(cfg.FilterCache())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create filter: %v\n", err)
		os.Exit(1)
	}

	device := adb.NewDevice(adb.ExecRunner{Bin: cfg.Adb(), Serial: cfg.Serial()})

	open := func(ctx context.Context, req selector.Request, notifier selector.Notifier) *selector.Controller {
		// The collator follows the rc locale, so it is picked per session
		builder := catalog.NewBuilder(device, store, catalog.NewCollator(cfg.Locale()), catalog.Options{
			Self:    cfg.Self(),
			Current: catalog.ProfileID(cfg.Profile()),
			Workers: cfg.Workers(),
		})
		return selector.New(ctx, req, builder, store,
			selector.WithActions(device),
			selector.WithNotifier(notifier),
			selector.WithFilter(filterFunc),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.NewServer(cfg.UnixSocket(), open, cfg.ListLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("ade-appsel-ctld started")

	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		}
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("ade-appsel-ctld stopped")
}
