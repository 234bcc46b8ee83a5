// ABOUTME: Entry point for the browser preview of the widget runtime
// ABOUTME: Mounts the widget into an HTML host and serves it over HTTP and websocket

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-widget/internal/config"
	"github.com/2389/coven-widget/internal/eventbus"
	"github.com/2389/coven-widget/internal/kvstore"
	"github.com/2389/coven-widget/internal/lifecycle"
	"github.com/2389/coven-widget/internal/logging"
	"github.com/2389/coven-widget/internal/preview"
)

// Version is set at build time.
var version = "dev"

const banner = `
  ___ _____   _____ _ __   __      _(_) __| | __ _  ___| |_
 / __/ _ \ \ / / _ \ '_ \  \ \ /\ / / |/ _' |/ _' |/ _ \ __|
| (_| (_) \ V /  __/ | | |  \ V  V /| | (_| | (_| |  __/ |_
 \___\___/ \_/ \___|_| |_|   \_/\_/ |_|\__,_|\__, |\___|\__|
                                             |___/
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: widget-preview <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Mount the widget and serve the preview page")
		fmt.Println("  config    Print the effective host configuration")
		fmt.Println("  health    Check that the preview server is up")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "config":
		err = runConfig()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.Logging, os.Stderr)

	store, err := kvstore.FromConfig(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hub := preview.NewHub(logger)
	host := preview.NewHost(hub, logger)
	bus := eventbus.New(logger)
	defer bus.Close()

	var client *http.Client
	if cfg.Widget.RequestTimeout > 0 {
		client = &http.Client{Timeout: cfg.Widget.RequestTimeout}
	}

	rt, err := lifecycle.New(lifecycle.Options{
		TenantKey:       cfg.Widget.PublicKey,
		APIBaseOverride: cfg.Widget.APIBase,
		Origin:          cfg.Widget.Origin,
		Host:            host,
		Bus:             bus,
		Store:           store,
		HTTPClient:      client,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Tenant:    %s\n", rt.TenantKey())
	green.Print("    ▶ ")
	fmt.Printf("API:       %s\n", rt.APIBase())
	green.Print("    ▶ ")
	fmt.Printf("Storage:   %s\n", cfg.Storage.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Preview:   http://%s/\n", cfg.Preview.HTTPAddr)
	fmt.Println()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}
	defer rt.Stop()

	srv, err := preview.New(preview.Options{
		Controller:     rt,
		Host:           host,
		Hub:            hub,
		Bus:            bus,
		AllowedOrigins: cfg.Preview.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("creating preview server: %w", err)
	}

	logger.Info("starting widget-preview",
		"config", configPath,
		"http_addr", cfg.Preview.HTTPAddr,
		"tenant_key", rt.TenantKey(),
	)
	return srv.Run(ctx, cfg.Preview.HTTPAddr)
}

func runConfig() error {
	configPath := config.DefaultPath()
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Printf("config:          %s\n", configPath)
	fmt.Printf("public_key:      %s\n", cfg.Widget.PublicKey)
	fmt.Printf("api_base:        %s\n", cfg.Widget.APIBase)
	fmt.Printf("origin:          %s\n", cfg.Widget.Origin)
	fmt.Printf("request_timeout: %s\n", cfg.Widget.RequestTimeout)
	fmt.Printf("storage:         %s\n", cfg.Storage.Driver)
	fmt.Printf("preview:         %s\n", cfg.Preview.HTTPAddr)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.LoadOrDefault(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/widget", cfg.Preview.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
