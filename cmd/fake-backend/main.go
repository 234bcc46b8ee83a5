// ABOUTME: Development backend serving tenant configuration and chat replies for the widget
// ABOUTME: Usage: fake-backend [-config path] [-addr 127.0.0.1:8000] [-tenants ./tenants]

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/coven-widget/internal/backend"
	"github.com/2389/coven-widget/internal/config"
	"github.com/2389/coven-widget/internal/dedupe"
	"github.com/2389/coven-widget/internal/logging"
)

// dedupeCapacity bounds how many turns are remembered for retries.
const dedupeCapacity = 10_000

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to the host config file")
	addr := flag.String("addr", "", "Listen address (overrides backend.http_addr)")
	tenants := flag.String("tenants", "", "Tenant document directory (overrides backend.tenants_dir)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *addr, *tenants); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, addr, tenantsDir string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if addr != "" {
		cfg.Backend.HTTPAddr = addr
	}
	if tenantsDir != "" {
		cfg.Backend.TenantsDir = tenantsDir
	}

	logger := logging.Setup(cfg.Logging, os.Stderr)

	var replier backend.Replier = backend.EchoReplier{}
	mode := "echo"
	if cfg.Backend.OpenAIAPIKey != "" {
		replier = backend.NewOpenAIReplier(cfg.Backend.OpenAIAPIKey, cfg.Backend.BaseURL, cfg.Backend.Model, cfg.Backend.SystemPrompt)
		mode = cfg.Backend.Model
	}

	cache := dedupe.New(cfg.Backend.DedupeTTL, dedupeCapacity)
	defer cache.Close()

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Backend.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Tenants:   %s\n", cfg.Backend.TenantsDir)
	green.Print("    ▶ ")
	fmt.Printf("Replies:   %s\n", mode)
	fmt.Println()

	srv := backend.New(backend.Options{
		Tenants: backend.NewTenants(cfg.Backend.TenantsDir),
		Replier: replier,
		Dedupe:  cache,
		Logger:  logger,
	})
	return srv.Run(ctx, cfg.Backend.HTTPAddr)
}
