// Package config handles host configuration loading for the widget binaries.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Fields missing from the file keep the values from Default.
//
// # Configuration File
//
// Default location:
//
//  1. Path from COVEN_WIDGET_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/coven/widget.yaml (~/.config when unset)
//
// A missing file is not an error for LoadOrDefault.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	speech:
//	  openai_api_key: "${OPENAI_API_KEY}"
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	widget:
//	  request_timeout: "30s"
//	backend:
//	  dedupe_ttl: "5m"
//
// # Configuration Sections
//
// Widget instance:
//
//	widget:
//	  public_key: "pk_live_123"
//	  origin: "https://shop.example.com"
//	  api_base: ""              # optional override
//
// Cached tenant configuration:
//
//	storage:
//	  driver: "sqlite"          # memory, sqlite or redis
//	  path: "~/.local/share/coven/widget.db"
//	  redis:
//	    addr: "localhost:6379"
//	    ttl: "24h"
//
// Logging:
//
//	logging:
//	  level: "debug"            # debug, info, warn, error
//	  format: "text"            # text or json
//
// Preview server, speech and development backend:
//
//	preview:
//	  http_addr: "127.0.0.1:8090"
//	speech:
//	  openai_api_key: "${OPENAI_API_KEY}"
//	backend:
//	  http_addr: "127.0.0.1:8000"
//	  tenants_dir: "./tenants"
package config
