// ABOUTME: Deep merge of fetched tenant documents over the compiled-in defaults
// ABOUTME: Uses koanf layering so absent or null fields always fall back per key

package tenant

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
)

// ErrNotObject is returned when a document is valid JSON but not an object.
var ErrNotObject = errors.New("tenant document is not a JSON object")

// Merge decodes a fetched JSON document and overlays it on Defaults.
func Merge(doc []byte) (Config, error) {
	var fetched map[string]any
	if err := json.Unmarshal(doc, &fetched); err != nil {
		return Config{}, fmt.Errorf("decoding tenant document: %w", err)
	}
	if fetched == nil {
		return Config{}, ErrNotObject
	}
	return MergeMap(fetched)
}

// MergeMap overlays an already decoded document on Defaults.
func MergeMap(fetched map[string]any) (Config, error) {
	base, err := toMap(Defaults())
	if err != nil {
		return Config{}, fmt.Errorf("encoding defaults: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(base, ""), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(pruneNulls(fetched), ""), nil); err != nil {
		return Config{}, fmt.Errorf("loading tenant document: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling tenant document: %w", err)
	}
	ensureMaps(&cfg)

	return cfg, nil
}

// toMap converts a Config into the generic map form koanf layers.
func toMap(cfg Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// pruneNulls drops null values recursively so they do not shadow defaults.
func pruneNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for key, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[key] = pruneNulls(val)
		default:
			out[key] = val
		}
	}
	return out
}

// ensureMaps replaces nil maps left by empty documents with empty ones.
func ensureMaps(cfg *Config) {
	if cfg.I18n.Strings == nil {
		cfg.I18n.Strings = map[string]string{}
	}
	if cfg.Integrations == nil {
		cfg.Integrations = map[string]any{}
	}
	if cfg.VisibilityRules == nil {
		cfg.VisibilityRules = map[string]any{}
	}
	if cfg.CDN == nil {
		cfg.CDN = map[string]any{}
	}
}
