// ABOUTME: Per-tenant configuration documents loaded from a directory
// ABOUTME: Accepts YAML or JSON files named after the tenant public key

package backend

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/2389/coven-widget/internal/tenant"
)

// Errors returned by Tenants.Document.
var (
	ErrUnknownTenant = errors.New("unknown tenant")
	ErrInvalidKey    = errors.New("invalid tenant key")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

var documentExts = []string{".yaml", ".yml", ".json"}

// Tenants serves tenant documents from dir. Files are read on every request
// so edits show up on the next widget refresh.
type Tenants struct {
	dir string
}

// NewTenants creates a document source rooted at dir.
func NewTenants(dir string) *Tenants {
	return &Tenants{dir: dir}
}

// Document returns the document for key as a generic map.
// The demo key falls back to an empty document when it has no file.
func (t *Tenants) Document(key string) (map[string]any, error) {
	if !keyPattern.MatchString(key) {
		return nil, ErrInvalidKey
	}

	for _, ext := range documentExts {
		path := filepath.Join(t.dir, key+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		doc := map[string]any{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return doc, nil
	}

	if key == tenant.DemoKey {
		return map[string]any{}, nil
	}
	return nil, ErrUnknownTenant
}
