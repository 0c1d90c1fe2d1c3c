package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/dusk-indust/jitcap/internal/capability"
	"gopkg.in/yaml.v3"
)

// Catalog is the on-disk seed format: a YAML document with a list of
// capabilities.
//
//	capabilities:
//	  - name: finance_tool
//	    description: Access real-time stock prices
//	    origin: mcp+stdio://echo/mock-finance-server
//	    category: Financial
type Catalog struct {
	Capabilities []capability.Metadata `yaml:"capabilities"`
}

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("registry: parse catalog: %w", err)
	}
	for i, m := range c.Capabilities {
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("registry: catalog entry %d: %w", i, err)
		}
	}
	return &c, nil
}

// Seed registers every catalog entry into s. Later entries with a repeated
// name replace earlier ones.
func Seed(ctx context.Context, s Store, c *Catalog) error {
	for _, m := range c.Capabilities {
		if err := s.Register(ctx, m); err != nil {
			return fmt.Errorf("registry: seed %s: %w", m.Name, err)
		}
	}
	return nil
}
