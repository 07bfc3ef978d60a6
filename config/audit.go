package config

import (
	"fmt"

	"github.com/kilianp07/ambudispatch/core/factory"
)

// AuditConfig defines where dispatch decisions are recorded.
type AuditConfig struct {
	// Backend selects the store type: "memory", "jsonl" or "sqlite".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// Token guards GET /api/audit with a bearer token when set.
	Token string `json:"token"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" && c.Backend != "memory" {
		c.Path = "audit." + map[string]string{"jsonl": "jsonl", "sqlite": "db"}[c.Backend]
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// Module converts the section into a factory config for audit.NewLogStore.
func (c AuditConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Backend, Conf: map[string]any{"path": c.Path}}
}
