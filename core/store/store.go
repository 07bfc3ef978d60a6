// Package store defines the record store boundary. Rows cross it as loosely
// typed Records and are parsed into strict model types by ParseUnit and
// ParseRequest; nothing past this package sees the raw shape.
package store

import (
	"context"
	"errors"

	"github.com/kilianp07/ambudispatch/core/factory"
)

// Table selects one of the two logical tables.
type Table string

const (
	Units    Table = "units"
	Requests Table = "requests"
)

// Record is a raw row. The id is carried under the "id" key.
type Record map[string]any

// ErrRecordNotFound is returned by Update for an unknown id.
var ErrRecordNotFound = errors.New("record not found")

// Store is an external system of record with list, create and partial update.
// Implementations wrap transport failures in *model.StoreError.
type Store interface {
	Fetch(ctx context.Context, t Table) ([]Record, error)
	Create(ctx context.Context, t Table, fields Record) (Record, error)
	Update(ctx context.Context, t Table, id string, fields Record) (Record, error)
}

var storeRegistry = factory.NewRegistry[Store]()

func init() {
	storeRegistry.MustRegister("memory", func(map[string]any) (Store, error) {
		return NewMemoryStore(), nil
	})
}

// RegisterStore adds a store backend.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore builds the backend named by cfg.Type. An empty type selects memory.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return storeRegistry.Create(cfg)
}
