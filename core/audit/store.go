// Package audit keeps an append-only trail of dispatch decisions and
// lifecycle transitions.
package audit

import (
	"context"
	"time"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/model"
)

// Kind distinguishes audit entries.
type Kind string

const (
	KindDispatch   Kind = "dispatch"
	KindTransition Kind = "transition"
)

// LogRecord is one audit entry. Dispatch entries carry the target, the
// candidates considered and the chosen unit; transition entries carry From/To.
type LogRecord struct {
	Timestamp     time.Time          `json:"timestamp"`
	Kind          Kind               `json:"kind"`
	DispatchID    string             `json:"dispatch_id,omitempty"`
	RequestID     string             `json:"request_id,omitempty"`
	Target        *model.Coordinate  `json:"target,omitempty"`
	Address       string             `json:"address,omitempty"`
	Candidates    []model.RankedUnit `json:"candidates,omitempty"`
	ChosenUnitID  string             `json:"chosen_unit_id,omitempty"`
	EligibleUnits int                `json:"eligible_units"`
	From          string             `json:"from,omitempty"`
	To            string             `json:"to,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// Mentions reports whether the record involves unitID as chosen unit or candidate.
func (r LogRecord) Mentions(unitID string) bool {
	if r.ChosenUnitID == unitID {
		return true
	}
	for _, c := range r.Candidates {
		if c.UnitID == unitID {
			return true
		}
	}
	return false
}

// LogQuery filters records. Zero fields match everything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	UnitID    string
	RequestID string
	Kind      Kind
	Limit     int
}

// Match applies the query to a single record, ignoring Limit.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	if q.UnitID != "" && !r.Mentions(q.UnitID) {
		return false
	}
	return true
}

// LogStore persists audit records.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

var storeRegistry = factory.NewRegistry[LogStore]()

func init() {
	storeRegistry.MustRegister("memory", func(map[string]any) (LogStore, error) {
		return NewMemoryStore(), nil
	})
	storeRegistry.MustRegister("jsonl", func(conf map[string]any) (LogStore, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "audit.jsonl"
		}
		return NewJSONLStore(c.Path)
	})
	storeRegistry.MustRegister("sqlite", func(conf map[string]any) (LogStore, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			c.Path = "audit.db"
		}
		return NewSQLiteStore(c.Path)
	})
}

// NewLogStore builds the configured audit backend. An empty type selects memory.
func NewLogStore(cfg factory.ModuleConfig) (LogStore, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return storeRegistry.Create(cfg)
}

func limit(res []LogRecord, n int) []LogRecord {
	if n > 0 && len(res) > n {
		return res[len(res)-n:]
	}
	return res
}
