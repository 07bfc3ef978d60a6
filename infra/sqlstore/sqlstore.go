// Package sqlstore keeps the units and requests tables in a SQL database as
// JSON documents. SQLite (modernc) and PostgreSQL (pgx) are supported.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/store"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config selects the driver and data source.
type Config struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// Store implements store.Store. Ids are sequential per table.
type Store struct {
	db     *sql.DB
	driver string
}

var _ store.Store = (*Store)(nil)

func init() {
	store.RegisterStore("sql", func(conf map[string]any) (store.Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return Open(c)
	})
}

// Open connects and ensures the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.DSN == "" {
		if cfg.Driver != DriverSQLite {
			return nil, errors.New("sqlstore: dsn is required")
		}
		cfg.DSN = "ambudispatch.db"
	}
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	schema := `CREATE TABLE IF NOT EXISTS records (
        tbl TEXT NOT NULL,
        id BIGINT NOT NULL,
        data TEXT NOT NULL,
        PRIMARY KEY (tbl, id)
    )`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db, driver: cfg.Driver}, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) q(query string) string { return rebind(s.driver, query) }

func (s *Store) Fetch(ctx context.Context, t store.Table) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, data FROM records WHERE tbl = ? ORDER BY id`), string(t))
	if err != nil {
		return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
	}
	defer func() { _ = rows.Close() }()
	var res []store.Record
	for rows.Next() {
		var id int64
		var data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
		}
		rec, err := decode(id, data)
		if err != nil {
			return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
	}
	return res, nil
}

func (s *Store) Create(ctx context.Context, t store.Table, fields store.Record) (store.Record, error) {
	var rec store.Record
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE tbl = ?`), string(t)).Scan(&id); err != nil {
			return err
		}
		data, err := encode(fields)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO records (tbl, id, data) VALUES (?, ?, ?)`), string(t), id, data); err != nil {
			return err
		}
		rec, err = decode(id, data)
		return err
	})
	if err != nil {
		return nil, &model.StoreError{Op: "create", Table: string(t), Err: err}
	}
	return rec, nil
}

// Update merges fields into the stored document.
func (s *Store) Update(ctx context.Context, t store.Table, id string, fields store.Record) (store.Record, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q", store.ErrRecordNotFound, t, id)
	}
	var rec store.Record
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx, s.q(`SELECT data FROM records WHERE tbl = ? AND id = ?`), string(t), n).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s %s", store.ErrRecordNotFound, t, id)
		}
		if err != nil {
			return err
		}
		cur, err := decode(n, data)
		if err != nil {
			return err
		}
		for k, v := range fields {
			if k != store.FieldID {
				cur[k] = v
			}
		}
		out, err := encode(cur)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE records SET data = ? WHERE tbl = ? AND id = ?`), out, string(t), n); err != nil {
			return err
		}
		rec = cur
		return nil
	})
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &model.StoreError{Op: "update", Table: string(t), Err: err}
	}
	return rec, nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

func encode(fields store.Record) (string, error) {
	body := make(store.Record, len(fields))
	for k, v := range fields {
		if k != store.FieldID {
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	return string(b), err
}

func decode(id int64, data string) (store.Record, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	rec := store.Record{}
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode row %d: %w", id, err)
	}
	rec[store.FieldID] = strconv.FormatInt(id, 10)
	return rec, nil
}
