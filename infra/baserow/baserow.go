// Package baserow implements store.Store on the Baserow REST row API.
package baserow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/store"
	"github.com/kilianp07/ambudispatch/infra/httpx"
)

// DefaultURL is the hosted Baserow row endpoint.
const DefaultURL = "https://api.baserow.io/api/database/rows/table"

// Config selects the two tables by numeric id.
type Config struct {
	URL           string        `json:"url"`
	Token         string        `json:"token"`
	UnitsTable    string        `json:"units_table"`
	RequestsTable string        `json:"requests_table"`
	PageSize      int           `json:"page_size"`
	Timeout       time.Duration `json:"timeout"`
}

func (c Config) Validate() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.UnitsTable == "" {
		missing = append(missing, "units_table")
	}
	if c.RequestsTable == "" {
		missing = append(missing, "requests_table")
	}
	if len(missing) > 0 {
		return fmt.Errorf("baserow: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Store reads and writes rows with user field names.
type Store struct {
	baseURL  string
	tables   map[store.Table]string
	pageSize int
	http     *httpx.Client
}

var _ store.Store = (*Store)(nil)

func init() {
	store.RegisterStore("baserow", func(conf map[string]any) (store.Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c)
	})
}

// New validates cfg and returns a Store.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(cfg.URL, "/")
	if base == "" {
		base = DefaultURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	return &Store{
		baseURL:  base,
		tables:   map[store.Table]string{store.Units: cfg.UnitsTable, store.Requests: cfg.RequestsTable},
		pageSize: cfg.PageSize,
		http: httpx.New(httpx.Options{
			Provider: "baserow",
			Timeout:  cfg.Timeout,
			Headers:  map[string]string{"Authorization": "Token " + cfg.Token},
		}),
	}, nil
}

type page struct {
	Next    *string        `json:"next"`
	Results []store.Record `json:"results"`
}

func (s *Store) tableURL(t store.Table, id string) (string, error) {
	tid, ok := s.tables[t]
	if !ok {
		return "", fmt.Errorf("unknown table %q", t)
	}
	u := s.baseURL + "/" + url.PathEscape(tid) + "/"
	if id != "" {
		u += url.PathEscape(id) + "/"
	}
	return u, nil
}

func (s *Store) call(ctx context.Context, method, endpoint string, body []byte, out any) error {
	makeReq := func() (*http.Request, error) {
		if body != nil {
			return s.http.NewRequest(ctx, method, endpoint, bytes.NewReader(body))
		}
		return s.http.NewRequest(ctx, method, endpoint, nil)
	}
	do := s.http.Do
	if method == http.MethodPost {
		// A retried create can write a second request row holding the same unit.
		do = s.http.DoOnce
	}
	resp, err := do(ctx, makeReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(out)
}

// Fetch follows the next links until the table is exhausted.
func (s *Store) Fetch(ctx context.Context, t store.Table) ([]store.Record, error) {
	base, err := s.tableURL(t, "")
	if err != nil {
		return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
	}
	next := fmt.Sprintf("%s?user_field_names=true&size=%d", base, s.pageSize)
	var out []store.Record
	for next != "" {
		var p page
		if err := s.call(ctx, http.MethodGet, next, nil, &p); err != nil {
			return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
		}
		for _, r := range p.Results {
			out = append(out, normalize(r))
		}
		next = ""
		if p.Next != nil && *p.Next != "" {
			if err := s.sameOrigin(*p.Next); err != nil {
				return nil, &model.StoreError{Op: "fetch", Table: string(t), Err: err}
			}
			next = *p.Next
		}
	}
	return out, nil
}

// sameOrigin rejects pagination links pointing away from the configured
// instance, which would otherwise receive the API token.
func (s *Store) sameOrigin(link string) error {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return err
	}
	u, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("next link: %w", err)
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return fmt.Errorf("next link %s leaves %s://%s", u.Redacted(), base.Scheme, base.Host)
	}
	return nil
}

// Create inserts a row and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, t store.Table, fields store.Record) (store.Record, error) {
	return s.write(ctx, "create", http.MethodPost, t, "", fields)
}

// Update patches the given fields of row id.
func (s *Store) Update(ctx context.Context, t store.Table, id string, fields store.Record) (store.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", store.ErrRecordNotFound)
	}
	return s.write(ctx, "update", http.MethodPatch, t, id, fields)
}

func (s *Store) write(ctx context.Context, op, method string, t store.Table, id string, fields store.Record) (store.Record, error) {
	endpoint, err := s.tableURL(t, id)
	if err != nil {
		return nil, &model.StoreError{Op: op, Table: string(t), Err: err}
	}
	body := make(store.Record, len(fields))
	for k, v := range fields {
		if k != store.FieldID {
			body[k] = v
		}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", t, err)
	}
	var rec store.Record
	if err := s.call(ctx, method, endpoint+"?user_field_names=true", payload, &rec); err != nil {
		if httpx.IsStatus(err, http.StatusNotFound) && id != "" {
			return nil, fmt.Errorf("%w: %s %s", store.ErrRecordNotFound, t, id)
		}
		return nil, &model.StoreError{Op: op, Table: string(t), Err: err}
	}
	return normalize(rec), nil
}

// normalize turns the numeric Baserow id into the string form used everywhere else.
func normalize(r store.Record) store.Record {
	switch id := r[store.FieldID].(type) {
	case json.Number:
		r[store.FieldID] = id.String()
	case nil:
	default:
		r[store.FieldID] = fmt.Sprint(id)
	}
	return r
}
