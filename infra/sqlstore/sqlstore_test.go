package sqlstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/factory"
	"github.com/kilianp07/ambudispatch/core/model"
	"github.com/kilianp07/ambudispatch/core/store"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateFetchUpdate(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	a, err := s.Create(ctx, store.Units, store.Record{"Name": "Unit A", "status": "Available", "lat": 12.97, "lon": 77.59})
	require.NoError(t, err)
	b, err := s.Create(ctx, store.Units, store.Record{"Name": "Unit B", "status": "Busy"})
	require.NoError(t, err)
	assert.Equal(t, "1", a[store.FieldID])
	assert.Equal(t, "2", b[store.FieldID])

	r, err := s.Create(ctx, store.Requests, store.Record{"id": "ignored", "patient_name": "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "1", r[store.FieldID], "ids are per table")

	rows, err := s.Fetch(ctx, store.Units)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	u := store.ParseUnit(rows[0])
	assert.Equal(t, model.UnitAvailable, u.Status)
	require.NotNil(t, u.Location)
	assert.InDelta(t, 77.59, u.Location.Longitude, 1e-9)

	up, err := s.Update(ctx, store.Units, "2", store.Record{"status": "Available", "id": "99"})
	require.NoError(t, err)
	assert.Equal(t, "Available", up["status"])
	assert.Equal(t, "Unit B", up["Name"])
	assert.Equal(t, "2", up[store.FieldID])

	rows, err = s.Fetch(ctx, store.Units)
	require.NoError(t, err)
	assert.Equal(t, "Available", rows[1]["status"])
}

func TestUpdateUnknown(t *testing.T) {
	s := openMemory(t)
	_, err := s.Update(context.Background(), store.Requests, "5", store.Record{"status": "Completed"})
	require.ErrorIs(t, err, store.ErrRecordNotFound)
	_, err = s.Update(context.Background(), store.Requests, "abc", store.Record{"status": "Completed"})
	require.ErrorIs(t, err, store.ErrRecordNotFound)
}

func TestClosedDatabaseIsStoreUnavailable(t *testing.T) {
	s, err := Open(Config{DSN: "file:closed?mode=memory&cache=shared"})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Fetch(context.Background(), store.Units)
	require.ErrorIs(t, err, model.ErrStoreUnavailable)
}

func TestRebind(t *testing.T) {
	q := `UPDATE records SET data = ? WHERE tbl = ? AND id = ?`
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `UPDATE records SET data = $1 WHERE tbl = $2 AND id = $3`, rebind(DriverPostgres, q))
}

func TestOpenValidation(t *testing.T) {
	_, err := Open(Config{Driver: DriverPostgres})
	require.Error(t, err)
	_, err = Open(Config{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
}

func TestRegisteredInStoreFactory(t *testing.T) {
	st, err := store.NewStore(factory.ModuleConfig{Type: "sql", Conf: map[string]any{"dsn": "file:factory?mode=memory&cache=shared"}})
	require.NoError(t, err)
	assert.IsType(t, &Store{}, st)
}
