package fleet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/ambudispatch/core/geo"
	"github.com/kilianp07/ambudispatch/core/model"
)

func TestSummarize(t *testing.T) {
	a := model.Coordinate{Latitude: 12.97, Longitude: 77.59}
	b := model.Coordinate{Latitude: 12.90, Longitude: 77.60}
	units := []model.Unit{
		{ID: "1", Status: model.UnitAvailable, Location: &a},
		{ID: "2", Status: model.UnitAvailable, Location: &b},
		{ID: "3", Status: model.UnitBusy, Location: &a},
		{ID: "4", Status: model.UnitOutOfService},
	}
	reqs := []model.EmergencyRequest{
		{ID: "10", Status: model.StatusPending, AssignedUnitID: "2", Location: a},
		{ID: "11", Status: model.StatusInProgress, AssignedUnitID: "3", Location: a},
		{ID: "12", Status: model.StatusPending, Location: a},
		{ID: "13", Status: model.StatusCompleted, AssignedUnitID: "1", Location: b},
	}
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	ov := Summarize(units, reqs, now)

	assert.Equal(t, 4, ov.TotalUnits)
	assert.Equal(t, 1, ov.AvailableUnits, "unit 2 is held by an active request")
	assert.Equal(t, 1, ov.UnlocatedUnits)
	assert.Equal(t, 2, ov.UnitsByStatus[model.UnitAvailable])
	assert.Equal(t, 3, ov.ActiveRequests)
	assert.Equal(t, 1, ov.UnassignedActive)
	assert.Equal(t, 2, ov.RequestsByState[model.StatusPending])
	assert.Equal(t, now, ov.GeneratedAt)

	far := geo.DistanceKm(b, a) * 3
	require.NotNil(t, ov.MeanETAMinutes)
	assert.InDelta(t, far/2, *ov.MeanETAMinutes, 1e-9)
	assert.InDelta(t, 0, *ov.MedianETAMinutes, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	ov := Summarize(nil, nil, time.Time{})
	assert.Zero(t, ov.TotalUnits)
	assert.Nil(t, ov.MeanETAMinutes)
	assert.Nil(t, ov.MedianETAMinutes)
}
