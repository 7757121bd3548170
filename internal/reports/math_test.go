package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipborrow-backend/internal/capacity"
)

func at(day, hour int) time.Time { return time.Date(2025, 8, day, hour, 0, 0, 0, time.UTC) }

func ptr(t time.Time) *time.Time { return &t }

// Aug 1 to Aug 11: 240 hours.
var august = capacity.Window{Start: at(1, 0), End: at(11, 0)}

var repairs = []Repair{
	{EquipmentID: "E1", Start: at(2, 0), End: ptr(at(2, 10))},
	{EquipmentID: "E1", Start: at(5, 0), End: ptr(at(5, 4))},
	// started before the range, completed inside it
	{EquipmentID: "E1", Start: time.Date(2025, 7, 31, 20, 0, 0, 0, time.UTC), End: ptr(at(1, 2))},
	// still open
	{EquipmentID: "E1", Start: at(10, 22)},
}

func TestMTTR(t *testing.T) {
	v := MTTR(repairs, august)
	require.NotNil(t, v)
	assert.Equal(t, 6.67, *v)

	assert.Nil(t, MTTR(repairs[3:], august))
	assert.Nil(t, MTTR(nil, august))
}

func TestFailuresAndDowntime(t *testing.T) {
	assert.Equal(t, 3, Failures(repairs, august))
	assert.InDelta(t, 18.0, Downtime(repairs, august, at(11, 8)), 1e-9)
	assert.InDelta(t, 0.0, Downtime(nil, august, at(11, 8)), 1e-9)
}

func TestMTBF(t *testing.T) {
	v := MTBF(repairs, august, at(11, 8))
	require.NotNil(t, v)
	assert.Equal(t, 74.0, *v)

	assert.Nil(t, MTBF(repairs[2:3], august, at(11, 8)), "no failure started in range")
}

var usages = []Usage{
	{EquipmentID: "E1", BorrowerID: "B1", Start: at(1, 0), End: ptr(at(2, 0))},
	{EquipmentID: "E1", BorrowerID: "B2", Start: at(10, 12)},
	{EquipmentID: "E1", BorrowerID: "B3", Start: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		End: ptr(time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC))},
}

func TestUtilization(t *testing.T) {
	now := at(11, 8)
	assert.InDelta(t, 36.0, UsedHours(usages, august, now), 1e-9)
	assert.Equal(t, 7.5, Utilization(usages, august, 2, now))
	assert.Equal(t, 15.0, Utilization(usages, august, 1, now))
	assert.Equal(t, 0.0, Utilization(usages, august, 0, now))
}

func TestUtilizationOfUnfinishedRange(t *testing.T) {
	now := at(10, 18)
	// 30 used hours over the 234 hours elapsed so far.
	assert.Equal(t, 12.82, Utilization(usages, august, 1, now))
	assert.Equal(t, 0.0, Utilization(usages, august, 1, at(1, 0)))
	assert.Equal(t, 0.0, Utilization(usages, august, 1, time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)))
}

func TestOpenUsageCountsUntilNow(t *testing.T) {
	now := at(10, 18)
	assert.InDelta(t, 24.0+6.0, UsedHours(usages, august, now), 1e-9)
}

func TestDistinctBorrowers(t *testing.T) {
	assert.Equal(t, 2, DistinctBorrowers(usages, august, at(11, 8)))
	assert.Equal(t, 0, DistinctBorrowers(nil, august, at(11, 8)))
}
