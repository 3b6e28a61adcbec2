package library

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", d.AddDays(2).String(), "leap year")

	_, err = ParseDate("28/02/2024")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDaysSince(t *testing.T) {
	due := NewDate(2024, time.March, 15)
	assert.Equal(t, 0, due.DaysSince(due))
	assert.Equal(t, 3, due.AddDays(3).DaysSince(due))
	assert.Equal(t, -14, NewDate(2024, time.March, 1).DaysSince(due))
	// Across the DST change in many zones; dates carry no zone.
	assert.Equal(t, 1, NewDate(2024, time.March, 11).DaysSince(NewDate(2024, time.March, 10)))
}

func TestDateOfDropsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2024, time.March, 1, 23, 30, 0, 0, loc)
	assert.Equal(t, NewDate(2024, time.March, 1), DateOf(late))
	assert.True(t, DateOf(time.Time{}).IsZero())
}

func TestDateScan(t *testing.T) {
	want := NewDate(2024, time.March, 1)
	for name, src := range map[string]any{
		"time":      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		"text":      "2024-03-01",
		"bytes":     []byte("2024-03-01"),
		"timestamp": "2024-03-01T00:00:00Z",
	} {
		t.Run(name, func(t *testing.T) {
			var d Date
			require.NoError(t, d.Scan(src))
			assert.Equal(t, want, d)
		})
	}

	var d Date
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	require.Error(t, d.Scan(42))
}

func TestDateValue(t *testing.T) {
	v, err := NewDate(2024, time.March, 1).Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", v)

	v, err = Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDateJSON(t *testing.T) {
	type row struct {
		Due      Date  `json:"due"`
		Returned *Date `json:"returned"`
	}
	out, err := jsoniter.Marshal(row{Due: NewDate(2024, time.March, 15)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-03-15","returned":null}`, string(out))

	var back row
	require.NoError(t, jsoniter.Unmarshal(out, &back))
	assert.Equal(t, NewDate(2024, time.March, 15), back.Due)
	assert.Nil(t, back.Returned)
}
