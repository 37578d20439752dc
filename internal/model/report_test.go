package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPoint_Valid(t *testing.T) {
	tests := []struct {
		name  string
		point GeoPoint
		want  bool
	}{
		{"valid point", NewGeoPoint(-79.347015, 43.65107), true},
		{"type omitted", GeoPoint{Coordinates: []float64{10, 10}}, true},
		{"wrong type", GeoPoint{Type: "Polygon", Coordinates: []float64{10, 10}}, false},
		{"one coordinate", GeoPoint{Type: GeoPointType, Coordinates: []float64{10}}, false},
		{"three coordinates", GeoPoint{Type: GeoPointType, Coordinates: []float64{1, 2, 3}}, false},
		{"longitude out of range", NewGeoPoint(181, 0), false},
		{"latitude out of range", NewGeoPoint(0, -91), false},
		{"not a number", NewGeoPoint(math.NaN(), 0), false},
		{"infinite", NewGeoPoint(0, math.Inf(1)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.point.Valid())
		})
	}
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, ReportStatus("open").Valid())
	assert.True(t, SeverityHigh.Valid())
	assert.False(t, Severity("critical").Valid())
	assert.True(t, CategoryWaste.Valid())
	assert.False(t, Category("all").Valid())
}

func TestReport_JSONHidesColumns(t *testing.T) {
	r := Report{Title: "Pothole", Location: NewGeoPoint(-79.347015, 43.65107), Longitude: 1, Latitude: 2}

	payload, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.NotContains(t, decoded, "Longitude")
	location := decoded["location"].(map[string]interface{})
	assert.Equal(t, "Point", location["type"])
	assert.Equal(t, []interface{}{-79.347015, 43.65107}, location["coordinates"])
}
