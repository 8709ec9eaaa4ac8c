package measurement

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name    string
		temp    any
		hum     any
		ith     any
		wantErr bool
	}{
		{"typical", 24.5, 61.0, 72.3, false},
		{"lower bounds inclusive", -40.0, 0.0, 0.0, false},
		{"upper bounds inclusive", 85.0, 100.0, 120.0, false},
		{"integers", 25, 60, 70, false},
		{"json numbers", json.Number("25.1"), json.Number("60"), json.Number("71.9"), false},
		{"temperature below", -40.01, 50.0, 70.0, true},
		{"temperature above", 85.01, 50.0, 70.0, true},
		{"humidity below", 20.0, -0.1, 70.0, true},
		{"humidity above", 20.0, 100.5, 70.0, true},
		{"ith below", 20.0, 50.0, -1.0, true},
		{"ith above", 20.0, 50.0, 120.1, true},
		{"nan", math.NaN(), 50.0, 70.0, true},
		{"inf", 20.0, math.Inf(1), 70.0, true},
		{"string value", "25", 50.0, 70.0, true},
		{"missing value", 25.0, nil, 70.0, true},
		{"bool value", 25.0, 50.0, true, true},
		{"bad json number", json.Number("abc"), 50.0, 70.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseReading(tt.temp, tt.hum, tt.ith)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidReading)
				assert.Zero(t, r, "no partial reading on error")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseReading_Values(t *testing.T) {
	r, err := ParseReading(json.Number("24.5"), 61, float32(72.5))
	require.NoError(t, err)
	assert.Equal(t, Reading{Temperature: 24.5, Humidity: 61, ITH: 72.5}, r)
}
