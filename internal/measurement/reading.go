package measurement

import (
	"encoding/json"
	"fmt"
	"math"
)

// Physical bounds for accepted readings (inclusive).
const (
	MinTemperature = -40.0
	MaxTemperature = 85.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
	MinITH         = 0.0
	MaxITH         = 120.0
)

// Reading is one validated sample from a sensor.
type Reading struct {
	Temperature float64 `json:"temperatura"`
	Humidity    float64 `json:"humedad"`
	ITH         float64 `json:"ith"`
}

// ParseReading converts decoded payload values into a Reading.
// All three must be numeric and within bounds; nothing is accepted partially.
func ParseReading(temperature, humidity, ith any) (Reading, error) {
	var r Reading
	var ok bool

	if r.Temperature, ok = toFloat(temperature); !ok {
		return Reading{}, fmt.Errorf("%w: temperatura is not numeric", ErrInvalidReading)
	}
	if r.Humidity, ok = toFloat(humidity); !ok {
		return Reading{}, fmt.Errorf("%w: humedad is not numeric", ErrInvalidReading)
	}
	if r.ITH, ok = toFloat(ith); !ok {
		return Reading{}, fmt.Errorf("%w: ith is not numeric", ErrInvalidReading)
	}

	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the reading against the physical bounds.
func (r Reading) Validate() error {
	if err := checkRange("temperatura", r.Temperature, MinTemperature, MaxTemperature); err != nil {
		return err
	}
	if err := checkRange("humedad", r.Humidity, MinHumidity, MaxHumidity); err != nil {
		return err
	}
	return checkRange("ith", r.ITH, MinITH, MaxITH)
}

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidReading, field, v, lo, hi)
	}
	return nil
}

// toFloat accepts the numeric shapes a JSON decoder can produce.
// Strings, booleans and nil are rejected.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
