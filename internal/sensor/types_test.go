package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name      string
		sel       Selector
		wantValid bool
		wantStr   string
	}{
		{"zero value", Selector{}, false, "none"},
		{"by id", ByID(7), true, "id=7"},
		{"by id zero", ByID(0), false, "id=0"},
		{"by eui normalised", ByEUI("70:b3:d5:7e"), true, "dev_eui=70B3D57E"},
		{"by eui empty after normalising", ByEUI("::"), false, "dev_eui="},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValid, tt.sel.Valid())
			assert.Equal(t, tt.wantStr, tt.sel.String())
		})
	}

	id, ok := ByID(42).ID()
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)

	_, ok = ByID(42).EUI()
	assert.False(t, ok, "ByID selector must not report an EUI")

	eui, ok := ByEUI("ab").EUI()
	assert.True(t, ok)
	assert.Equal(t, "AB", eui)
}

func TestSensor_LinkedAndClone(t *testing.T) {
	app, dev := "granja-app", "ith-01"
	th := 72.5
	s := &Sensor{ID: 1, TTNAppID: &app, Threshold: &th}

	assert.False(t, s.Linked(), "no device id")
	s.TTNDeviceID = &dev
	assert.True(t, s.Linked())

	cpy := s.Clone()
	*cpy.TTNAppID = "other"
	*cpy.Threshold = 10
	assert.Equal(t, "granja-app", *s.TTNAppID, "Clone() shares pointer fields")
	assert.Equal(t, 72.5, *s.Threshold, "Clone() shares pointer fields")

	var nilSensor *Sensor
	assert.Nil(t, nilSensor.Clone())
}
