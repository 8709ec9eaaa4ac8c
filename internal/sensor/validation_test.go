package sensor

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name    string
		patch   MetadataPatch
		wantErr error
	}{
		{"empty", MetadataPatch{}, nil},
		{"manual mode", MetadataPatch{Mode: ptr(ModeManual)}, nil},
		{"empty mode means unchanged", MetadataPatch{Mode: ptr(Mode(""))}, nil},
		{"unknown mode", MetadataPatch{Mode: ptr(Mode("turbo"))}, ErrInvalidMode},
		{"threshold typical", MetadataPatch{Threshold: ptr(75.0)}, nil},
		{"threshold negative stored verbatim", MetadataPatch{Threshold: ptr(-1.0)}, nil},
		{"threshold above reading scale stored verbatim", MetadataPatch{Threshold: ptr(150.0)}, nil},
		{"threshold NaN", MetadataPatch{Threshold: ptr(math.NaN())}, ErrInvalidThreshold},
		{"threshold infinite", MetadataPatch{Threshold: ptr(math.Inf(1))}, ErrInvalidThreshold},
		{"long label", MetadataPatch{Area: ptr(strings.Repeat("a", maxLabelLength+1))}, ErrInvalidLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch(tt.patch)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateSensor(t *testing.T) {
	assert.NoError(t, ValidateSensor(&Sensor{Name: "Galpón 1", Mode: ModeAuto}))
	assert.ErrorIs(t, ValidateSensor(&Sensor{Name: "  ", Mode: ModeAuto}), ErrInvalidName)
	assert.ErrorIs(t, ValidateSensor(&Sensor{Name: strings.Repeat("x", maxNameLength+1), Mode: ModeAuto}), ErrInvalidName)
	assert.ErrorIs(t, ValidateSensor(&Sensor{Name: "ok", Mode: "off"}), ErrInvalidMode)
	assert.NoError(t, ValidateSensor(&Sensor{Name: "ok", Mode: ModeManual, Threshold: ptr(-5.0)}))
}
