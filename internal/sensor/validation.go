package sensor

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	maxNameLength  = 100
	maxLabelLength = 100
)

// ValidateMode checks that m is a known operating mode.
func ValidateMode(m Mode) error {
	switch m {
	case ModeAuto, ModeManual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, string(m))
	}
}

// ValidateName checks the display name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateThreshold checks an optional ITH alert threshold. Any finite
// value is stored as given; NaN and infinities are refused.
func ValidateThreshold(t *float64) error {
	if t == nil {
		return nil
	}
	if math.IsNaN(*t) || math.IsInf(*t, 0) {
		return fmt.Errorf("%w: %v is not a finite number", ErrInvalidThreshold, *t)
	}
	return nil
}

// ValidatePatch checks the fields a metadata update would write.
func ValidatePatch(p MetadataPatch) error {
	if p.Mode != nil && *p.Mode != "" {
		if err := ValidateMode(*p.Mode); err != nil {
			return err
		}
	}
	for _, label := range []*string{p.Model, p.Area, p.Zone, p.Room} {
		if label != nil && utf8.RuneCountInString(*label) > maxLabelLength {
			return fmt.Errorf("%w: exceeds %d characters", ErrInvalidLabel, maxLabelLength)
		}
	}
	return ValidateThreshold(p.Threshold)
}

// ValidateSensor checks a sensor before creation.
func ValidateSensor(s *Sensor) error {
	if err := ValidateName(s.Name); err != nil {
		return err
	}
	if err := ValidateMode(s.Mode); err != nil {
		return err
	}
	return ValidateThreshold(s.Threshold)
}
