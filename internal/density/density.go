// Package density converts zone counts into persons per square meter and
// classifies the result into safety tiers.
package density

import (
	"fmt"

	"github.com/crowdeval/crowdeval/pkg/core"
)

// Thresholds are the lower bounds (persons/m²) of the MODERATE, WARNING and
// EMERGENCY tiers. A density equal to a bound belongs to the higher tier.
type Thresholds struct {
	Moderate  float64 `json:"moderate" mapstructure:"moderate"`
	Warning   float64 `json:"warning" mapstructure:"warning"`
	Emergency float64 `json:"emergency" mapstructure:"emergency"`
}

// DefaultThresholds returns the standard crowd safety bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Moderate: 2.0, Warning: 3.5, Emergency: 5.0}
}

// Validate requires positive, strictly increasing bounds.
func (t Thresholds) Validate() error {
	if t.Moderate <= 0 {
		return fmt.Errorf("moderate threshold must be positive, got %g", t.Moderate)
	}
	if t.Warning <= t.Moderate || t.Emergency <= t.Warning {
		return fmt.Errorf("thresholds must be strictly increasing: %g < %g < %g", t.Moderate, t.Warning, t.Emergency)
	}
	return nil
}

// Classify maps a density to its status tier.
func (t Thresholds) Classify(d float64) core.Status {
	switch {
	case d < t.Moderate:
		return core.StatusSafe
	case d < t.Warning:
		return core.StatusModerate
	case d < t.Emergency:
		return core.StatusWarning
	default:
		return core.StatusEmergency
	}
}

// Density returns count/area, or 0 when area is not positive.
func Density(count int, area float64) float64 {
	if area <= 0 {
		return 0
	}
	return float64(count) / area
}

// Classify maps a density to its tier using the default thresholds.
func Classify(d float64) core.Status {
	return DefaultThresholds().Classify(d)
}
