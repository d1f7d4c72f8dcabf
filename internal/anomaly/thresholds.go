// internal/anomaly/thresholds.go
package anomaly

import (
	"errors"
	"fmt"
)

// ErrInvalidThresholds is returned by Validate for an inconsistent table.
var ErrInvalidThresholds = errors.New("invalid threshold table")

// RangeThreshold bounds a metric from both sides. Leaving the ideal band
// produces a warning, leaving the critical band a critical issue.
type RangeThreshold struct {
	IdealMin    float64 `mapstructure:"ideal_min" json:"idealMin" yaml:"ideal_min"`
	IdealMax    float64 `mapstructure:"ideal_max" json:"idealMax" yaml:"ideal_max"`
	CriticalMin float64 `mapstructure:"critical_min" json:"criticalMin" yaml:"critical_min"`
	CriticalMax float64 `mapstructure:"critical_max" json:"criticalMax" yaml:"critical_max"`
	Unit        string  `mapstructure:"unit" json:"unit" yaml:"unit"`
}

// LevelThreshold is a one-sided upper bound with a warning and a critical level.
type LevelThreshold struct {
	WarningLevel  float64 `mapstructure:"warning_level" json:"warningLevel" yaml:"warning_level"`
	CriticalLevel float64 `mapstructure:"critical_level" json:"criticalLevel" yaml:"critical_level"`
	Unit          string  `mapstructure:"unit" json:"unit" yaml:"unit"`
}

// DeltaThreshold triggers when the change since the previous reading is
// below CriticalDelta (a negative number).
type DeltaThreshold struct {
	CriticalDelta float64 `mapstructure:"critical_delta" json:"criticalDelta" yaml:"critical_delta"`
	Unit          string  `mapstructure:"unit" json:"unit" yaml:"unit"`
}

// MinimumThreshold triggers when a metric falls below Min.
type MinimumThreshold struct {
	Min  float64 `mapstructure:"min" json:"min" yaml:"min"`
	Unit string  `mapstructure:"unit" json:"unit" yaml:"unit"`
}

// Thresholds is the full rule table. It is built once at startup and never
// mutated afterwards.
type Thresholds struct {
	Temperature      RangeThreshold   `mapstructure:"temperature" json:"temperature" yaml:"temperature"`
	Humidity         RangeThreshold   `mapstructure:"humidity" json:"humidity" yaml:"humidity"`
	Varroa           LevelThreshold   `mapstructure:"varroa" json:"varroa" yaml:"varroa"`
	Weight           DeltaThreshold   `mapstructure:"weight" json:"weight" yaml:"weight"`
	EntranceActivity MinimumThreshold `mapstructure:"entrance_activity" json:"entranceActivity" yaml:"entrance_activity"`
}

// DefaultThresholds returns the stock apiary rules. Humidity has no separate
// warning band: ideal and critical bounds coincide.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Temperature: RangeThreshold{
			IdealMin:    31.5,
			IdealMax:    37.0,
			CriticalMin: 30.0,
			CriticalMax: 38.0,
			Unit:        "°C",
		},
		Humidity: RangeThreshold{
			IdealMin:    50.0,
			IdealMax:    75.0,
			CriticalMin: 50.0,
			CriticalMax: 75.0,
			Unit:        "%",
		},
		Varroa: LevelThreshold{
			WarningLevel:  2.0,
			CriticalLevel: 3.0,
			Unit:          "%",
		},
		Weight: DeltaThreshold{
			CriticalDelta: -1.0,
			Unit:          "kg",
		},
		EntranceActivity: MinimumThreshold{
			Min:  20.0,
			Unit: "activity rate",
		},
	}
}

// Validate checks the ordering invariants of every row.
func (t Thresholds) Validate() error {
	if err := t.Temperature.validate(); err != nil {
		return fmt.Errorf("%w: temperature: %v", ErrInvalidThresholds, err)
	}
	if err := t.Humidity.validate(); err != nil {
		return fmt.Errorf("%w: humidity: %v", ErrInvalidThresholds, err)
	}
	if t.Varroa.WarningLevel >= t.Varroa.CriticalLevel {
		return fmt.Errorf("%w: varroa: warning level %.2f must be below critical level %.2f",
			ErrInvalidThresholds, t.Varroa.WarningLevel, t.Varroa.CriticalLevel)
	}
	if t.Weight.CriticalDelta >= 0 {
		return fmt.Errorf("%w: weight: critical delta %.2f must be negative",
			ErrInvalidThresholds, t.Weight.CriticalDelta)
	}
	return nil
}

func (r RangeThreshold) validate() error {
	switch {
	case r.CriticalMin > r.IdealMin:
		return fmt.Errorf("critical min %.2f above ideal min %.2f", r.CriticalMin, r.IdealMin)
	case r.IdealMin > r.IdealMax:
		return fmt.Errorf("ideal min %.2f above ideal max %.2f", r.IdealMin, r.IdealMax)
	case r.IdealMax > r.CriticalMax:
		return fmt.Errorf("ideal max %.2f above critical max %.2f", r.IdealMax, r.CriticalMax)
	}
	return nil
}
