// internal/data/models.go
package data

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNonFiniteMetric is returned when a snapshot carries NaN or Inf readings.
var ErrNonFiniteMetric = errors.New("non-finite metric value")

// HiveStatus is the display status of a beehive. It is derived by the
// telemetry source and is not used for alerting decisions.
type HiveStatus string

const (
	StatusHealthy  HiveStatus = "healthy"
	StatusWarning  HiveStatus = "warning"
	StatusCritical HiveStatus = "critical"
)

// AlertType names the condition an alert record refers to.
type AlertType string

const (
	AlertTemperature AlertType = "temperature"
	AlertHumidity    AlertType = "humidity"
	AlertWeight      AlertType = "weight"
	AlertPopulation  AlertType = "population"
	AlertActivity    AlertType = "activity"
	AlertVarroa      AlertType = "varroa"
	AlertOther       AlertType = "other"
)

// AlertSeverity is the severity of a stored alert record.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Rank orders severities high > medium > low. Unknown values rank below low.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// AtLeast reports whether s is at or above the given floor.
func (s AlertSeverity) AtLeast(floor AlertSeverity) bool {
	return s.Rank() >= floor.Rank()
}

// ParseSeverity converts a config string into an AlertSeverity.
func ParseSeverity(s string) (AlertSeverity, error) {
	switch sev := AlertSeverity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, nil
	}
	return "", fmt.Errorf("unknown alert severity %q", s)
}

type Coordinates struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Metrics holds one reading of every monitored value.
type Metrics struct {
	Temperature        float64 `json:"temperature" yaml:"temperature"`               // Celsius
	Humidity           float64 `json:"humidity" yaml:"humidity"`                     // percent
	Weight             float64 `json:"weight" yaml:"weight"`                         // kg
	PopulationEstimate int     `json:"populationEstimate" yaml:"populationEstimate"` // bees
	VarroaMiteLevel    float64 `json:"varroaMiteLevel" yaml:"varroaMiteLevel"`       // percent
	QueenActivity      float64 `json:"queenActivity" yaml:"queenActivity"`           // 0-100
	EntranceActivity   float64 `json:"entranceActivity" yaml:"entranceActivity"`     // 0-100
}

// Validate rejects NaN and Inf values. Range clamping is the producer's job.
func (m Metrics) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"temperature", m.Temperature},
		{"humidity", m.Humidity},
		{"weight", m.Weight},
		{"varroaMiteLevel", m.VarroaMiteLevel},
		{"queenActivity", m.QueenActivity},
		{"entranceActivity", m.EntranceActivity},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s: %w", f.name, ErrNonFiniteMetric)
		}
	}
	return nil
}

// HistoryPoint is one entry of a hive's trend history.
type HistoryPoint struct {
	Date             time.Time `json:"date"`
	Temperature      float64   `json:"temperature"`
	Humidity         float64   `json:"humidity"`
	Weight           float64   `json:"weight"`
	EntranceActivity float64   `json:"entranceActivity"`
}

// AlertRecord is an alert attached to a beehive by the telemetry source or
// by an operator. The evaluator only ever reads these.
type AlertRecord struct {
	ID        string        `json:"id" yaml:"id"`
	Type      AlertType     `json:"type" yaml:"type"`
	Severity  AlertSeverity `json:"severity" yaml:"severity"`
	Message   string        `json:"message" yaml:"message"`
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Resolved  bool          `json:"resolved" yaml:"resolved"`
}

// Beehive is a snapshot of one hive at a point in time.
type Beehive struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Location    string         `json:"location" yaml:"location"`
	Coordinates Coordinates    `json:"coordinates" yaml:"coordinates"`
	Status      HiveStatus     `json:"status" yaml:"status"`
	LastUpdated time.Time      `json:"lastUpdated" yaml:"lastUpdated"`
	Metrics     Metrics        `json:"metrics" yaml:"metrics"`
	History     []HistoryPoint `json:"history,omitempty" yaml:"-"`
	Alerts      []AlertRecord  `json:"alerts" yaml:"alerts"`
}

// UnresolvedAlerts returns the hive's alert records that are still open.
func (b Beehive) UnresolvedAlerts() []AlertRecord {
	var open []AlertRecord
	for _, a := range b.Alerts {
		if !a.Resolved {
			open = append(open, a)
		}
	}
	return open
}

// Clone returns a copy that shares no slices with b.
func (b Beehive) Clone() Beehive {
	c := b
	c.History = append([]HistoryPoint(nil), b.History...)
	c.Alerts = append([]AlertRecord(nil), b.Alerts...)
	return c
}

type Statistics struct {
	TotalBeehives          int     `json:"totalBeehives"`
	HealthyBeehives        int     `json:"healthyBeehives"`
	WarningBeehives        int     `json:"warningBeehives"`
	CriticalBeehives       int     `json:"criticalBeehives"`
	AverageTemperature     float64 `json:"averageTemperature"`
	AverageHumidity        float64 `json:"averageHumidity"`
	AverageVarroaMiteLevel float64 `json:"averageVarroaMiteLevel"`
}

// ApiaryData is the full telemetry structure produced on every refresh.
type ApiaryData struct {
	ApiaryName string     `json:"apiaryName" yaml:"apiaryName"`
	Location   string     `json:"location" yaml:"location"`
	Beehives   []Beehive  `json:"beehives" yaml:"beehives"`
	Statistics Statistics `json:"statistics" yaml:"-"`
}

// Find returns the hive with the given id.
func (a ApiaryData) Find(id string) (Beehive, bool) {
	for _, b := range a.Beehives {
		if b.ID == id {
			return b, true
		}
	}
	return Beehive{}, false
}

// ByID indexes the apiary's hives by id.
func (a ApiaryData) ByID() map[string]Beehive {
	out := make(map[string]Beehive, len(a.Beehives))
	for _, b := range a.Beehives {
		out[b.ID] = b
	}
	return out
}
