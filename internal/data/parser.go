// internal/data/parser.go
package data

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrMissingBeehiveID = errors.New("reading has no beehive id")
	ErrNoMetrics        = errors.New("reading has no known metrics")
)

// Reading is a partial metric update for one hive, as posted by a sensor
// bridge to the ingest endpoint.
type Reading struct {
	BeehiveID string             `json:"beehiveId"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// metric keys accepted on ingest
var knownMetrics = map[string]func(*Metrics, float64){
	"temperature":        func(m *Metrics, v float64) { m.Temperature = v },
	"humidity":           func(m *Metrics, v float64) { m.Humidity = v },
	"weight":             func(m *Metrics, v float64) { m.Weight = v },
	"varroaMiteLevel":    func(m *Metrics, v float64) { m.VarroaMiteLevel = v },
	"queenActivity":      func(m *Metrics, v float64) { m.QueenActivity = v },
	"entranceActivity":   func(m *Metrics, v float64) { m.EntranceActivity = v },
	"populationEstimate": func(m *Metrics, v float64) { m.PopulationEstimate = int(v) },
}

// Parse decodes a raw ingest payload. The hive id may be given as
// "beehiveId", "hive_id", "sensor_id" or "device"; every other numeric key
// that names a known metric is collected. Non-finite values are rejected here
// so nothing downstream has to sanitize.
func Parse(raw []byte, now time.Time) (*Reading, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}

	r := &Reading{Timestamp: now, Values: make(map[string]float64)}

	for _, key := range []string{"beehiveId", "hive_id", "sensor_id", "device"} {
		if id, ok := payload[key].(string); ok && id != "" {
			r.BeehiveID = id
			break
		}
	}
	if r.BeehiveID == "" {
		return nil, ErrMissingBeehiveID
	}

	// metrics may be nested under "metrics" or sit at the top level
	source := payload
	if nested, ok := payload["metrics"].(map[string]interface{}); ok {
		source = nested
	}
	for key, value := range source {
		if _, known := knownMetrics[key]; !known {
			continue
		}
		f, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("metric %s: expected number, got %T", key, value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%s: %w", key, ErrNonFiniteMetric)
		}
		r.Values[key] = f
	}
	if len(r.Values) == 0 {
		return nil, ErrNoMetrics
	}

	if tsStr, ok := payload["timestamp"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			r.Timestamp = t
		}
	}

	return r, nil
}

// Apply overlays the reading on m and validates the result.
func (r *Reading) Apply(m Metrics) (Metrics, error) {
	for key, v := range r.Values {
		knownMetrics[key](&m, v)
	}
	if err := m.Validate(); err != nil {
		return Metrics{}, err
	}
	return m, nil
}
