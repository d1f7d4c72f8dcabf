// internal/telemetry/source.go
package telemetry

import (
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

var (
	ErrUnknownBeehive = errors.New("unknown beehive")
	ErrUnknownAlert   = errors.New("unknown alert")
)

// Source produces apiary snapshots. Every call returns fresh values; callers
// may keep earlier snapshots around as history.
type Source interface {
	// Snapshot returns the current state without advancing it.
	Snapshot() data.ApiaryData
	// Refresh advances every hive by one reading and returns the new state.
	Refresh() data.ApiaryData
	// NextSnapshot advances a single hive.
	NextSnapshot(beehiveID string) (data.Beehive, bool)
}

// Mutator is implemented by sources that accept outside changes: sensor
// readings posted to the gateway and operators resolving alerts.
type Mutator interface {
	ApplyReading(r *data.Reading) (data.Beehive, error)
	ResolveAlert(beehiveID, alertID string) error
}

// ComputeStatistics derives the apiary summary from a hive list. Averages are
// rounded to two decimals.
func ComputeStatistics(hives []data.Beehive) data.Statistics {
	s := data.Statistics{TotalBeehives: len(hives)}
	if len(hives) == 0 {
		return s
	}
	var temp, hum, varroa decimal.Decimal
	for _, h := range hives {
		switch h.Status {
		case data.StatusHealthy:
			s.HealthyBeehives++
		case data.StatusWarning:
			s.WarningBeehives++
		case data.StatusCritical:
			s.CriticalBeehives++
		}
		temp = temp.Add(decimal.NewFromFloat(h.Metrics.Temperature))
		hum = hum.Add(decimal.NewFromFloat(h.Metrics.Humidity))
		varroa = varroa.Add(decimal.NewFromFloat(h.Metrics.VarroaMiteLevel))
	}
	n := decimal.NewFromInt(int64(len(hives)))
	s.AverageTemperature = temp.Div(n).Round(2).InexactFloat64()
	s.AverageHumidity = hum.Div(n).Round(2).InexactFloat64()
	s.AverageVarroaMiteLevel = varroa.Div(n).Round(2).InexactFloat64()
	return s
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// Static serves a fixed apiary. Refresh does not change metrics; it only
// re-stamps the hives. Used for fixtures and the evaluate command.
type Static struct {
	mu     sync.Mutex
	apiary data.ApiaryData
	now    func() time.Time
}

func NewStatic(apiary data.ApiaryData) *Static {
	apiary.Statistics = ComputeStatistics(apiary.Beehives)
	return &Static{apiary: apiary, now: time.Now}
}

func (s *Static) Snapshot() data.ApiaryData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyApiary(s.apiary)
}

func (s *Static) Refresh() data.ApiaryData {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	for i := range s.apiary.Beehives {
		s.apiary.Beehives[i].LastUpdated = ts
	}
	return copyApiary(s.apiary)
}

func (s *Static) NextSnapshot(id string) (data.Beehive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.apiary.Find(id)
	return b.Clone(), ok
}

func (s *Static) ApplyReading(r *data.Reading) (data.Beehive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyReading(&s.apiary, r)
}

func (s *Static) ResolveAlert(beehiveID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveAlert(&s.apiary, beehiveID, alertID)
}

// Replace swaps the whole apiary, e.g. to step a test through fixtures.
func (s *Static) Replace(apiary data.ApiaryData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	apiary.Statistics = ComputeStatistics(apiary.Beehives)
	s.apiary = apiary
}

func copyApiary(a data.ApiaryData) data.ApiaryData {
	out := a
	out.Beehives = make([]data.Beehive, len(a.Beehives))
	for i, b := range a.Beehives {
		out.Beehives[i] = b.Clone()
	}
	return out
}

func indexOf(a *data.ApiaryData, id string) int {
	for i := range a.Beehives {
		if a.Beehives[i].ID == id {
			return i
		}
	}
	return -1
}

func applyReading(a *data.ApiaryData, r *data.Reading) (data.Beehive, error) {
	i := indexOf(a, r.BeehiveID)
	if i < 0 {
		return data.Beehive{}, ErrUnknownBeehive
	}
	m, err := r.Apply(a.Beehives[i].Metrics)
	if err != nil {
		return data.Beehive{}, err
	}
	// replace rather than mutate: earlier snapshots may still share slices
	next := a.Beehives[i].Clone()
	next.Metrics = m
	next.LastUpdated = r.Timestamp
	a.Beehives[i] = next
	a.Statistics = ComputeStatistics(a.Beehives)
	return next.Clone(), nil
}

func resolveAlert(a *data.ApiaryData, beehiveID, alertID string) error {
	i := indexOf(a, beehiveID)
	if i < 0 {
		return ErrUnknownBeehive
	}
	next := a.Beehives[i].Clone()
	for j := range next.Alerts {
		if next.Alerts[j].ID == alertID {
			next.Alerts[j].Resolved = true
			a.Beehives[i] = next
			return nil
		}
	}
	return ErrUnknownAlert
}
