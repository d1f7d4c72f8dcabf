// internal/telemetry/simulator.go
package telemetry

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

// Demo fixture: two hives are pinned so their alerts persist across ticks.
const (
	HumidHiveID  = "hive-1"
	VarroaHiveID = "hive-7"

	pinnedHumidity = 78.5
	pinnedVarroa   = 2.8
)

const (
	apiaryName     = "Cornell Apiary"
	apiaryLocation = "Ithaca, NY"
	hiveLocation   = "Cornell Apiary"

	// Cornell Botanical Gardens
	baseLatitude  = 42.4509
	baseLongitude = -76.4693

	historyDays = 30
)

type SimulatorConfig struct {
	HiveCount int    `mapstructure:"hive_count"`
	Seed      uint64 `mapstructure:"seed"`
}

// Simulator generates jittered telemetry for a synthetic apiary.
type Simulator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	now    func() time.Time
	apiary data.ApiaryData
}

type SimulatorOption func(*Simulator)

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

func NewSimulator(cfg SimulatorConfig, opts ...SimulatorOption) *Simulator {
	if cfg.HiveCount <= 0 {
		cfg.HiveCount = 12
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Simulator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	hives := make([]data.Beehive, 0, cfg.HiveCount)
	for i := 1; i <= cfg.HiveCount; i++ {
		hives = append(hives, s.generateHive(fmt.Sprintf("hive-%d", i), fmt.Sprintf("Hive %d", i)))
	}
	s.apiary = data.ApiaryData{
		ApiaryName: apiaryName,
		Location:   apiaryLocation,
		Beehives:   hives,
		Statistics: ComputeStatistics(hives),
	}
	return s
}

func (s *Simulator) between(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) Snapshot() data.ApiaryData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyApiary(s.apiary)
}

func (s *Simulator) Refresh() data.ApiaryData {
	s.mu.Lock()
	defer s.mu.Unlock()

	hives := make([]data.Beehive, len(s.apiary.Beehives))
	for i, h := range s.apiary.Beehives {
		hives[i] = s.step(h)
	}
	s.apiary.Beehives = hives
	s.apiary.Statistics = ComputeStatistics(hives)
	return copyApiary(s.apiary)
}

func (s *Simulator) NextSnapshot(id string) (data.Beehive, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(&s.apiary, id)
	if i < 0 {
		return data.Beehive{}, false
	}
	s.apiary.Beehives[i] = s.step(s.apiary.Beehives[i])
	s.apiary.Statistics = ComputeStatistics(s.apiary.Beehives)
	return s.apiary.Beehives[i].Clone(), true
}

func (s *Simulator) ApplyReading(r *data.Reading) (data.Beehive, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyReading(&s.apiary, r)
}

func (s *Simulator) ResolveAlert(beehiveID, alertID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resolveAlert(&s.apiary, beehiveID, alertID)
}

func (s *Simulator) generateHive(id, name string) data.Beehive {
	ts := s.now()

	humidity := round2(s.between(55, 65))
	if id == HumidHiveID {
		humidity = pinnedHumidity
	}
	varroa := round2(s.between(0, 1.5))
	if id == VarroaHiveID {
		varroa = pinnedVarroa
	}

	return data.Beehive{
		ID:       id,
		Name:     name,
		Location: hiveLocation,
		Coordinates: data.Coordinates{
			Latitude:  baseLatitude + s.between(-0.0025, 0.0025),
			Longitude: baseLongitude + s.between(-0.0025, 0.0025),
		},
		Status:      pinnedStatus(id),
		LastUpdated: ts,
		Metrics: data.Metrics{
			Temperature:        round2(s.between(32, 36)),
			Humidity:           humidity,
			Weight:             round2(s.between(25, 35)),
			PopulationEstimate: 10000 + s.rng.IntN(40000),
			VarroaMiteLevel:    varroa,
			QueenActivity:      round2(s.between(0, 100)),
			EntranceActivity:   round2(s.between(30, 95)),
		},
		History: s.generateHistory(ts),
		Alerts:  s.fixtureAlerts(id, ts),
	}
}

// generateHistory builds three readings a day (08:00, 16:00, 00:00) for the
// past historyDays days, newest first.
func (s *Simulator) generateHistory(ts time.Time) []data.HistoryPoint {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	points := make([]data.HistoryPoint, 0, historyDays*3)
	for d := 0; d < historyDays; d++ {
		baseTemp := s.between(32, 36)
		baseHum := s.between(40, 70)
		baseWeight := s.between(25, 35)
		baseActivity := s.between(30, 95)
		for j := 0; j < 3; j++ {
			v := s.between(-0.5, 0.5)
			tempSign := 1.0
			if j == 0 {
				tempSign = -1
			}
			activityShift := [3]float64{0, 10, -15}[j]
			points = append(points, data.HistoryPoint{
				Date:             day.AddDate(0, 0, -d).Add(time.Duration(8+8*j) * time.Hour),
				Temperature:      round2(baseTemp + v*tempSign),
				Humidity:         round2(baseHum + v*2),
				Weight:           round2(baseWeight + v*0.1),
				EntranceActivity: round2(baseActivity + activityShift + v*5),
			})
		}
	}
	return points
}

func (s *Simulator) fixtureAlerts(id string, ts time.Time) []data.AlertRecord {
	age := time.Duration(s.rng.IntN(6)) * time.Hour
	switch id {
	case VarroaHiveID:
		return []data.AlertRecord{{
			ID:        "alert-" + id + "-varroa",
			Type:      data.AlertVarroa,
			Severity:  data.SeverityMedium,
			Message:   "Warning: Varroa mite level elevated: 2.8%",
			Timestamp: ts.Add(-age),
		}}
	case HumidHiveID:
		return []data.AlertRecord{{
			ID:        "alert-" + id + "-humidity",
			Type:      data.AlertHumidity,
			Severity:  data.SeverityHigh,
			Message:   "Humidity level too high: 78.5%",
			Timestamp: ts.Add(-age),
		}}
	}
	return nil
}

func pinnedStatus(id string) data.HiveStatus {
	if id == HumidHiveID || id == VarroaHiveID {
		return data.StatusWarning
	}
	return data.StatusHealthy
}

// step returns the next reading of h with small random drift. The pinned
// hives keep their fixture values and get their fixture alert back if every
// alert was removed.
func (s *Simulator) step(h data.Beehive) data.Beehive {
	next := h.Clone()
	ts := s.now()
	m := h.Metrics

	next.Metrics.Temperature = round2(m.Temperature + s.between(-0.5, 0.5))
	if h.ID == HumidHiveID {
		next.Metrics.Humidity = pinnedHumidity
	} else {
		next.Metrics.Humidity = round2(clamp(m.Humidity+s.between(-1, 1), 50, 70))
	}
	next.Metrics.Weight = round2(m.Weight + s.between(-0.1, 0.1))
	next.Metrics.EntranceActivity = round2(clamp(m.EntranceActivity+s.between(-5, 5), 0, 100))
	next.Metrics.QueenActivity = round2(clamp(m.QueenActivity+s.between(-3, 3), 0, 100))
	if h.ID == VarroaHiveID {
		next.Metrics.VarroaMiteLevel = pinnedVarroa
	} else {
		next.Metrics.VarroaMiteLevel = round2(clamp(m.VarroaMiteLevel+s.between(-0.1, 0.1), 0, 1.5))
	}

	next.Coordinates.Latitude += s.between(-0.0001, 0.0001)
	next.Coordinates.Longitude += s.between(-0.0001, 0.0001)
	next.Status = pinnedStatus(h.ID)
	next.LastUpdated = ts

	if len(next.Alerts) == 0 {
		next.Alerts = s.fixtureAlerts(h.ID, ts)
	}
	return next
}
