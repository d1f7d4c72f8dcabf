// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/alerting"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/bus"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/storage"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/telemetry"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/websocket"
)

var (
	ErrUnknownBeehive = errors.New("unknown beehive")
	ErrStopped        = errors.New("monitor stopped")
)

// Broadcaster pushes frames to live dashboard clients.
type Broadcaster interface {
	Broadcast(kind string, payload interface{})
}

type Config struct {
	Interval        time.Duration `mapstructure:"interval"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout"`
	StateSubject    string        `mapstructure:"-"`
}

// State is what one tick produced. A published State is never modified.
type State struct {
	Tick        uint64                        `json:"tick"`
	Taken       time.Time                     `json:"taken"`
	Apiary      data.ApiaryData               `json:"apiary"`
	Alerts      []alerting.DisplayAlert       `json:"alerts"`
	Counts      alerting.AlertCounts          `json:"counts"`
	Evaluations map[string]anomaly.Evaluation `json:"evaluations"`
	Selected    string                        `json:"selected,omitempty"`

	previous map[string]data.Beehive
}

// Previous returns the hive as it was one tick before this state.
func (s *State) Previous(beehiveID string) *data.Beehive {
	h, ok := s.previous[beehiveID]
	if !ok {
		return nil
	}
	return &h
}

// AlertEvent is the compact form of a State published on the event bus.
type AlertEvent struct {
	Tick          uint64                  `json:"tick"`
	Taken         time.Time               `json:"taken"`
	Counts        alerting.AlertCounts    `json:"counts"`
	Alerts        []alerting.DisplayAlert `json:"alerts"`
	CriticalHives []string                `json:"criticalHives"`
}

// Monitor drives the evaluation core. Every tick it refreshes the telemetry
// source, aggregates alerts for all hives and publishes the result. For
// the hive selected by the operator it also dispatches notifications.
//
// Dispatches and bus events run in their own goroutines and never delay a
// tick or a selection change. Each dispatch carries the generation it was
// started in; when a newer tick or selection change has happened by the time
// it finishes, its report is discarded. At most one bus event is in flight;
// events produced while the bus is busy are dropped.
type Monitor struct {
	cfg        Config
	source     telemetry.Source
	detector   *anomaly.Detector
	dispatcher *alerting.Dispatcher
	store      *storage.MemoryStore

	logger    *zap.Logger
	metrics   *metrics.Metrics
	hub       Broadcaster
	publisher bus.Publisher
	now       func() time.Time

	state      atomic.Pointer[State]
	lastReport atomic.Pointer[alerting.Report]
	generation atomic.Uint64
	ticks      atomic.Uint64

	mu       sync.Mutex // guards selected, stopped and tick ordering
	selected string
	stopped  bool

	// base is cancelled when Run returns; every background goroutine
	// derives its context from it.
	base       context.Context
	cancelBase context.CancelFunc
	publishing atomic.Bool
	inflight   sync.WaitGroup
}

type Option func(*Monitor)

func WithLogger(l *zap.Logger) Option { return func(m *Monitor) { m.logger = l } }
func WithMetrics(mt *metrics.Metrics) Option { return func(m *Monitor) { m.metrics = mt } }
func WithBroadcaster(b Broadcaster) Option { return func(m *Monitor) { m.hub = b } }
func WithPublisher(p bus.Publisher) Option { return func(m *Monitor) { m.publisher = p } }
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }
func WithStore(s *storage.MemoryStore) Option { return func(m *Monitor) { m.store = s } }

func New(cfg Config, source telemetry.Source, detector *anomaly.Detector, dispatcher *alerting.Dispatcher, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	m := &Monitor{
		cfg:        cfg,
		source:     source,
		detector:   detector,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		publisher:  bus.Noop{},
		now:        time.Now,
	}
	m.base, m.cancelBase = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = storage.NewMemoryStore(0)
	}
	return m
}

// Run ticks until ctx is done. The first tick happens immediately. On return
// in-flight dispatches are cancelled and awaited, and Select fails with
// ErrStopped.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started", zap.Duration("interval", m.cfg.Interval))
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.stop()
			m.logger.Info("monitor stopped", zap.Uint64("ticks", m.ticks.Load()))
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

func (m *Monitor) stop() {
	m.mu.Lock()
	m.stopped = true
	m.cancelBase()
	m.mu.Unlock()
	m.inflight.Wait()
}

// Tick refreshes the source once and publishes the resulting State.
func (m *Monitor) Tick(ctx context.Context) *State {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	ts := m.now()

	var previous map[string]data.Beehive
	if last, ok := m.store.Latest(); ok {
		previous = last.Apiary.ByID()
	}
	apiary := m.source.Refresh()

	evaluations := alerting.EvaluateAll(m.detector, apiary.Beehives, previous)
	alerts := alerting.AggregateEvaluated(apiary.Beehives, evaluations, ts)
	critical := 0
	for _, ev := range evaluations {
		if ev.IsCritical {
			critical++
		}
	}

	state := &State{
		Tick:        m.ticks.Add(1),
		Taken:       ts,
		Apiary:      apiary,
		Alerts:      alerts,
		Counts:      alerting.Summarize(alerts),
		Evaluations: evaluations,
		Selected:    m.selected,
		previous:    previous,
	}
	gen := m.generation.Add(1)
	m.store.Add(storage.Snapshot{Tick: state.Tick, Taken: ts, Apiary: apiary})
	m.state.Store(state)

	if m.metrics != nil {
		m.metrics.Ticks.Inc()
		m.metrics.Evaluations.Add(float64(len(apiary.Beehives)))
		m.metrics.CriticalHives.Set(float64(critical))
		for _, sev := range []data.AlertSeverity{data.SeverityHigh, data.SeverityMedium, data.SeverityLow} {
			m.metrics.DisplayAlerts.WithLabelValues(string(sev)).Set(float64(state.Counts.For(sev)))
		}
		m.metrics.TickDuration.Observe(time.Since(started).Seconds())
	}

	m.publish(state)

	if m.selected != "" {
		if hive, ok := apiary.Find(m.selected); ok {
			m.dispatchAsync(ctx, gen, hive, state.Previous(hive.ID))
		}
	}

	m.logger.Debug("tick",
		zap.Uint64("tick", state.Tick),
		zap.Int("alerts", len(alerts)),
		zap.Int("critical_hives", critical),
	)
	return state
}

// publish broadcasts state to dashboard clients and hands the bus event to a
// background goroutine. Callers hold m.mu.
func (m *Monitor) publish(state *State) {
	if m.hub != nil {
		m.hub.Broadcast(websocket.KindState, state)
	}
	if m.cfg.StateSubject == "" || m.stopped {
		return
	}
	if !m.publishing.CompareAndSwap(false, true) {
		m.logger.Warn("event bus busy, dropping alert event",
			zap.String("subject", m.cfg.StateSubject),
			zap.Uint64("tick", state.Tick),
		)
		m.busOutcome("dropped")
		return
	}

	event := AlertEvent{
		Tick:   state.Tick,
		Taken:  state.Taken,
		Counts: state.Counts,
		Alerts: state.Alerts,
	}
	for _, h := range state.Apiary.Beehives {
		if state.Evaluations[h.ID].IsCritical {
			event.CriticalHives = append(event.CriticalHives, h.ID)
		}
	}
	key := state.Apiary.ApiaryName

	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		defer m.publishing.Store(false)
		ctx, cancel := context.WithTimeout(m.base, m.cfg.PublishTimeout)
		defer cancel()

		if err := bus.PublishJSON(ctx, m.publisher, m.cfg.StateSubject, key, event); err != nil {
			m.logger.Warn("publish alert event", zap.String("subject", m.cfg.StateSubject), zap.Error(err))
			m.busOutcome("failed")
			return
		}
		m.busOutcome("published")
	}()
}

func (m *Monitor) busOutcome(outcome string) {
	if m.metrics != nil {
		m.metrics.BusEvents.WithLabelValues(outcome).Inc()
	}
}

// State returns the latest published state, or nil before the first tick.
func (m *Monitor) State() *State {
	return m.state.Load()
}

// LastReport returns the newest dispatch report that was not superseded.
func (m *Monitor) LastReport() *alerting.Report {
	return m.lastReport.Load()
}

func (m *Monitor) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Select marks a hive for inspection and dispatches notifications for it
// right away. Later ticks re-dispatch for the same hive until the selection
// is cleared or changed.
func (m *Monitor) Select(ctx context.Context, beehiveID string) (data.Beehive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return data.Beehive{}, ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return data.Beehive{}, err
	}

	state := m.state.Load()
	var (
		hive data.Beehive
		ok   bool
		prev *data.Beehive
	)
	if state != nil {
		hive, ok = state.Apiary.Find(beehiveID)
		prev = state.Previous(beehiveID)
	}
	if !ok {
		hive, ok = m.source.Snapshot().Find(beehiveID)
	}
	if !ok {
		return data.Beehive{}, ErrUnknownBeehive
	}

	m.selected = beehiveID
	gen := m.generation.Add(1)
	m.logger.Info("beehive selected", zap.String("beehive_id", beehiveID))
	// the request that selected the hive may end before the dispatch does
	m.dispatchAsync(m.base, gen, hive, prev)
	return hive, nil
}

// ClearSelection stops per-tick dispatching. Dispatches still in flight
// finish but their reports are dropped.
func (m *Monitor) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == "" {
		return
	}
	m.logger.Info("beehive selection cleared", zap.String("beehive_id", m.selected))
	m.selected = ""
	m.generation.Add(1)
}

// dispatchAsync starts a dispatch bounded by the dispatch timeout. It is
// cancelled when parent is done or Run returns. Callers hold m.mu.
func (m *Monitor) dispatchAsync(parent context.Context, gen uint64, hive data.Beehive, prev *data.Beehive) {
	if m.dispatcher == nil || m.stopped {
		return
	}
	id := uuid.NewString()
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		ctx, cancel := context.WithTimeout(m.base, m.cfg.DispatchTimeout)
		defer cancel()
		stopAfter := context.AfterFunc(parent, cancel)
		defer stopAfter()

		report := m.dispatcher.Dispatch(ctx, hive, prev)
		if current := m.generation.Load(); current != gen {
			m.logger.Info("discarding stale dispatch report",
				zap.String("dispatch_id", id),
				zap.String("beehive_id", hive.ID),
				zap.Uint64("generation", gen),
				zap.Uint64("current", current),
			)
			if m.metrics != nil {
				m.metrics.StaleDispatches.Inc()
			}
			return
		}
		m.lastReport.Store(&report)
		if m.hub != nil {
			m.hub.Broadcast(websocket.KindNotification, report)
		}
	}()
}

// Wait blocks until every in-flight dispatch has returned.
func (m *Monitor) Wait() {
	m.inflight.Wait()
}
