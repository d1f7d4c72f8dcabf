// internal/api/handlers.go
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	gwebsocket "github.com/gorilla/websocket" // Alias to avoid name conflict
	"go.uber.org/zap"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/alerting"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/monitor"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/storage"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/telemetry"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/websocket"
)

const maxIngestBody = 1 << 20

var upgrader = gwebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dashboard may be served from another port
}

// Deps are the collaborators the API serves from. Mutator and Hub may be
// nil; the endpoints that need them answer 501.
type Deps struct {
	Monitor  *monitor.Monitor
	Detector *anomaly.Detector
	Mutator  telemetry.Mutator
	Store    *storage.MemoryStore
	Hub      *websocket.Hub
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	WebDir   string
}

type APIHandler struct {
	Deps
	now func() time.Time
}

func NewAPIHandler(deps Deps) *APIHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &APIHandler{Deps: deps, now: time.Now}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// state returns the latest monitor state or answers 503 before the first tick.
func (h *APIHandler) state(w http.ResponseWriter) *monitor.State {
	st := h.Monitor.State()
	if st == nil {
		writeError(w, http.StatusServiceUnavailable, "no telemetry yet")
	}
	return st
}

func (h *APIHandler) hive(w http.ResponseWriter, r *http.Request) (*monitor.State, data.Beehive, bool) {
	st := h.state(w)
	if st == nil {
		return nil, data.Beehive{}, false
	}
	id := chi.URLParam(r, "id")
	hive, ok := st.Apiary.Find(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown beehive "+id)
		return nil, data.Beehive{}, false
	}
	return st, hive, true
}

func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if st := h.Monitor.State(); st != nil {
		resp["tick"] = st.Tick
		resp["taken"] = st.Taken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *APIHandler) HandleApiary(w http.ResponseWriter, r *http.Request) {
	if st := h.state(w); st != nil {
		writeJSON(w, http.StatusOK, st.Apiary)
	}
}

type alertsResponse struct {
	Tick   uint64                  `json:"tick"`
	Taken  time.Time               `json:"taken"`
	Counts alerting.AlertCounts    `json:"counts"`
	Alerts []alerting.DisplayAlert `json:"alerts"`
}

// HandleAlerts lists the aggregated alerts. ?min_severity= narrows the list.
func (h *APIHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	st := h.state(w)
	if st == nil {
		return
	}
	alerts := st.Alerts
	if q := r.URL.Query().Get("min_severity"); q != "" {
		floor, err := data.ParseSeverity(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		alerts = make([]alerting.DisplayAlert, 0, len(st.Alerts))
		for _, a := range st.Alerts {
			if a.Severity.AtLeast(floor) {
				alerts = append(alerts, a)
			}
		}
	}
	if alerts == nil {
		alerts = []alerting.DisplayAlert{}
	}
	writeJSON(w, http.StatusOK, alertsResponse{
		Tick:   st.Tick,
		Taken:  st.Taken,
		Counts: alerting.Summarize(alerts),
		Alerts: alerts,
	})
}

func (h *APIHandler) HandleBeehive(w http.ResponseWriter, r *http.Request) {
	if _, hive, ok := h.hive(w, r); ok {
		writeJSON(w, http.StatusOK, hive)
	}
}

type evaluationResponse struct {
	BeehiveID  string             `json:"beehiveId"`
	Tick       uint64             `json:"tick"`
	Evaluation anomaly.Evaluation `json:"evaluation"`
}

func (h *APIHandler) HandleEvaluation(w http.ResponseWriter, r *http.Request) {
	st, hive, ok := h.hive(w, r)
	if !ok {
		return
	}
	ev, ok := st.Evaluations[hive.ID]
	if !ok {
		ev = h.Detector.Evaluate(hive, st.Previous(hive.ID))
	}
	writeJSON(w, http.StatusOK, evaluationResponse{BeehiveID: hive.ID, Tick: st.Tick, Evaluation: ev})
}

type historyResponse struct {
	BeehiveID string              `json:"beehiveId"`
	Daily     []data.HistoryPoint `json:"daily"`
	Recent    []data.HistoryPoint `json:"recent"`
}

const defaultHistoryLimit = 20

// HandleHistory returns the hive's daily trend and the readings of recent
// ticks, newest first. ?limit= caps the recent readings (default 20).
func (h *APIHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	_, hive, ok := h.hive(w, r)
	if !ok {
		return
	}
	limit := defaultHistoryLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	resp := historyResponse{BeehiveID: hive.ID, Daily: hive.History, Recent: []data.HistoryPoint{}}
	if resp.Daily == nil {
		resp.Daily = []data.HistoryPoint{}
	}
	if h.Store != nil {
		if recent := h.Store.HiveReadings(hive.ID, limit); recent != nil {
			resp.Recent = recent
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectionResponse struct {
	Selected   string           `json:"selected"`
	LastReport *alerting.Report `json:"lastReport,omitempty"`
}

func (h *APIHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Monitor.Select(r.Context(), id); err != nil {
		if errors.Is(err, monitor.ErrUnknownBeehive) {
			writeError(w, http.StatusNotFound, "unknown beehive "+id)
			return
		}
		if errors.Is(err, monitor.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, "monitor is shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, selectionResponse{Selected: id})
}

func (h *APIHandler) HandleGetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, selectionResponse{Selected: h.Monitor.Selected(), LastReport: h.Monitor.LastReport()})
}

func (h *APIHandler) HandleClearSelection(w http.ResponseWriter, r *http.Request) {
	h.Monitor.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

// HandleResolveAlert marks a stored alert as resolved. The change shows up
// in the alert list on the next tick.
func (h *APIHandler) HandleResolveAlert(w http.ResponseWriter, r *http.Request) {
	if h.Mutator == nil {
		writeError(w, http.StatusNotImplemented, "telemetry source is read-only")
		return
	}
	hiveID, alertID := chi.URLParam(r, "id"), chi.URLParam(r, "alertID")
	switch err := h.Mutator.ResolveAlert(hiveID, alertID); {
	case err == nil:
		h.Logger.Info("alert resolved", zap.String("beehive_id", hiveID), zap.String("alert_id", alertID))
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, telemetry.ErrUnknownBeehive), errors.Is(err, telemetry.ErrUnknownAlert):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

type thresholdsResponse struct {
	Thresholds           anomaly.Thresholds `json:"thresholds"`
	EnableActivityChecks bool               `json:"enableActivityChecks"`
}

func (h *APIHandler) HandleThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, thresholdsResponse{
		Thresholds:           h.Detector.Thresholds(),
		EnableActivityChecks: h.Detector.ActivityChecksEnabled(),
	})
}

type ingestResponse struct {
	Status     string             `json:"status"`
	BeehiveID  string             `json:"beehiveId"`
	Evaluation anomaly.Evaluation `json:"evaluation"`
}

// HandleDataIngest receives readings from sensor bridges and overlays them
// on the hive's current metrics.
func (h *APIHandler) HandleDataIngest(w http.ResponseWriter, r *http.Request) {
	if h.Mutator == nil {
		writeError(w, http.StatusNotImplemented, "telemetry source is read-only")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		h.reject(w, http.StatusBadRequest, "cannot read body", err)
		return
	}
	defer r.Body.Close()

	reading, err := data.Parse(body, h.now())
	if err != nil {
		h.reject(w, http.StatusBadRequest, err.Error(), err)
		return
	}

	// evaluate against the hive as the last tick saw it
	var previous *data.Beehive
	if st := h.Monitor.State(); st != nil {
		if prev, ok := st.Apiary.Find(reading.BeehiveID); ok {
			previous = &prev
		}
	}

	hive, err := h.Mutator.ApplyReading(reading)
	switch {
	case errors.Is(err, telemetry.ErrUnknownBeehive):
		h.reject(w, http.StatusNotFound, "unknown beehive "+reading.BeehiveID, err)
		return
	case err != nil:
		h.reject(w, http.StatusBadRequest, err.Error(), err)
		return
	}
	h.Metrics.IngestedReadings.Inc()

	ev := h.Detector.Evaluate(hive, previous)
	if h.Hub != nil {
		h.Hub.Broadcast(websocket.KindReading, hive)
	}
	h.Logger.Debug("reading ingested",
		zap.String("beehive_id", hive.ID),
		zap.Int("values", len(reading.Values)),
		zap.Bool("critical", ev.IsCritical),
	)
	writeJSON(w, http.StatusOK, ingestResponse{Status: "received", BeehiveID: hive.ID, Evaluation: ev})
}

func (h *APIHandler) reject(w http.ResponseWriter, status int, msg string, err error) {
	h.Metrics.RejectedReadings.Inc()
	h.Logger.Warn("reading rejected", zap.Int("status", status), zap.Error(err))
	writeError(w, status, msg)
}

// HandleWebSocket upgrades connections and registers clients with the hub
func (h *APIHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusNotImplemented, "live updates disabled")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade", zap.Error(err))
		return
	}

	client := websocket.NewClient(h.Hub, conn)
	// the newly connected client gets the current state right away
	if st := h.Monitor.State(); st != nil {
		if frame, err := websocket.Encode(websocket.KindState, st); err == nil {
			client.Initial = frame
		}
	}
	if !h.Hub.RegisterClient(client) {
		conn.Close()
		return
	}

	// Start read/write pumps in separate goroutines
	go client.WritePump()
	go client.ReadPump() // Must run ReadPump to handle control messages (close, pong)
}

// ServeWebUI serves index.html from the web directory when one is deployed,
// otherwise a short JSON pointer to the API.
func (h *APIHandler) ServeWebUI(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.WebDir, "index.html")
	if h.WebDir != "" {
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "beehive-gateway",
		"apiary":  "/api/apiary",
		"alerts":  "/api/alerts",
		"live":    "/ws",
	})
}
