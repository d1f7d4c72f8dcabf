// internal/api/handlers_test.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/alerting"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/monitor"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/notify"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/storage"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/telemetry"
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Send(_ context.Context, msg notify.Message) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return notify.Result{Success: true, MessageID: "ok"}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type testEnv struct {
	mon     *monitor.Monitor
	email   *recorder
	metrics *metrics.Metrics
	ui      *httptest.Server
	ingest  *httptest.Server
}

func newTestEnv(t *testing.T, tick bool) *testEnv {
	t.Helper()
	base := data.Metrics{Temperature: 34, Humidity: 60, Weight: 30, VarroaMiteLevel: 1, EntranceActivity: 70}
	humid := base
	humid.Humidity = 78.5
	src := telemetry.NewStatic(data.ApiaryData{
		ApiaryName: "Cornell Apiary",
		Location:   "Ithaca, NY",
		Beehives: []data.Beehive{
			{ID: "hive-1", Name: "Hive 1", Location: "Cornell Apiary", Metrics: humid},
			{ID: "hive-7", Name: "Hive 7", Location: "Cornell Apiary", Metrics: base, Alerts: []data.AlertRecord{{
				ID: "alert-hive-7-varroa", Type: data.AlertVarroa, Severity: data.SeverityMedium,
				Message: "Warning: Varroa mite level elevated: 2.8%", Timestamp: time.Now().Add(-time.Hour),
			}}},
		},
	})

	env := &testEnv{email: &recorder{}, metrics: metrics.New()}
	detector := anomaly.NewDetector(anomaly.DefaultThresholds())
	dispatcher := alerting.NewDispatcher(detector, env.email, &recorder{}, alerting.NotificationConfig{
		EnableEmail:     true,
		EmailRecipients: []string{"keeper@example.com"},
		AlertThreshold:  data.SeverityMedium,
	})
	store := storage.NewMemoryStore(30)
	env.mon = monitor.New(monitor.Config{}, src, detector, dispatcher,
		monitor.WithStore(store), monitor.WithMetrics(env.metrics))
	t.Cleanup(env.mon.Wait)
	if tick {
		env.mon.Tick(context.Background())
	}

	h := NewAPIHandler(Deps{
		Monitor:  env.mon,
		Detector: detector,
		Mutator:  src,
		Store:    store,
		Metrics:  env.metrics,
	})
	env.ui = httptest.NewServer(SetupUIRouter(h))
	env.ingest = httptest.NewServer(SetupDataRouter(h))
	t.Cleanup(env.ui.Close)
	t.Cleanup(env.ingest.Close)
	return env
}

func do(t *testing.T, method, url, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func TestNoStateBeforeFirstTick(t *testing.T) {
	env := newTestEnv(t, false)
	if code := do(t, http.MethodGet, env.ui.URL+"/api/apiary", "", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	var health map[string]interface{}
	if code := do(t, http.MethodGet, env.ui.URL+"/healthz", "", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz = %d %v", code, health)
	}
}

func TestApiaryAndAlerts(t *testing.T) {
	env := newTestEnv(t, true)

	var apiary data.ApiaryData
	if code := do(t, http.MethodGet, env.ui.URL+"/api/apiary", "", &apiary); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(apiary.Beehives) != 2 || apiary.Statistics.TotalBeehives != 2 {
		t.Errorf("apiary = %+v", apiary)
	}

	var alerts alertsResponse
	do(t, http.MethodGet, env.ui.URL+"/api/alerts", "", &alerts)
	if len(alerts.Alerts) != 2 || alerts.Counts.High != 1 || alerts.Counts.Medium != 1 {
		t.Fatalf("alerts = %+v", alerts)
	}
	if !alerts.Alerts[0].IsCriticalMetric || alerts.Alerts[0].BeehiveID != "hive-1" {
		t.Errorf("first alert = %+v", alerts.Alerts[0])
	}

	do(t, http.MethodGet, env.ui.URL+"/api/alerts?min_severity=high", "", &alerts)
	if len(alerts.Alerts) != 1 || alerts.Counts.Total != 1 {
		t.Errorf("filtered alerts = %+v", alerts)
	}
	if code := do(t, http.MethodGet, env.ui.URL+"/api/alerts?min_severity=urgent", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad severity status = %d", code)
	}
}

func TestBeehiveEndpoints(t *testing.T) {
	env := newTestEnv(t, true)

	var hive data.Beehive
	if code := do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1", "", &hive); code != http.StatusOK || hive.Name != "Hive 1" {
		t.Errorf("beehive = %d %+v", code, hive)
	}
	if code := do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-99", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown beehive status = %d", code)
	}

	var ev evaluationResponse
	do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1/evaluation", "", &ev)
	if !ev.Evaluation.IsCritical || ev.Evaluation.Issues[0].Text != "Humidity critically high: 78.50% (above 75.00%)" {
		t.Errorf("evaluation = %+v", ev)
	}

	env.mon.Tick(context.Background())
	var hist historyResponse
	do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1/history?limit=5", "", &hist)
	if len(hist.Recent) != 2 || hist.Recent[0].Humidity != 78.5 {
		t.Errorf("history = %+v", hist)
	}
	for _, q := range []string{"x", "0", "-3"} {
		if code := do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1/history?limit="+q, "", nil); code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d", q, code)
		}
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	env := newTestEnv(t, true)
	for i := 0; i < 24; i++ {
		env.mon.Tick(context.Background())
	}

	var hist historyResponse
	if code := do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1/history", "", &hist); code != http.StatusOK {
		t.Fatalf("history status = %d", code)
	}
	if len(hist.Recent) != 20 {
		t.Errorf("recent readings without limit = %d, want 20", len(hist.Recent))
	}
	do(t, http.MethodGet, env.ui.URL+"/api/beehives/hive-1/history?limit=30", "", &hist)
	if len(hist.Recent) != 25 {
		t.Errorf("recent readings with limit=30 = %d, want 25", len(hist.Recent))
	}
}

func TestSelection(t *testing.T) {
	env := newTestEnv(t, true)

	if code := do(t, http.MethodPost, env.ui.URL+"/api/beehives/hive-1/select", "", nil); code != http.StatusAccepted {
		t.Fatalf("select status = %d", code)
	}
	env.mon.Wait()
	if env.email.count() != 1 {
		t.Errorf("emails after select = %d", env.email.count())
	}

	var sel selectionResponse
	do(t, http.MethodGet, env.ui.URL+"/api/selection", "", &sel)
	if sel.Selected != "hive-1" || sel.LastReport == nil || len(sel.LastReport.Attempts) != 1 {
		t.Errorf("selection = %+v", sel)
	}

	if code := do(t, http.MethodDelete, env.ui.URL+"/api/selection", "", nil); code != http.StatusNoContent {
		t.Errorf("clear status = %d", code)
	}
	if env.mon.Selected() != "" {
		t.Error("selection not cleared")
	}
	if code := do(t, http.MethodPost, env.ui.URL+"/api/beehives/nope/select", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown select status = %d", code)
	}
}

func TestResolveAlert(t *testing.T) {
	env := newTestEnv(t, true)

	url := env.ui.URL + "/api/beehives/hive-7/alerts/alert-hive-7-varroa/resolve"
	if code := do(t, http.MethodPost, url, "", nil); code != http.StatusNoContent {
		t.Fatalf("resolve status = %d", code)
	}
	if code := do(t, http.MethodPost, env.ui.URL+"/api/beehives/hive-7/alerts/missing/resolve", "", nil); code != http.StatusNotFound {
		t.Errorf("unknown alert status = %d", code)
	}

	st := env.mon.Tick(context.Background())
	if len(st.Alerts) != 1 || st.Alerts[0].BeehiveID != "hive-1" {
		t.Errorf("resolved alert still listed: %+v", st.Alerts)
	}
}

func TestDataIngest(t *testing.T) {
	env := newTestEnv(t, true)

	var resp ingestResponse
	code := do(t, http.MethodPost, env.ingest.URL+"/data", `{"beehiveId":"hive-7","metrics":{"temperature":39.2}}`, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.BeehiveID != "hive-7" || !resp.Evaluation.IsCritical {
		t.Errorf("ingest response = %+v", resp)
	}
	if got := resp.Evaluation.Issues[0].Text; got != "Temperature critically high: 39.20°C (above 38.00°C)" {
		t.Errorf("issue = %q", got)
	}

	st := env.mon.Tick(context.Background())
	if h, _ := st.Apiary.Find("hive-7"); h.Metrics.Temperature != 39.2 {
		t.Errorf("reading not applied: %+v", h.Metrics)
	}

	tests := []struct {
		body string
		want int
	}{
		{`not json`, http.StatusBadRequest},
		{`{"metrics":{"temperature":30}}`, http.StatusBadRequest},
		{`{"beehiveId":"hive-7","colour":"gold"}`, http.StatusBadRequest},
		{`{"beehiveId":"hive-42","temperature":30}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if code := do(t, http.MethodPost, env.ingest.URL+"/data", tt.body, nil); code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.body, code, tt.want)
		}
	}
	if got := testutil.ToFloat64(env.metrics.IngestedReadings); got != 1 {
		t.Errorf("ingested = %v", got)
	}
	if got := testutil.ToFloat64(env.metrics.RejectedReadings); got != 4 {
		t.Errorf("rejected = %v", got)
	}
}

func TestThresholdsAndMetrics(t *testing.T) {
	env := newTestEnv(t, true)

	var th thresholdsResponse
	do(t, http.MethodGet, env.ui.URL+"/api/thresholds", "", &th)
	if th.Thresholds != anomaly.DefaultThresholds() || th.EnableActivityChecks {
		t.Errorf("thresholds = %+v", th)
	}

	resp, err := http.Get(env.ingest.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "beehive_ticks_total 1") {
		t.Errorf("metrics output missing tick counter:\n%s", body)
	}
}

func TestServeWebUIWithoutAssets(t *testing.T) {
	env := newTestEnv(t, true)
	var banner map[string]string
	if code := do(t, http.MethodGet, env.ui.URL+"/", "", &banner); code != http.StatusOK || banner["alerts"] != "/api/alerts" {
		t.Errorf("banner = %d %v", code, banner)
	}
}
