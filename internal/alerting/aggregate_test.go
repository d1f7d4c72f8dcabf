// internal/alerting/aggregate_test.go
package alerting

import (
	"testing"
	"time"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func hive(id, name string) data.Beehive {
	return data.Beehive{
		ID:       id,
		Name:     name,
		Location: "Cornell Apiary",
		Status:   data.StatusHealthy,
		Metrics: data.Metrics{
			Temperature:      34,
			Humidity:         60,
			Weight:           30,
			VarroaMiteLevel:  1,
			EntranceActivity: 70,
		},
	}
}

func record(id string, typ data.AlertType, sev data.AlertSeverity, ts time.Time) data.AlertRecord {
	return data.AlertRecord{ID: id, Type: typ, Severity: sev, Message: id, Timestamp: ts}
}

func TestAggregateDedupPrefersPromotedIssue(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	h := hive("hive-x", "Hive X")
	h.Metrics.VarroaMiteLevel = 3.5
	h.Alerts = []data.AlertRecord{record("stored-varroa", data.AlertVarroa, data.SeverityMedium, now.Add(-time.Hour))}

	got := Aggregate(d, []data.Beehive{h}, nil, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d: %+v", len(got), got)
	}
	a := got[0]
	if a.Severity != data.SeverityHigh || !a.IsCriticalMetric {
		t.Errorf("expected promoted high alert, got %+v", a)
	}
	if a.ID != "critical-hive-x-0" {
		t.Errorf("ID = %q", a.ID)
	}
	if a.IssueSeverity != anomaly.IssueCritical {
		t.Errorf("IssueSeverity = %q", a.IssueSeverity)
	}
}

func TestAggregateTieKeepsPromotedIssue(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	h := hive("hive-1", "Hive 1")
	h.Metrics.Humidity = 78.5
	h.Alerts = []data.AlertRecord{record("alert-hive-1-humidity", data.AlertHumidity, data.SeverityHigh, now.Add(-2*time.Hour))}

	got := Aggregate(d, []data.Beehive{h}, nil, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if !got[0].IsCriticalMetric || got[0].Message != "Humidity critically high: 78.50% (above 75.00%)" {
		t.Errorf("tie should keep the promoted issue, got %+v", got[0])
	}
}

func TestAggregateKeepsWarningSeverityInternally(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	h := hive("hive-3", "Hive 3")
	h.Metrics.Humidity = 80         // critical
	h.Metrics.VarroaMiteLevel = 2.5 // warning

	got := Aggregate(d, []data.Beehive{h}, nil, now)
	if len(got) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(got))
	}
	var varroa *DisplayAlert
	for i := range got {
		if got[i].Type == data.AlertVarroa {
			varroa = &got[i]
		}
	}
	if varroa == nil {
		t.Fatal("varroa warning not promoted alongside the critical issue")
	}
	if varroa.Severity != data.SeverityHigh || varroa.IssueSeverity != anomaly.IssueWarning {
		t.Errorf("varroa alert = severity %s / issue %s, want high / warning", varroa.Severity, varroa.IssueSeverity)
	}
}

func TestAggregateWarningOnlyHiveNotPromoted(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	h := hive("hive-7", "Hive 7")
	h.Metrics.VarroaMiteLevel = 2.8
	h.Alerts = []data.AlertRecord{record("alert-hive-7-varroa", data.AlertVarroa, data.SeverityMedium, now.Add(-time.Hour))}

	got := Aggregate(d, []data.Beehive{h}, nil, now)
	if len(got) != 1 {
		t.Fatalf("expected only the stored alert, got %+v", got)
	}
	if got[0].IsCriticalMetric || got[0].Severity != data.SeverityMedium {
		t.Errorf("unexpected alert %+v", got[0])
	}
}

func TestAggregateUsesPreviousSnapshot(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	prev := hive("hive-4", "Hive 4")
	cur := hive("hive-4", "Hive 4")
	cur.Metrics.Weight = 27

	if got := Aggregate(d, []data.Beehive{cur}, nil, now); len(got) != 0 {
		t.Fatalf("no previous snapshot: expected no alerts, got %+v", got)
	}
	got := Aggregate(d, []data.Beehive{cur}, map[string]data.Beehive{"hive-4": prev}, now)
	if len(got) != 1 || got[0].Type != data.AlertWeight {
		t.Fatalf("expected weight alert, got %+v", got)
	}
}

func TestAggregateDropsActivity(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds(), anomaly.WithActivityChecks(true))

	h := hive("hive-5", "Hive 5")
	h.Metrics.EntranceActivity = 5
	h.Alerts = []data.AlertRecord{record("low-activity", data.AlertActivity, data.SeverityHigh, now)}

	if ev := d.Evaluate(h, nil); !ev.IsCritical {
		t.Fatal("precondition: activity rule should fire when enabled")
	}
	if got := Aggregate(d, []data.Beehive{h}, nil, now); len(got) != 0 {
		t.Fatalf("activity alerts leaked into output: %+v", got)
	}
}

func TestAggregateSkipsResolved(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	h := hive("hive-6", "Hive 6")
	resolved := record("done", data.AlertTemperature, data.SeverityHigh, now)
	resolved.Resolved = true
	h.Alerts = []data.AlertRecord{resolved}

	if got := Aggregate(d, []data.Beehive{h}, nil, now); len(got) != 0 {
		t.Fatalf("resolved alert displayed: %+v", got)
	}
}

func TestAggregateOrdering(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	a := hive("hive-a", "Hive A")
	a.Alerts = []data.AlertRecord{
		record("low", data.AlertOther, data.SeverityLow, now),
		record("high", data.AlertTemperature, data.SeverityHigh, now.Add(-3*time.Hour)),
		record("medium", data.AlertWeight, data.SeverityMedium, now.Add(time.Hour)),
	}
	b := hive("hive-b", "Hive B")
	b.Alerts = []data.AlertRecord{
		record("medium-older", data.AlertVarroa, data.SeverityMedium, now.Add(-time.Hour)),
		record("medium-newest", data.AlertHumidity, data.SeverityMedium, now.Add(2*time.Hour)),
	}

	got := Aggregate(d, []data.Beehive{a, b}, nil, now)
	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	want := []string{"high", "medium-newest", "medium", "medium-older", "low"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestSortAlertsStableOnFullTie(t *testing.T) {
	alerts := []DisplayAlert{
		{AlertRecord: record("first", data.AlertOther, data.SeverityLow, now)},
		{AlertRecord: record("second", data.AlertOther, data.SeverityLow, now)},
		{AlertRecord: record("top", data.AlertOther, data.SeverityHigh, now.Add(-time.Hour))},
	}
	SortAlerts(alerts)
	if alerts[0].ID != "top" || alerts[1].ID != "first" || alerts[2].ID != "second" {
		t.Errorf("unexpected order: %s, %s, %s", alerts[0].ID, alerts[1].ID, alerts[2].ID)
	}
}

func TestDedupeUpgradesInPlace(t *testing.T) {
	in := []DisplayAlert{
		{AlertRecord: record("low", data.AlertVarroa, data.SeverityLow, now), BeehiveID: "h"},
		{AlertRecord: record("other", data.AlertOther, data.SeverityLow, now), BeehiveID: "h"},
		{AlertRecord: record("high", data.AlertVarroa, data.SeverityHigh, now), BeehiveID: "h"},
		{AlertRecord: record("medium", data.AlertVarroa, data.SeverityMedium, now), BeehiveID: "h"},
	}
	out := dedupe(in)
	if len(out) != 2 || out[0].ID != "high" || out[1].ID != "other" {
		t.Errorf("unexpected dedupe result: %+v", out)
	}
}

func TestSummarize(t *testing.T) {
	c := Summarize([]DisplayAlert{
		{AlertRecord: data.AlertRecord{Severity: data.SeverityHigh}},
		{AlertRecord: data.AlertRecord{Severity: data.SeverityHigh}},
		{AlertRecord: data.AlertRecord{Severity: data.SeverityLow}},
	})
	if c != (AlertCounts{Total: 3, High: 2, Low: 1}) {
		t.Errorf("counts = %+v", c)
	}
}

func TestAggregateEvaluatedUsesGivenEvaluations(t *testing.T) {
	h := hive("hive-2", "Hive 2")
	evals := map[string]anomaly.Evaluation{
		"hive-2": {
			IsCritical: true,
			Issues: []anomaly.Issue{
				{Metric: anomaly.MetricTemperature, Severity: anomaly.IssueCritical, Text: "Temperature critically high"},
			},
		},
	}

	got := AggregateEvaluated([]data.Beehive{h}, evals, now)
	if len(got) != 1 || got[0].Message != "Temperature critically high" || got[0].ID != "critical-hive-2-0" {
		t.Fatalf("AggregateEvaluated = %+v", got)
	}
	if got := AggregateEvaluated([]data.Beehive{h}, nil, now); len(got) != 0 {
		t.Errorf("missing evaluation should promote nothing, got %+v", got)
	}
}

func TestEvaluateAllMatchesAggregate(t *testing.T) {
	d := anomaly.NewDetector(anomaly.DefaultThresholds())

	cur := hive("hive-4", "Hive 4")
	cur.Metrics.Weight = 28.5
	prev := hive("hive-4", "Hive 4")
	previous := map[string]data.Beehive{"hive-4": prev}
	hives := []data.Beehive{cur, hive("hive-5", "Hive 5")}

	evals := EvaluateAll(d, hives, previous)
	if len(evals) != 2 || !evals["hive-4"].IsCritical || evals["hive-5"].IsCritical {
		t.Fatalf("EvaluateAll = %+v", evals)
	}
	want := Aggregate(d, hives, previous, now)
	got := AggregateEvaluated(hives, evals, now)
	if len(got) != len(want) || len(got) != 1 || got[0].ID != want[0].ID || got[0].Message != want[0].Message {
		t.Errorf("AggregateEvaluated = %+v, Aggregate = %+v", got, want)
	}
}
