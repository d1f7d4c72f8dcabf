// internal/data/parser_test.go
package data

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseTopLevelMetrics(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	raw := []byte(`{"hive_id":"hive-3","temperature":34.2,"humidity":61.5,"topic":"apiary/hive-3"}`)

	r, err := Parse(raw, now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.BeehiveID != "hive-3" {
		t.Errorf("BeehiveID = %q, want hive-3", r.BeehiveID)
	}
	if len(r.Values) != 2 {
		t.Fatalf("expected 2 values, got %d (%v)", len(r.Values), r.Values)
	}
	if !r.Timestamp.Equal(now) {
		t.Errorf("expected default timestamp %v, got %v", now, r.Timestamp)
	}
}

func TestParseNestedMetricsAndTimestamp(t *testing.T) {
	raw := []byte(`{"beehiveId":"hive-1","timestamp":"2025-06-01T08:30:00Z","metrics":{"weight":27.5}}`)

	r, err := Parse(raw, time.Now())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := r.Values["weight"]; got != 27.5 {
		t.Errorf("weight = %v, want 27.5", got)
	}
	want := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	if !r.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", r.Timestamp, want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"missing id", `{"temperature":30}`, ErrMissingBeehiveID},
		{"no metrics", `{"device":"hive-2","foo":1}`, ErrNoMetrics},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw), time.Now())
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := Parse([]byte(`not json`), time.Now()); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Parse([]byte(`{"device":"hive-2","humidity":"wet"}`), time.Now()); err == nil {
		t.Fatal("expected type error for string metric")
	}
}

func TestReadingApply(t *testing.T) {
	base := Metrics{Temperature: 34, Humidity: 60, Weight: 30, PopulationEstimate: 20000}
	r := &Reading{BeehiveID: "hive-1", Values: map[string]float64{"humidity": 78.5, "populationEstimate": 25000}}

	got, err := r.Apply(base)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Humidity != 78.5 || got.PopulationEstimate != 25000 {
		t.Errorf("unexpected metrics after apply: %+v", got)
	}
	if got.Temperature != 34 {
		t.Errorf("untouched field changed: temperature = %v", got.Temperature)
	}
	if base.Humidity != 60 {
		t.Error("Apply mutated its input")
	}
}

func TestMetricsValidate(t *testing.T) {
	if err := (Metrics{Temperature: 34}).Validate(); err != nil {
		t.Fatalf("finite metrics rejected: %v", err)
	}
	err := (Metrics{Weight: math.Inf(-1)}).Validate()
	if !errors.Is(err, ErrNonFiniteMetric) {
		t.Fatalf("expected ErrNonFiniteMetric, got %v", err)
	}
	err = (Metrics{Humidity: math.NaN()}).Validate()
	if !errors.Is(err, ErrNonFiniteMetric) {
		t.Fatalf("expected ErrNonFiniteMetric for NaN, got %v", err)
	}
}

func TestSeverityRank(t *testing.T) {
	if !SeverityHigh.AtLeast(SeverityMedium) || !SeverityMedium.AtLeast(SeverityMedium) {
		t.Error("high and medium should clear a medium floor")
	}
	if SeverityLow.AtLeast(SeverityMedium) {
		t.Error("low should not clear a medium floor")
	}
	if _, err := ParseSeverity("urgent"); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestUnresolvedAlertsAndClone(t *testing.T) {
	hive := Beehive{
		ID: "hive-1",
		Alerts: []AlertRecord{
			{ID: "a", Resolved: false},
			{ID: "b", Resolved: true},
		},
	}
	open := hive.UnresolvedAlerts()
	if len(open) != 1 || open[0].ID != "a" {
		t.Fatalf("unexpected unresolved alerts: %+v", open)
	}

	c := hive.Clone()
	c.Alerts[0].Resolved = true
	if hive.Alerts[0].Resolved {
		t.Error("Clone shares the alerts slice")
	}
}
