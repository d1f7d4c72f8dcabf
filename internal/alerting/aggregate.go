// internal/alerting/aggregate.go
package alerting

import (
	"fmt"
	"slices"
	"time"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

// DisplayAlert is one row of the dashboard alert list. It is either a stored
// alert record or a detector issue promoted for display.
type DisplayAlert struct {
	data.AlertRecord
	BeehiveID        string          `json:"beehiveId"`
	BeehiveName      string          `json:"beehiveName"`
	Status           data.HiveStatus `json:"status"`
	IsCriticalMetric bool            `json:"isCriticalMetric"`
	// IssueSeverity is the detector's own severity for promoted issues.
	// Display severity for those is always high.
	IssueSeverity anomaly.IssueSeverity `json:"issueSeverity,omitempty"`
}

func (a DisplayAlert) key() string {
	return a.BeehiveID + "\x00" + string(a.Type)
}

// Aggregate evaluates every hive and merges the findings with the unresolved
// alert records into one deduplicated list, ordered by severity then recency.
func Aggregate(detector *anomaly.Detector, hives []data.Beehive, previous map[string]data.Beehive, now time.Time) []DisplayAlert {
	return AggregateEvaluated(hives, EvaluateAll(detector, hives, previous), now)
}

// EvaluateAll runs the detector over hives, keyed by beehive id. A hive
// missing from previous is evaluated without a weight delta.
func EvaluateAll(detector *anomaly.Detector, hives []data.Beehive, previous map[string]data.Beehive) map[string]anomaly.Evaluation {
	out := make(map[string]anomaly.Evaluation, len(hives))
	for _, hive := range hives {
		var prev *data.Beehive
		if p, ok := previous[hive.ID]; ok {
			prev = &p
		}
		out[hive.ID] = detector.Evaluate(hive, prev)
	}
	return out
}

// AggregateEvaluated builds the display list from evaluations that were
// already computed for hives.
//
// Detector issues are only promoted for hives whose evaluation is critical;
// they are shown at high severity and placed ahead of stored records, so on
// a severity tie the promoted issue is kept. Activity alerts never appear.
func AggregateEvaluated(hives []data.Beehive, evaluations map[string]anomaly.Evaluation, now time.Time) []DisplayAlert {
	var promoted, stored []DisplayAlert

	for _, hive := range hives {
		promoted = append(promoted, promote(hive, evaluations[hive.ID], now)...)

		for _, rec := range hive.UnresolvedAlerts() {
			if rec.Type == data.AlertActivity {
				continue
			}
			stored = append(stored, DisplayAlert{
				AlertRecord: rec,
				BeehiveID:   hive.ID,
				BeehiveName: hive.Name,
				Status:      hive.Status,
			})
		}
	}

	merged := dedupe(append(promoted, stored...))
	SortAlerts(merged)
	return merged
}

// promote converts the issues of a critical evaluation into display alerts.
func promote(hive data.Beehive, ev anomaly.Evaluation, now time.Time) []DisplayAlert {
	if !ev.IsCritical {
		return nil
	}
	out := make([]DisplayAlert, 0, len(ev.Issues))
	for idx, issue := range ev.Issues {
		typ := issue.Metric.AlertType()
		if typ == data.AlertActivity {
			continue
		}
		out = append(out, DisplayAlert{
			AlertRecord: data.AlertRecord{
				ID:        fmt.Sprintf("critical-%s-%d", hive.ID, idx),
				Type:      typ,
				Severity:  data.SeverityHigh,
				Message:   issue.Text,
				Timestamp: now,
			},
			BeehiveID:        hive.ID,
			BeehiveName:      hive.Name,
			Status:           hive.Status,
			IsCriticalMetric: true,
			IssueSeverity:    issue.Severity,
		})
	}
	return out
}

// dedupe keeps one alert per (hive, type): the first seen unless a later one
// has strictly higher severity, in which case it takes the earlier slot.
func dedupe(alerts []DisplayAlert) []DisplayAlert {
	index := make(map[string]int, len(alerts))
	out := make([]DisplayAlert, 0, len(alerts))
	for _, a := range alerts {
		if i, seen := index[a.key()]; seen {
			if a.Severity.Rank() > out[i].Severity.Rank() {
				out[i] = a
			}
			continue
		}
		index[a.key()] = len(out)
		out = append(out, a)
	}
	return out
}

// SortAlerts orders alerts by severity descending, then timestamp descending.
// Full ties keep their relative order.
func SortAlerts(alerts []DisplayAlert) {
	slices.SortStableFunc(alerts, func(a, b DisplayAlert) int {
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return rb - ra
		}
		return b.Timestamp.Compare(a.Timestamp)
	})
}

// AlertCounts summarizes a display list for the dashboard header.
type AlertCounts struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// For returns the count for one severity.
func (c AlertCounts) For(sev data.AlertSeverity) int {
	switch sev {
	case data.SeverityHigh:
		return c.High
	case data.SeverityMedium:
		return c.Medium
	case data.SeverityLow:
		return c.Low
	}
	return 0
}

func Summarize(alerts []DisplayAlert) AlertCounts {
	c := AlertCounts{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case data.SeverityHigh:
			c.High++
		case data.SeverityMedium:
			c.Medium++
		case data.SeverityLow:
			c.Low++
		}
	}
	return c
}
