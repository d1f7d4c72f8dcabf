// internal/anomaly/detector.go
package anomaly

import (
	"fmt"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

// MetricKind identifies which rule produced an issue.
type MetricKind string

const (
	MetricTemperature MetricKind = "temperature"
	MetricHumidity    MetricKind = "humidity"
	MetricVarroa      MetricKind = "varroa"
	MetricWeight      MetricKind = "weight"
	MetricActivity    MetricKind = "activity"
)

// AlertType maps the metric onto the alert record vocabulary.
func (k MetricKind) AlertType() data.AlertType {
	switch k {
	case MetricTemperature:
		return data.AlertTemperature
	case MetricHumidity:
		return data.AlertHumidity
	case MetricVarroa:
		return data.AlertVarroa
	case MetricWeight:
		return data.AlertWeight
	case MetricActivity:
		return data.AlertActivity
	}
	return data.AlertOther
}

type IssueSeverity string

const (
	IssueWarning  IssueSeverity = "warning"
	IssueCritical IssueSeverity = "critical"
)

// Issue is a single finding of the detector.
type Issue struct {
	Metric   MetricKind    `json:"metric"`
	Severity IssueSeverity `json:"severity"`
	Text     string        `json:"text"`
}

// Evaluation is the result of checking one hive.
type Evaluation struct {
	IsCritical bool    `json:"isCritical"`
	Issues     []Issue `json:"issues"`
}

// Messages returns the issue texts in evaluation order.
func (e Evaluation) Messages() []string {
	out := make([]string, 0, len(e.Issues))
	for _, i := range e.Issues {
		out = append(out, i.Text)
	}
	return out
}

// Critical returns only the critical issues, in evaluation order.
func (e Evaluation) Critical() []Issue {
	var out []Issue
	for _, i := range e.Issues {
		if i.Severity == IssueCritical {
			out = append(out, i)
		}
	}
	return out
}

type Detector struct {
	thresholds     Thresholds
	activityChecks bool
}

type Option func(*Detector)

// WithActivityChecks turns the entrance activity minimum rule on or off.
// It is off by default.
func WithActivityChecks(enabled bool) Option {
	return func(d *Detector) { d.activityChecks = enabled }
}

func NewDetector(thresholds Thresholds, opts ...Option) *Detector {
	d := &Detector{thresholds: thresholds}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Thresholds() Thresholds { return d.thresholds }

func (d *Detector) ActivityChecksEnabled() bool { return d.activityChecks }

// Evaluate checks current against the threshold table. previous may be nil,
// in which case delta rules are skipped. Issues are ordered temperature,
// humidity, varroa, weight, then activity when enabled.
func (d *Detector) Evaluate(current data.Beehive, previous *data.Beehive) Evaluation {
	var ev Evaluation
	add := func(issue *Issue) {
		if issue == nil {
			return
		}
		ev.Issues = append(ev.Issues, *issue)
		if issue.Severity == IssueCritical {
			ev.IsCritical = true
		}
	}

	m := current.Metrics
	add(checkRange(MetricTemperature, "Temperature", m.Temperature, d.thresholds.Temperature))
	add(checkRange(MetricHumidity, "Humidity", m.Humidity, d.thresholds.Humidity))
	add(d.checkVarroa(m.VarroaMiteLevel))
	if previous != nil {
		add(d.checkWeightDrop(m.Weight, previous.Metrics.Weight))
	}
	if d.activityChecks {
		add(d.checkActivity(m.EntranceActivity))
	}

	return ev
}

// checkRange applies critical-low, critical-high, warning-low, warning-high
// in that order; the first match wins.
func checkRange(kind MetricKind, label string, v float64, r RangeThreshold) *Issue {
	switch {
	case v < r.CriticalMin:
		return &Issue{kind, IssueCritical,
			fmt.Sprintf("%s critically low: %.2f%s (below %.2f%s)", label, v, r.Unit, r.CriticalMin, r.Unit)}
	case v > r.CriticalMax:
		return &Issue{kind, IssueCritical,
			fmt.Sprintf("%s critically high: %.2f%s (above %.2f%s)", label, v, r.Unit, r.CriticalMax, r.Unit)}
	case v < r.IdealMin:
		return &Issue{kind, IssueWarning,
			fmt.Sprintf("%s warning: %.2f%s (below ideal minimum %.2f%s)", label, v, r.Unit, r.IdealMin, r.Unit)}
	case v > r.IdealMax:
		return &Issue{kind, IssueWarning,
			fmt.Sprintf("%s warning: %.2f%s (above ideal maximum %.2f%s)", label, v, r.Unit, r.IdealMax, r.Unit)}
	}
	return nil
}

func (d *Detector) checkVarroa(v float64) *Issue {
	t := d.thresholds.Varroa
	switch {
	case v > t.CriticalLevel:
		return &Issue{MetricVarroa, IssueCritical,
			fmt.Sprintf("Varroa mite level critically high: %.2f%s (above critical threshold %.2f%s)", v, t.Unit, t.CriticalLevel, t.Unit)}
	case v > t.WarningLevel:
		return &Issue{MetricVarroa, IssueWarning,
			fmt.Sprintf("Varroa mite level warning: %.2f%s (above warning threshold %.2f%s)", v, t.Unit, t.WarningLevel, t.Unit)}
	}
	return nil
}

func (d *Detector) checkWeightDrop(current, previous float64) *Issue {
	t := d.thresholds.Weight
	delta := current - previous
	if delta >= t.CriticalDelta {
		return nil
	}
	return &Issue{MetricWeight, IssueCritical,
		fmt.Sprintf("Weight critically decreased: %.2f%s (dropped %.2f%s since last reading)", current, t.Unit, -delta, t.Unit)}
}

func (d *Detector) checkActivity(v float64) *Issue {
	t := d.thresholds.EntranceActivity
	if v >= t.Min {
		return nil
	}
	return &Issue{MetricActivity, IssueCritical,
		fmt.Sprintf("Entrance activity critically low: %.2f (below %.2f)", v, t.Min)}
}
