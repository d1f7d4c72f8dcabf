// internal/alerting/alerter.go
package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/notify"
)

// Dispatch rules. They fire independently and may both notify about the
// same underlying condition.
const (
	RuleCriticalMetrics = "critical-metrics"
	RuleStoredAlerts    = "stored-alerts"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// NotificationConfig controls who gets notified and how.
type NotificationConfig struct {
	EnableEmail     bool               `json:"enableEmail"`
	EnableSMS       bool               `json:"enableSMS"`
	EmailRecipients []string           `json:"emailRecipients"`
	PhoneNumbers    []string           `json:"phoneNumbers"`
	AlertThreshold  data.AlertSeverity `json:"alertThreshold"`
}

// Attempt is one transport call made during a dispatch.
type Attempt struct {
	Rule    string        `json:"rule"`
	Channel string        `json:"channel"`
	AlertID string        `json:"alertId,omitempty"`
	Subject string        `json:"subject,omitempty"`
	Result  notify.Result `json:"result"`
}

// Report lists every attempt of a dispatch in call order.
type Report struct {
	BeehiveID string    `json:"beehiveId"`
	Attempts  []Attempt `json:"attempts"`
}

// Count returns the number of attempts for a rule and channel.
func (r Report) Count(rule, channel string) int {
	n := 0
	for _, a := range r.Attempts {
		if a.Rule == rule && a.Channel == channel {
			n++
		}
	}
	return n
}

// Failed returns the attempts that were not delivered.
func (r Report) Failed() []Attempt {
	var out []Attempt
	for _, a := range r.Attempts {
		if !a.Result.Success {
			out = append(out, a)
		}
	}
	return out
}

type Dispatcher struct {
	detector *anomaly.Detector
	email    notify.Transport
	sms      notify.Transport
	cfg      NotificationConfig
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type DispatcherOption func(*Dispatcher)

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(detector *anomaly.Detector, email, sms notify.Transport, cfg NotificationConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		detector: detector,
		email:    email,
		sms:      sms,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Config() NotificationConfig { return d.cfg }

// Dispatch evaluates hive and sends notifications through both rules.
// Transport failures are logged and recorded; they never stop the remaining
// sends. There are no retries.
func (d *Dispatcher) Dispatch(ctx context.Context, hive data.Beehive, previous *data.Beehive) Report {
	report := Report{BeehiveID: hive.ID}

	ev := d.detector.Evaluate(hive, previous)
	d.criticalMetrics(ctx, hive, ev, &report)
	d.storedAlerts(ctx, hive, &report)

	if failed := report.Failed(); len(failed) > 0 {
		d.logger.Warn("some notifications were not delivered",
			zap.String("beehive_id", hive.ID),
			zap.Int("failed", len(failed)),
			zap.Int("attempted", len(report.Attempts)),
		)
	}
	return report
}

func (d *Dispatcher) criticalMetrics(ctx context.Context, hive data.Beehive, ev anomaly.Evaluation, report *Report) {
	if !ev.IsCritical {
		return
	}

	if d.cfg.EnableEmail {
		subject := fmt.Sprintf("CRITICAL ALERT: %s requires immediate attention", hive.Name)
		lines := append([]string{
			fmt.Sprintf("Critical alerts detected for %s at %s:", hive.Name, hive.Location),
		}, ev.Messages()...)
		d.sendEmail(ctx, RuleCriticalMetrics, "", hive, subject, lines, report)
	}

	if d.cfg.EnableSMS {
		first := ev.Critical()[0].Text
		text := fmt.Sprintf("ALERT: %s has critical issues: %s", hive.Name, first)
		if rest := len(ev.Issues) - 1; rest > 0 {
			text += fmt.Sprintf(" and %d more issues", rest)
		}
		d.sendSMS(ctx, RuleCriticalMetrics, "", hive, text, report)
	}
}

func (d *Dispatcher) storedAlerts(ctx context.Context, hive data.Beehive, report *Report) {
	for _, alert := range hive.UnresolvedAlerts() {
		if !alert.Severity.AtLeast(d.cfg.AlertThreshold) {
			continue
		}

		if d.cfg.EnableEmail {
			prefix := "WARNING"
			if alert.Severity == data.SeverityHigh {
				prefix = "URGENT"
			}
			subject := fmt.Sprintf("%s %s: %s", prefix, hive.Name, alert.Message)
			lines := []string{fmt.Sprintf("Alert type: %s", alert.Type), alert.Message}
			d.sendEmail(ctx, RuleStoredAlerts, alert.ID, hive, subject, lines, report)
		}

		// medium and low alerts never go out by SMS
		if d.cfg.EnableSMS && alert.Severity == data.SeverityHigh {
			text := fmt.Sprintf("ALERT: %s - %s", hive.Name, alert.Message)
			d.sendSMS(ctx, RuleStoredAlerts, alert.ID, hive, text, report)
		}
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, rule, alertID string, hive data.Beehive, subject string, lines []string, report *Report) {
	html, err := notify.AlertEmail(hive.Name, lines, hive.Metrics, d.now())
	if err != nil {
		d.record(rule, ChannelEmail, alertID, subject, hive.ID, notify.Result{Error: err.Error()}, report)
		return
	}
	msg := notify.Message{
		Recipients: d.cfg.EmailRecipients,
		Subject:    subject,
		HTMLBody:   html,
		TextBody:   fmt.Sprintf("Alert: %s\n\n%s requires attention.\n%s", subject, hive.Name, strings.Join(lines, "\n")),
		Key:        hive.ID,
	}
	d.record(rule, ChannelEmail, alertID, subject, hive.ID, d.email.Send(ctx, msg), report)
}

func (d *Dispatcher) sendSMS(ctx context.Context, rule, alertID string, hive data.Beehive, text string, report *Report) {
	msg := notify.Message{
		Recipients: d.cfg.PhoneNumbers,
		TextBody:   text,
		Key:        hive.ID,
	}
	d.record(rule, ChannelSMS, alertID, "", hive.ID, d.sms.Send(ctx, msg), report)
}

func (d *Dispatcher) record(rule, channel, alertID, subject, hiveID string, res notify.Result, report *Report) {
	report.Attempts = append(report.Attempts, Attempt{
		Rule:    rule,
		Channel: channel,
		AlertID: alertID,
		Subject: subject,
		Result:  res,
	})
	if d.metrics != nil {
		d.metrics.NotificationOutcome(rule, channel, res.Success)
	}

	if !res.Success {
		d.logger.Warn("notification not delivered",
			zap.String("rule", rule),
			zap.String("channel", channel),
			zap.String("beehive_id", hiveID),
			zap.String("alert_id", alertID),
			zap.String("error", res.Error),
		)
		return
	}
	d.logger.Info("notification sent",
		zap.String("rule", rule),
		zap.String("channel", channel),
		zap.String("beehive_id", hiveID),
		zap.String("message_id", res.MessageID),
	)
}
