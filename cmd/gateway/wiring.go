// cmd/gateway/wiring.go
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/alerting"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/bus"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/config"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/logging"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/metrics"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/notify"
)

// app holds what every command needs after configuration is loaded.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	publisher bus.Publisher
	detector  *anomaly.Detector
}

func setup(overrides map[string]interface{}) (*app, error) {
	cfg, err := config.Load(configPath, overrides)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	if cfg.File != "" {
		logger.Info("configuration loaded", zap.String("file", cfg.File))
	} else {
		logger.Warn("no config file found, running on defaults and environment")
	}

	publisher, err := bus.New(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("event bus: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		publisher: publisher,
		detector: anomaly.NewDetector(cfg.Thresholds,
			anomaly.WithActivityChecks(cfg.Evaluation.EnableActivityChecks)),
	}, nil
}

func (a *app) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("close event bus", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// transports builds the email and SMS transports named in the config.
func (a *app) transports() (email, sms notify.Transport) {
	t := a.cfg.Transport
	switch t.Email {
	case "smtp":
		email = notify.NewSMTPTransport(t.SMTP)
	case "http":
		email = notify.NewHTTPTransport(t.HTTP.URL, t.HTTP.Timeout)
	case "bus":
		email = notify.NewBusTransport(alerting.ChannelEmail, a.cfg.Bus.NotificationSubject, a.publisher)
	default:
		email = notify.NewLogTransport(alerting.ChannelEmail, a.logger)
	}
	switch t.SMS {
	case "bus":
		sms = notify.NewBusTransport(alerting.ChannelSMS, a.cfg.Bus.NotificationSubject, a.publisher)
	default:
		sms = notify.NewLogTransport(alerting.ChannelSMS, a.logger)
	}
	return email, sms
}

func (a *app) dispatcher(m *metrics.Metrics) *alerting.Dispatcher {
	email, sms := a.transports()
	a.logger.Info("notification transports",
		zap.String("email", email.Name()),
		zap.String("sms", sms.Name()),
	)
	opts := []alerting.DispatcherOption{alerting.WithLogger(a.logger.Named("dispatch"))}
	if m != nil {
		opts = append(opts, alerting.WithMetrics(m))
	}
	return alerting.NewDispatcher(a.detector, email, sms, a.cfg.Notifications(), opts...)
}
