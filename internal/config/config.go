// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/alerting"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/anomaly"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/bus"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/logging"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/notify"
)

// EnvPrefix is prepended to every environment override, e.g.
// BEEHIVE_SERVER_DATA_PORT or BEEHIVE_NOTIFICATION_ALERT_THRESHOLD.
const EnvPrefix = "BEEHIVE"

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server struct {
		DataPort        int           `mapstructure:"data_port"`
		UIPort          int           `mapstructure:"ui_port"`
		WebDir          string        `mapstructure:"web_dir"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	Telemetry struct {
		Interval        time.Duration `mapstructure:"interval"`
		HiveCount       int           `mapstructure:"hive_count"`
		Seed            uint64        `mapstructure:"seed"`
		HistorySize     int           `mapstructure:"history_size"`
		DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	} `mapstructure:"telemetry"`
	Thresholds anomaly.Thresholds `mapstructure:"thresholds"`
	Evaluation struct {
		EnableActivityChecks bool `mapstructure:"enable_activity_checks"`
	} `mapstructure:"evaluation"`
	Notification struct {
		EnableEmail     bool     `mapstructure:"enable_email"`
		EnableSMS       bool     `mapstructure:"enable_sms"`
		EmailRecipients []string `mapstructure:"email_recipients"`
		PhoneNumbers    []string `mapstructure:"phone_numbers"`
		AlertThreshold  string   `mapstructure:"alert_threshold"`
	} `mapstructure:"notification"`
	Transport struct {
		Email string            `mapstructure:"email"` // log, smtp, http, bus
		SMS   string            `mapstructure:"sms"`   // log, bus
		SMTP  notify.SMTPConfig `mapstructure:"smtp"`
		HTTP  struct {
			URL     string        `mapstructure:"url"`
			Timeout time.Duration `mapstructure:"timeout"`
		} `mapstructure:"http"`
	} `mapstructure:"transport"`
	Bus bus.Config     `mapstructure:"bus"`
	Log logging.Config `mapstructure:"log"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-"`
}

// Load reads config.yaml from path (a directory or a file), applies
// BEEHIVE_* environment overrides and then overrides, and validates the
// result. A missing config.yaml in a directory is not an error.
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json", ".toml":
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
	default:
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if path == "" {
			path = "."
		}
		v.AddConfigPath(path)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.data_port", 8080)
	v.SetDefault("server.ui_port", 8081)
	v.SetDefault("server.web_dir", "./web")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("telemetry.interval", 5*time.Second)
	v.SetDefault("telemetry.hive_count", 12)
	v.SetDefault("telemetry.seed", 0)
	v.SetDefault("telemetry.history_size", 100)
	v.SetDefault("telemetry.dispatch_timeout", 30*time.Second)

	th := anomaly.DefaultThresholds()
	for name, r := range map[string]anomaly.RangeThreshold{"temperature": th.Temperature, "humidity": th.Humidity} {
		v.SetDefault("thresholds."+name+".ideal_min", r.IdealMin)
		v.SetDefault("thresholds."+name+".ideal_max", r.IdealMax)
		v.SetDefault("thresholds."+name+".critical_min", r.CriticalMin)
		v.SetDefault("thresholds."+name+".critical_max", r.CriticalMax)
		v.SetDefault("thresholds."+name+".unit", r.Unit)
	}
	v.SetDefault("thresholds.varroa.warning_level", th.Varroa.WarningLevel)
	v.SetDefault("thresholds.varroa.critical_level", th.Varroa.CriticalLevel)
	v.SetDefault("thresholds.varroa.unit", th.Varroa.Unit)
	v.SetDefault("thresholds.weight.critical_delta", th.Weight.CriticalDelta)
	v.SetDefault("thresholds.weight.unit", th.Weight.Unit)
	v.SetDefault("thresholds.entrance_activity.min", th.EntranceActivity.Min)
	v.SetDefault("thresholds.entrance_activity.unit", th.EntranceActivity.Unit)

	v.SetDefault("evaluation.enable_activity_checks", false)

	v.SetDefault("notification.enable_email", true)
	v.SetDefault("notification.enable_sms", true)
	v.SetDefault("notification.email_recipients", []string{})
	v.SetDefault("notification.phone_numbers", []string{})
	v.SetDefault("notification.alert_threshold", string(data.SeverityMedium))

	v.SetDefault("transport.email", "log")
	v.SetDefault("transport.sms", "log")
	v.SetDefault("transport.smtp.host", "smtp.mailgun.org")
	v.SetDefault("transport.smtp.port", 587)
	v.SetDefault("transport.smtp.username", "")
	v.SetDefault("transport.smtp.password", "")
	v.SetDefault("transport.smtp.from", "Beehive Monitor <alerts@beehive.local>")
	v.SetDefault("transport.http.url", "http://localhost:3000/api/send-email")
	v.SetDefault("transport.http.timeout", 10*time.Second)

	v.SetDefault("bus.driver", "none")
	v.SetDefault("bus.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("bus.kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("bus.state_subject", "beehive.alerts")
	v.SetDefault("bus.notification_subject", "beehive.notifications")
	v.SetDefault("bus.publish_timeout", 5*time.Second)

	lc := logging.DefaultConfig()
	v.SetDefault("log.level", lc.Level)
	v.SetDefault("log.format", lc.Format)
	v.SetDefault("log.output", lc.Output)
	v.SetDefault("log.file", lc.File)
	v.SetDefault("log.max_size_mb", lc.MaxSizeMB)
	v.SetDefault("log.max_backups", lc.MaxBackups)
	v.SetDefault("log.max_age_days", lc.MaxAgeDays)
	v.SetDefault("log.compress", lc.Compress)
}

// Validate checks the parts of the configuration that would otherwise fail
// late. Threshold errors wrap anomaly.ErrInvalidThresholds.
func (c *Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if _, err := data.ParseSeverity(c.Notification.AlertThreshold); err != nil {
		return fmt.Errorf("%w: notification.alert_threshold: %v", ErrInvalidConfig, err)
	}
	if c.Server.DataPort <= 0 || c.Server.UIPort <= 0 {
		return fmt.Errorf("%w: server ports must be positive", ErrInvalidConfig)
	}
	if c.Telemetry.Interval <= 0 {
		return fmt.Errorf("%w: telemetry.interval must be positive", ErrInvalidConfig)
	}
	switch c.Transport.Email {
	case "log", "smtp", "http", "bus":
	default:
		return fmt.Errorf("%w: unknown email transport %q", ErrInvalidConfig, c.Transport.Email)
	}
	switch c.Transport.SMS {
	case "log", "bus":
	default:
		return fmt.Errorf("%w: unknown sms transport %q", ErrInvalidConfig, c.Transport.SMS)
	}
	if (c.Transport.Email == "bus" || c.Transport.SMS == "bus") && (c.Bus.Driver == "" || c.Bus.Driver == "none") {
		return fmt.Errorf("%w: bus transport needs bus.driver nats or kafka", ErrInvalidConfig)
	}
	return nil
}

// Notifications converts the notification section for the dispatcher.
func (c *Config) Notifications() alerting.NotificationConfig {
	// Validate has already accepted the threshold
	sev, _ := data.ParseSeverity(c.Notification.AlertThreshold)
	return alerting.NotificationConfig{
		EnableEmail:     c.Notification.EnableEmail,
		EnableSMS:       c.Notification.EnableSMS,
		EmailRecipients: c.Notification.EmailRecipients,
		PhoneNumbers:    c.Notification.PhoneNumbers,
		AlertThreshold:  sev,
	}
}
