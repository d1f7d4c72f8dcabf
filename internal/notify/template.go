// internal/notify/template.go
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
)

var alertEmail = template.Must(template.New("alert").Funcs(template.FuncMap{
	"fixed": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Beehive Alert: {{.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: #FFA500; color: white; padding: 15px; border-radius: 5px 5px 0 0; }
    .content { border: 1px solid #ddd; border-top: none; padding: 20px; border-radius: 0 0 5px 5px; }
    .alert-message { background-color: #FFF4E6; border-left: 4px solid #FF3B30; margin-bottom: 15px; padding: 10px; }
    .metrics { background-color: #F5F5F5; padding: 15px; border-radius: 5px; margin-top: 20px; }
    .footer { margin-top: 30px; font-size: 12px; color: #777; }
  </style>
</head>
<body>
  <div class="header"><h1>Beehive Alert: {{.Name}}</h1></div>
  <div class="content">
    <p>The following conditions have been detected for <strong>{{.Name}}</strong>:</p>
    <div class="alerts">
    {{- range .Messages}}
      <div class="alert-message"><p>{{.}}</p></div>
    {{- end}}
    </div>
    <div class="metrics">
      <h3>Current Metrics:</h3>
      <table class="metrics-table">
        <tr><td><strong>Temperature:</strong></td><td>{{fixed .Metrics.Temperature}}°C</td></tr>
        <tr><td><strong>Humidity:</strong></td><td>{{fixed .Metrics.Humidity}}%</td></tr>
        <tr><td><strong>Weight:</strong></td><td>{{fixed .Metrics.Weight}} kg</td></tr>
        <tr><td><strong>Entrance Activity:</strong></td><td>{{fixed .Metrics.EntranceActivity}}/100</td></tr>
      </table>
    </div>
    <p><strong>Please take immediate action if needed.</strong></p>
    <div class="footer">
      <p>This is an automated alert from the Buzzed Beehive Monitoring System.</p>
      <p>Time: {{.Time}}</p>
    </div>
  </div>
</body>
</html>
`))

var testEmail = template.Must(template.New("test").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Buzzed Monitoring Test Email</title></head>
<body>
  <h1>Buzzed Monitoring Test Email</h1>
  <p>Success! If you're reading this, your email configuration is working correctly.</p>
  <p>This is a test email sent from the Buzzed Beehive Monitoring System.</p>
  <p>Time: {{.}}</p>
</body>
</html>
`))

// AlertEmail renders the HTML body of a hive alert email with a table of the
// four core metrics.
func AlertEmail(name string, messages []string, metrics data.Metrics, now time.Time) (string, error) {
	var buf bytes.Buffer
	err := alertEmail.Execute(&buf, struct {
		Name     string
		Messages []string
		Metrics  data.Metrics
		Time     string
	}{name, messages, metrics, now.Format(time.RFC1123)})
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}

// TestEmail builds the message sent by the test-email command.
func TestEmail(recipients []string, now time.Time) (Message, error) {
	var buf bytes.Buffer
	stamp := now.Format(time.RFC1123)
	if err := testEmail.Execute(&buf, stamp); err != nil {
		return Message{}, fmt.Errorf("render test email: %w", err)
	}
	return Message{
		Recipients: recipients,
		Subject:    "Buzzed Monitoring - Test Email",
		HTMLBody:   buf.String(),
		TextBody: "Buzzed Monitoring Test Email\n\nSuccess! If you're receiving this, your email configuration is working correctly.\n\n" +
			"This is a test email sent at " + stamp + ".\n\nNo action is required.",
	}, nil
}
