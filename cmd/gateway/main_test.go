// cmd/gateway/main_test.go
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "apiary.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	fx, err := loadFixture(f)
	if err != nil {
		t.Fatalf("loadFixture: %v", err)
	}
	if fx.ApiaryName != "Cornell Apiary" || len(fx.Beehives) != 3 || len(fx.Previous) != 1 {
		t.Fatalf("fixture = %+v", fx)
	}
	if h := fx.Beehives[0]; h.Metrics.Humidity != 78.5 || len(h.Alerts) != 1 || h.Alerts[0].Timestamp.Hour() != 10 {
		t.Errorf("hive-1 = %+v", h)
	}
}

func TestLoadFixtureJSONAndErrors(t *testing.T) {
	fx, err := loadFixture(strings.NewReader(`{"beehives":[{"id":"hive-2","metrics":{"varroaMiteLevel":3.4}}]}`))
	if err != nil {
		t.Fatalf("json fixture: %v", err)
	}
	if fx.Beehives[0].Metrics.VarroaMiteLevel != 3.4 {
		t.Errorf("json fixture = %+v", fx)
	}

	bad := []string{
		`beehives: []`,
		`beehives: [{name: no id}]`,
		`beehives: [{id: hive-1, metrics: {temperature: .nan}}]`,
		`beehives: {`,
	}
	for _, body := range bad {
		if _, err := loadFixture(strings.NewReader(body)); err == nil {
			t.Errorf("%q: expected an error", body)
		}
	}
}

func quietConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "log:\n  level: error\nnotification:\n  email_recipients: [keeper@example.com]\n  phone_numbers: [\"6075550100\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		evaluateNotify, evaluateJSON = "", false
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out.String()
}

func TestEvaluateCommand(t *testing.T) {
	out := execute(t, "evaluate", "--config", quietConfig(t), "--file", filepath.Join("testdata", "apiary.yaml"), "--notify", "hive-1")

	for _, want := range []string{
		"ALERTS (2 high, 1 medium, 0 low)",
		"Humidity critically high: 78.50% (above 75.00%)",
		"Weight critically decreased: 28.50kg (dropped 1.50kg since last reading)",
		"Warning: Varroa mite level elevated: 2.8%",
		"NOTIFICATIONS for hive-1",
		"critical-metrics",
		"stored-alerts",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "failed:") {
		t.Errorf("log transports should always deliver:\n%s", out)
	}
}

func TestThresholdsCommand(t *testing.T) {
	out := execute(t, "thresholds", "--config", quietConfig(t))
	for _, want := range []string{"critical_max: 38", "warning_level: 2", "critical_delta: -1", "enable_activity_checks: false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
