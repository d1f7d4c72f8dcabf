// cmd/gateway/cmd_evaluate.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/data"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/monitor"
	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/telemetry"
)

var (
	evaluateFile   string
	evaluateNotify string
	evaluateJSON   bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a snapshot fixture once",
	Long: `Run the evaluator and aggregator over a YAML or JSON apiary fixture and
print the per-hive evaluations and the aggregated alert list. An optional
"previous" list in the fixture enables weight-delta checks. With --notify the
named hive is dispatched through the configured transports.`,
	Example: `  gateway evaluate --file testdata/apiary.yaml
  gateway evaluate --file testdata/apiary.yaml --notify hive-1`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVarP(&evaluateFile, "file", "f", "", "fixture file (YAML or JSON)")
	evaluateCmd.Flags().StringVar(&evaluateNotify, "notify", "", "dispatch notifications for this beehive id")
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "print the resulting state as JSON")
	_ = evaluateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(evaluateCmd)
}

// fixture is an apiary snapshot plus the hives as they were one reading
// earlier.
type fixture struct {
	data.ApiaryData `yaml:",inline"`
	Previous        []data.Beehive `yaml:"previous"`
}

func loadFixture(r io.Reader) (fixture, error) {
	var f fixture
	raw, err := io.ReadAll(r)
	if err != nil {
		return f, err
	}
	// JSON is valid YAML, so one decoder serves both
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("decode fixture: %w", err)
	}
	if len(f.Beehives) == 0 {
		return f, errors.New("fixture has no beehives")
	}
	for _, list := range [][]data.Beehive{f.Beehives, f.Previous} {
		for _, h := range list {
			if h.ID == "" {
				return f, errors.New("fixture beehive without id")
			}
			if err := h.Metrics.Validate(); err != nil {
				return f, fmt.Errorf("beehive %s: %w", h.ID, err)
			}
		}
	}
	return f, nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	file, err := os.Open(evaluateFile)
	if err != nil {
		return err
	}
	defer file.Close()
	fx, err := loadFixture(file)
	if err != nil {
		return err
	}

	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer a.close()

	src := telemetry.NewStatic(fx.ApiaryData)
	mon := monitor.New(monitor.Config{}, src, a.detector, a.dispatcher(nil),
		monitor.WithLogger(a.logger.Named("monitor")))
	if len(fx.Previous) > 0 {
		prev := fx.ApiaryData
		prev.Beehives = fx.Previous
		src.Replace(prev)
		mon.Tick(cmd.Context())
		src.Replace(fx.ApiaryData)
	}
	state := mon.Tick(cmd.Context())

	if evaluateNotify != "" {
		if _, err := mon.Select(cmd.Context(), evaluateNotify); err != nil {
			return fmt.Errorf("notify %s: %w", evaluateNotify, err)
		}
		mon.Wait()
	}

	out := cmd.OutOrStdout()
	if evaluateJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*monitor.State
			Report interface{} `json:"report,omitempty"`
		}{state, mon.LastReport()})
	}
	printState(out, state)
	if r := mon.LastReport(); r != nil {
		fmt.Fprintf(out, "\nNOTIFICATIONS for %s\n", r.BeehiveID)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE\tCHANNEL\tALERT\tRESULT")
		for _, at := range r.Attempts {
			result := "delivered " + at.Result.MessageID
			if !at.Result.Success {
				result = "failed: " + at.Result.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", at.Rule, at.Channel, dash(at.AlertID), result)
		}
		tw.Flush()
	}
	return nil
}

func printState(out io.Writer, st *monitor.State) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BEEHIVE\tCRITICAL\tISSUES")
	for _, h := range st.Apiary.Beehives {
		ev := st.Evaluations[h.ID]
		fmt.Fprintf(tw, "%s\t%t\t%s\n", h.ID, ev.IsCritical, dash(strings.Join(ev.Messages(), "; ")))
	}
	tw.Flush()

	fmt.Fprintf(out, "\nALERTS (%d high, %d medium, %d low)\n", st.Counts.High, st.Counts.Medium, st.Counts.Low)
	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tBEEHIVE\tTYPE\tSOURCE\tMESSAGE")
	for _, al := range st.Alerts {
		source := "stored"
		if al.IsCriticalMetric {
			source = "evaluator/" + string(al.IssueSeverity)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", al.Severity, al.BeehiveID, al.Type, source, al.Message)
	}
	tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
