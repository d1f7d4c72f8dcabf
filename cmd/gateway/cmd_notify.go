// cmd/gateway/cmd_notify.go
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SpoonJoon/AgTech-Hackathon-Cornell/internal/notify"
)

var testEmailTo []string

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Send a test email through the configured transport",
	Long: `Send a short test message to check that the email transport is set up.
Recipients default to notification.email_recipients.`,
	RunE: runTestEmail,
}

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Print the effective threshold table",
	Long:  `Print the threshold table after defaults, config file and environment are applied, in config-file form.`,
	RunE:  runThresholds,
}

func init() {
	testEmailCmd.Flags().StringSliceVar(&testEmailTo, "to", nil, "recipient addresses (comma separated)")
	rootCmd.AddCommand(testEmailCmd)
	rootCmd.AddCommand(thresholdsCmd)
}

func runTestEmail(cmd *cobra.Command, args []string) error {
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer a.close()

	recipients := testEmailTo
	if len(recipients) == 0 {
		recipients = a.cfg.Notification.EmailRecipients
	}
	if len(recipients) == 0 {
		return errors.New("no recipients: pass --to or set notification.email_recipients")
	}

	msg, err := notify.TestEmail(recipients, time.Now())
	if err != nil {
		return err
	}
	email, _ := a.transports()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	res := email.Send(ctx, msg)
	if !res.Success {
		return fmt.Errorf("test email via %s failed: %s", email.Name(), res.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "test email sent via %s (message id %s)\n", email.Name(), res.MessageID)
	return nil
}

func runThresholds(cmd *cobra.Command, args []string) error {
	a, err := setup(nil)
	if err != nil {
		return err
	}
	defer a.close()

	out := struct {
		Thresholds interface{} `yaml:"thresholds"`
		Evaluation struct {
			EnableActivityChecks bool `yaml:"enable_activity_checks"`
		} `yaml:"evaluation"`
	}{Thresholds: a.detector.Thresholds()}
	out.Evaluation.EnableActivityChecks = a.detector.ActivityChecksEnabled()

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
