package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"audio-digest/internal/bootstrap"
	"audio-digest/internal/diagnostics"
	"audio-digest/internal/domain"
)

func (c *cli) doctorCommand() *cobra.Command {
	var transcribeOnly, summaryOnly bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check tools, credentials, models and output directories",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := c.load(cmd, func(v *viper.Viper) error {
				return bindFlags(v, cmd.Flags(), map[string]string{
					"transcription.backend": "backend",
					"summary.backend":       "summary-backend",
				})
			})
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			report := app.Doctor(!summaryOnly, !transcribeOnly)
			printDiagnostics(cmd.OutOrStdout(), report)
			return diagnostics.Err(report)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&transcribeOnly, "transcribe-only", false, "check only the transcription stage")
	f.BoolVar(&summaryOnly, "summary-only", false, "check only the summary stage")
	f.String("backend", "", "transcription backend to check")
	f.String("summary-backend", "", "summary backend to check")
	cmd.MarkFlagsMutuallyExclusive("transcribe-only", "summary-only")
	return cmd
}

func printDiagnostics(out io.Writer, report domain.DiagnosticReport) {
	for _, item := range report.Items {
		mark := "ok  "
		switch item.Status {
		case domain.DiagnosticStatusFail:
			mark = "FAIL"
		case domain.DiagnosticStatusWarn:
			mark = "warn"
		}
		fmt.Fprintf(out, "[%s] %s: %s\n", mark, item.Name, item.Message)
		if item.Hint != "" {
			fmt.Fprintf(out, "       %s\n", item.Hint)
		}
	}
}
