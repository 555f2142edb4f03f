package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"audio-digest/internal/bootstrap"
	"audio-digest/internal/domain"
	"audio-digest/internal/jobs"
)

type jobFlags struct {
	input       string
	interactive bool
	eventsPath  string
}

var transcribeFlagKeys = map[string]string{
	"transcription.backend":         "backend",
	"transcription.language":        "language",
	"transcription.segment_seconds": "segment-seconds",
	"transcription.single_segment":  "single-segment",
	"transcription.local.model":     "whisper-model",
	"transcription.cache":           "cache",
	"output.mode":                   "mode",
	"output.transcript_path":        "transcript",
}

var summaryFlagKeys = map[string]string{
	"summary.backend":        "summary-backend",
	"summary.chunk_size":     "chunk-size",
	"summary.overlap":        "overlap",
	"output.transcript_path": "transcript",
	"output.summary_path":    "summary",
}

func (c *cli) jobCommand(use, short string, transcribeStage, summarizeStage bool) *cobra.Command {
	var flags jobFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runJob(cmd, flags, bootstrap.Options{
				Input:      flags.input,
				Transcribe: transcribeStage,
				Summarize:  summarizeStage,
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.eventsPath, "events", "", "write the job event history as JSON to this file")
	f.String("transcript", "", "transcript Markdown file")
	if transcribeStage {
		f.StringVarP(&flags.input, "input", "i", "", "audio file or directory (default input.dir)")
		f.BoolVar(&flags.interactive, "interactive", false, "prompt for backend and model when stdin is a terminal")
		f.String("backend", "", "transcription backend: remote or local")
		f.String("language", "", "language hint, e.g. pt or auto")
		f.Float64("segment-seconds", 0, "window length in seconds (0 picks the backend default)")
		f.Bool("single-segment", false, "transcribe each file as one window")
		f.String("whisper-model", "", "local whisper model file, directory or catalog id")
		f.Bool("cache", true, "reuse cached window transcriptions from the ledger")
		f.String("mode", "", "transcript write mode: append or fresh")
	}
	if summarizeStage {
		f.String("summary", "", "summary Markdown file")
		f.String("summary-backend", "", "summary backend: llamacpp or openai")
		f.Int("chunk-size", 0, "summary chunk size in characters")
		f.Int("overlap", 0, "summary chunk overlap in characters")
	}
	return cmd
}

func (c *cli) runJob(cmd *cobra.Command, flags jobFlags, opts bootstrap.Options) error {
	cfg, logger, err := c.load(cmd, func(v *viper.Viper) error {
		if err := bindFlags(v, cmd.Flags(), transcribeFlagKeys); err != nil {
			return err
		}
		if err := bindFlags(v, cmd.Flags(), summaryFlagKeys); err != nil {
			return err
		}
		if flags.interactive && c.isTerminal() {
			return c.promptBackend(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	unmirror := mirrorEvents(app.Events, logger)
	report, runErr := app.Run(cmd.Context(), opts)
	unmirror()

	if flags.eventsPath != "" {
		if dropped := app.Events.Dropped(); dropped > 0 {
			logger.WithField("dropped", dropped).Warn("events file is missing the oldest events")
		}
		if err := writeEvents(flags.eventsPath, app.Events.Since(0)); err != nil {
			logger.WithError(err).Warn("failed to write events file")
		}
	}
	if report.JobID != "" || report.NothingToDo {
		printReport(cmd.OutOrStdout(), report)
	}
	return runErr
}

// printReport writes the final per-file and output summary.
func printReport(out io.Writer, r bootstrap.Report) {
	if r.NothingToDo && r.JobID == "" {
		fmt.Fprintln(out, "Nothing to do.")
		return
	}

	elapsed := r.FinishedAt.Sub(r.StartedAt).Round(time.Second)
	fmt.Fprintf(out, "Job %s %s in %s\n", r.JobID, r.Status, elapsed)
	if r.NothingToDo {
		fmt.Fprintln(out, "Nothing to do: every input has zero duration.")
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range r.Files {
		if f.Skipped {
			fmt.Fprintf(tw, "  %s\tskipped\t%s\n", f.Name, f.Error)
			continue
		}
		fmt.Fprintf(tw, "  %s\t%.1fs\t%d segments (%d failed, %d cached)\n", f.Name, f.Duration, f.Segments, f.Failed, f.Cached)
	}
	_ = tw.Flush()

	if len(r.Files) > 0 && !r.NothingToDo {
		fmt.Fprintf(out, "Transcript: %s\n", r.TranscriptPath)
	}
	if r.Summary.Path != "" {
		fmt.Fprintf(out, "Summary:    %s (%d chunks)\n", r.Summary.Path, r.Summary.Chunks)
	}
	printStages(out, r)
}

// printStages prints the per-stage totals in the order stages first ran.
func printStages(out io.Writer, r bootstrap.Report) {
	if len(r.StageTotals) == 0 {
		return
	}
	order := lo.Uniq(lo.Map(r.Stages, func(s domain.StageSpan, _ int) domain.JobStatus { return s.Status }))
	parts := lo.Map(order, func(status domain.JobStatus, _ int) string {
		return fmt.Sprintf("%s %s", status, r.StageTotals[status].Round(time.Millisecond))
	})
	fmt.Fprintf(out, "Stages:     %s\n", strings.Join(parts, ", "))
}

func writeEvents(path string, events []jobs.Event) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
