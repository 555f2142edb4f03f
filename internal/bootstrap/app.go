// Package bootstrap wires configuration, backends, the ledger and job state
// into one end-to-end digest job.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"audio-digest/internal/config"
	"audio-digest/internal/diagnostics"
	"audio-digest/internal/domain"
	"audio-digest/internal/jobs"
	"audio-digest/internal/ledger"
	"audio-digest/internal/media"
	"audio-digest/internal/summarize"
	"audio-digest/internal/transcribe"
	"audio-digest/internal/transcript"
)

// Options selects the stages and inputs of one job.
type Options struct {
	// Input is an audio file or a directory; empty uses input.dir.
	Input      string
	Transcribe bool
	Summarize  bool
}

// FileReport is the per-input outcome of the transcription stage.
type FileReport struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
	Segments int     `json:"segments"`
	Failed   int     `json:"failed"`
	Cached   int     `json:"cached"`
	Skipped  bool    `json:"skipped,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Report is the final job summary printed by the CLI.
type Report struct {
	JobID          string              `json:"jobId"`
	Status         domain.JobStatus    `json:"status"`
	Files          []FileReport        `json:"files,omitempty"`
	TranscriptPath string              `json:"transcriptPath,omitempty"`
	Summary        domain.FinalSummary `json:"summary"`
	NothingToDo    bool                `json:"nothingToDo,omitempty"`
	StartedAt      time.Time           `json:"startedAt"`
	FinishedAt     time.Time           `json:"finishedAt"`
	Stages         []domain.StageSpan  `json:"stages,omitempty"`
	// StageTotals sums Stages per status.
	StageTotals map[domain.JobStatus]time.Duration `json:"stageTotals,omitempty"`
}

// FailedSegments totals failed windows across all files.
func (r Report) FailedSegments() int {
	return lo.SumBy(r.Files, func(f FileReport) int { return f.Failed })
}

// Segments totals transcribed windows across all files.
func (r Report) Segments() int {
	return lo.SumBy(r.Files, func(f FileReport) int { return f.Segments })
}

// pipelineRunner isolates the transcription pipeline behind an interface.
type pipelineRunner interface {
	Run(ctx context.Context, req transcribe.Request) (transcribe.Result, error)
}

// summaryRunner isolates the map/reduce summarizer.
type summaryRunner interface {
	Summarize(ctx context.Context, text string) (domain.FinalSummary, error)
}

// preflight runs dependency diagnostics for the selected stages.
type preflight interface {
	Run(cfg config.Config, scope diagnostics.Scope) domain.DiagnosticReport
}

// runLedger records job bookkeeping; nil disables it.
type runLedger interface {
	StartRun(ctx context.Context, id string, status domain.JobStatus) error
	FinishRun(ctx context.Context, run ledger.Run) error
	Runs(ctx context.Context, limit int) ([]ledger.Run, error)
}

// App wires configuration, jobs, pipeline and summarizer for one process.
type App struct {
	Config      config.Config
	Jobs        *jobs.Manager
	Events      *jobs.EventBus
	Diagnostics domain.DiagnosticReport

	logger          logrus.FieldLogger
	checker         preflight
	runs            runLedger
	closer          func() error
	buildPipeline   func(writer transcribe.Writer, modelPath string) pipelineRunner
	buildSummarizer func(onChunk func(done, total int)) (summaryRunner, error)
	newID           func() string
	mkdirAll        func(string, os.FileMode) error
	now             func() time.Time
}

// New builds the application from a loaded configuration. The ledger is
// opened when ledger.path is set.
func New(cfg config.Config, logger logrus.FieldLogger) (*App, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var store *ledger.SQLiteLedger
	if strings.TrimSpace(cfg.Ledger.Path) != "" {
		var err error
		store, err = ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config:  cfg,
		Jobs:    jobs.NewManager(),
		Events:  jobs.NewEventBus(1000),
		logger:  logger,
		checker: diagnostics.NewChecker(),
		closer:  store.Close,
		buildPipeline: func(writer transcribe.Writer, modelPath string) pipelineRunner {
			return newPipeline(cfg, modelPath, writer, store, logger)
		},
		buildSummarizer: func(onChunk func(done, total int)) (summaryRunner, error) {
			return newSummarizer(cfg, onChunk, logger)
		},
		newID:    uuid.NewString,
		mkdirAll: os.MkdirAll,
		now:      time.Now,
	}
	if store != nil {
		app.runs = store
	}
	return app, nil
}

// Close releases the ledger.
func (a *App) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer()
}

// Doctor runs preflight diagnostics for the selected stages.
func (a *App) Doctor(transcribeStage, summarizeStage bool) domain.DiagnosticReport {
	a.Diagnostics = a.checker.Run(a.Config, a.scope(transcribeStage, summarizeStage))
	return a.Diagnostics
}

// History lists recent jobs from the ledger.
func (a *App) History(ctx context.Context, limit int) ([]ledger.Run, error) {
	if a.runs == nil {
		return nil, domain.ConfigError("history", "ledger is disabled (ledger.path is empty)", nil)
	}
	return a.runs.Runs(ctx, limit)
}

// Run executes one job. Config and preflight failures return ErrConfig before
// the job starts. Probe failures skip the file and make the job fail after the
// remaining files and the summary are done. Cancellation stops at the next
// window or chunk boundary.
func (a *App) Run(ctx context.Context, opts Options) (Report, error) {
	cfg := a.Config
	report := Report{TranscriptPath: cfg.Output.TranscriptPath, StartedAt: a.now()}

	if !opts.Transcribe && !opts.Summarize {
		return report, domain.ConfigError("job", "no stage selected", nil)
	}
	if a.Jobs.IsRunning() {
		return report, jobs.ErrJobAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		return report, err
	}

	var inputs []string
	if opts.Transcribe {
		found, err := a.resolveInputs(opts.Input)
		if err != nil {
			return report, err
		}
		if len(found) == 0 {
			report.NothingToDo = true
			return report, nil
		}
		inputs = found
	}

	var text string
	if !opts.Transcribe {
		// Summary-only jobs need an existing transcript before anything starts.
		existing, err := transcript.Read(cfg.Output.TranscriptPath)
		if err != nil {
			return report, err
		}
		text = existing
	}

	a.Doctor(opts.Transcribe, opts.Summarize)
	if err := diagnostics.Err(a.Diagnostics); err != nil {
		return report, err
	}
	for _, item := range a.Diagnostics.Warnings() {
		a.logger.WithField("check", item.ID).Warn(item.Message)
	}

	jobID := a.newID()
	first := domain.JobStatusSummarizing
	if opts.Transcribe {
		first = domain.JobStatusProbing
	}
	if err := a.Jobs.Start(jobID, first); err != nil {
		return report, err
	}
	report.JobID = jobID
	a.publishStatus(jobID, first, "Job started")
	a.startRun(ctx, jobID, first)

	var skipped []FileReport
	if opts.Transcribe {
		writer := transcript.NewAssembler(cfg.Output.TranscriptPath, domain.WriteMode(cfg.Output.Mode), cfg.Output.Placeholder)
		pipeline := a.buildPipeline(writer, a.scope(true, false).WhisperModelPath)

		if err := a.transcribeAll(ctx, jobID, pipeline, inputs, &report); err != nil {
			return a.finish(ctx, report, err)
		}
		skipped = lo.Filter(report.Files, func(f FileReport, _ int) bool { return f.Skipped })

		if !writer.Started() {
			if len(skipped) > 0 {
				return a.finish(ctx, report, probeFailures(len(skipped), len(inputs)))
			}
			a.logger.Info("every input has zero duration; nothing to do")
			report.NothingToDo = true
			return a.finish(ctx, report, nil)
		}
		a.publishEvent(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeResult,
			Message: "Transcript written",
			Path:    writer.Path(),
		})
	}

	if opts.Summarize {
		summary, err := a.summarize(ctx, jobID, text)
		if err != nil {
			return a.finish(ctx, report, err)
		}
		report.Summary = summary
	}

	if len(skipped) > 0 {
		return a.finish(ctx, report, probeFailures(len(skipped), len(inputs)))
	}
	return a.finish(ctx, report, nil)
}

// transcribeAll runs the pipeline over every input in order.
func (a *App) transcribeAll(ctx context.Context, jobID string, pipeline pipelineRunner, inputs []string, report *Report) error {
	tc := a.Config.Transcription
	for i, path := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		file := FileReport{Name: filepath.Base(path), Path: path}
		a.logger.WithField("file", file.Name).Infof("processing file %d/%d", i+1, len(inputs))

		result, err := pipeline.Run(ctx, transcribe.Request{
			JobID:         jobID,
			InputPath:     path,
			SegmentLength: tc.SegmentLength(),
			SingleSegment: tc.SingleSegment,
			Incremental:   a.Config.Output.Incremental,
			Pause:         tc.Pause(),
			OnStage: func(stage string) {
				a.onStage(jobID, stage)
			},
			OnLog: func(log domain.CommandLog) {
				a.publishLog(jobID, "Command completed", log)
			},
			OnSegment: func(res domain.SegmentResult, total int) {
				a.publishEvent(jobs.Event{
					JobID:   jobID,
					Type:    jobs.EventTypeProgress,
					Status:  domain.JobStatusTranscribing,
					Message: segmentMessage(res),
					File:    file.Name,
					Done:    res.Segment.Index + 1,
					Total:   total,
				})
			},
		})

		file.Duration = result.Source.Duration
		file.Segments = len(result.Segments)
		file.Failed = result.Failed
		file.Cached = lo.CountBy(result.Segments, func(r domain.SegmentResult) bool { return r.Cached })

		if err != nil && errors.Is(err, domain.ErrProbe) {
			file.Skipped = true
			file.Error = err.Error()
			report.Files = append(report.Files, file)
			a.publishFailure(jobID, file.Name, err)
			continue
		}
		report.Files = append(report.Files, file)
		if err != nil {
			return err
		}
	}
	return nil
}

// summarize reads the transcript when needed, runs map/reduce and persists the result.
func (a *App) summarize(ctx context.Context, jobID, text string) (domain.FinalSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.FinalSummary{}, err
	}
	if err := a.Jobs.Transition(domain.JobStatusSummarizing); err == nil {
		a.publishStatus(jobID, domain.JobStatusSummarizing, "Running summarizing stage")
	}

	if text == "" {
		read, err := transcript.Read(a.Config.Output.TranscriptPath)
		if err != nil {
			return domain.FinalSummary{}, err
		}
		text = read
	}

	summarizer, err := a.buildSummarizer(func(done, total int) {
		a.publishEvent(jobs.Event{
			JobID:   jobID,
			Type:    jobs.EventTypeProgress,
			Status:  domain.JobStatusSummarizing,
			Message: "Chunk summarized",
			Done:    done,
			Total:   total,
		})
	})
	if err != nil {
		return domain.FinalSummary{}, err
	}

	summary, err := summarizer.Summarize(ctx, text)
	if err != nil {
		return domain.FinalSummary{}, err
	}
	summary, err = summarize.Write(a.Config.Output.SummaryPath, summary)
	if err != nil {
		return domain.FinalSummary{}, &domain.PipelineError{
			Kind:    domain.ErrSummarization,
			Stage:   "summarizing",
			Message: "failed to write summary",
			Err:     err,
		}
	}

	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeResult,
		Message: "Summary written",
		Path:    summary.Path,
	})
	return summary, nil
}

// finish moves the job to its terminal state, records it and publishes the outcome.
func (a *App) finish(ctx context.Context, report Report, err error) (Report, error) {
	status := domain.JobStatusDone
	message := "Job completed"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = domain.JobStatusCancelled
		message = "Job cancelled"
	default:
		status = domain.JobStatusFailed
		message = "Job failed"
	}

	if status == domain.JobStatusCancelled {
		_ = a.Jobs.Cancel()
	} else {
		_ = a.Jobs.Transition(status)
	}
	report.Status = status
	report.Stages = a.Jobs.Timeline()
	report.StageTotals = a.Jobs.StageTotals()
	report.FinishedAt = a.now()
	a.publishStatus(report.JobID, status, message)
	if status == domain.JobStatusFailed {
		a.publishFailure(report.JobID, "", err)
	}

	if a.runs != nil {
		run := ledger.Run{
			ID:             report.JobID,
			Status:         status,
			Files:          len(report.Files),
			Segments:       report.Segments(),
			FailedSegments: report.FailedSegments(),
		}
		if err != nil {
			run.Message = err.Error()
		}
		if ledgerErr := a.runs.FinishRun(context.WithoutCancel(ctx), run); ledgerErr != nil {
			a.logger.WithError(ledgerErr).Warn("failed to record run in ledger")
		}
	}
	return report, err
}

// resolveInputs expands Options.Input into the ordered list of audio files.
// A missing default input directory is created so the operator knows where
// to put files.
func (a *App) resolveInputs(input string) ([]string, error) {
	path := strings.TrimSpace(input)
	useDefault := path == ""
	if useDefault {
		path = a.Config.Input.Dir
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && useDefault {
			if err := a.mkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("create input directory: %w", err)
			}
			a.logger.Infof("created input directory %q; place your audio files there and run again", path)
			return nil, nil
		}
		return nil, domain.ConfigError("probing", fmt.Sprintf("input not found: %s", path), err)
	}

	if !info.IsDir() {
		if !media.IsAudioFile(path, a.Config.Input.Extensions) {
			return nil, domain.ConfigError("probing",
				fmt.Sprintf("%s is not an audio file (extensions: %s)", path, strings.Join(a.Config.Input.Extensions, ", ")), nil)
		}
		return []string{path}, nil
	}

	files, err := media.Discover(path, a.Config.Input.Extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		a.logger.Infof("no audio files found in %q (extensions: %s)", path, strings.Join(a.Config.Input.Extensions, ", "))
	}
	return files, nil
}

func (a *App) scope(transcribeStage, summarizeStage bool) diagnostics.Scope {
	s := diagnostics.Scope{Transcribe: transcribeStage, Summarize: summarizeStage}
	if transcribeStage && a.Config.Transcription.Backend == config.BackendLocal {
		s.WhisperModelPath = ResolveWhisperModel(a.Config.Transcription.Local)
	}
	return s
}

func (a *App) startRun(ctx context.Context, jobID string, first domain.JobStatus) {
	if a.runs == nil {
		return
	}
	if err := a.runs.StartRun(ctx, jobID, first); err != nil {
		a.logger.WithError(err).Warn("failed to record run in ledger")
	}
}

// onStage maps pipeline stage names to job statuses.
func (a *App) onStage(jobID, stage string) {
	status, ok := mapStageToStatus(stage)
	if !ok {
		return
	}
	if a.Jobs.Current().Status == status {
		return
	}
	if err := a.Jobs.Transition(status); err == nil {
		a.publishStatus(jobID, status, "Running "+stage+" stage")
	}
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

func (a *App) publishLog(jobID, message string, log domain.CommandLog) {
	a.publishEvent(jobs.Event{
		JobID:    jobID,
		Type:     jobs.EventTypeLog,
		Message:  message,
		Command:  log.Command,
		Args:     log.Args,
		ExitCode: log.ExitCode,
		Stdout:   log.Stdout,
		Stderr:   log.Stderr,
	})
}

// publishFailure emits an error event and the failing command, if any.
func (a *App) publishFailure(jobID, file string, err error) {
	if err == nil {
		return
	}
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeError,
		Message: err.Error(),
		File:    file,
	})

	var pipelineErr *domain.PipelineError
	if errors.As(err, &pipelineErr) && pipelineErr.CommandLog.Command != "" {
		a.publishLog(jobID, "Failed command", pipelineErr.CommandLog)
	}
}

func (a *App) publishEvent(event jobs.Event) {
	if a.Events == nil {
		return
	}
	a.Events.Publish(event)
}

// mapStageToStatus maps pipeline stage names to job statuses.
func mapStageToStatus(stage string) (domain.JobStatus, bool) {
	switch stage {
	case "probing":
		return domain.JobStatusProbing, true
	case "transcribing":
		return domain.JobStatusTranscribing, true
	case "summarizing":
		return domain.JobStatusSummarizing, true
	default:
		return "", false
	}
}

func segmentMessage(res domain.SegmentResult) string {
	switch {
	case res.Failed():
		return "Segment failed: " + res.Reason
	case res.Cached:
		return "Segment served from cache"
	default:
		return "Segment transcribed"
	}
}

func probeFailures(skipped, total int) error {
	return &domain.PipelineError{
		Kind:    domain.ErrProbe,
		Stage:   "probing",
		Message: fmt.Sprintf("%d of %d files could not be probed", skipped, total),
	}
}
