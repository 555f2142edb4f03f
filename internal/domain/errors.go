package domain

import "fmt"

// ErrorKind classifies pipeline failures. Kinds are comparable with errors.Is.
type ErrorKind string

// Error implements error so a kind can be used as an errors.Is target.
func (k ErrorKind) Error() string {
	return string(k)
}

const (
	// ErrConfig covers bad parameters, missing credentials or model files.
	ErrConfig ErrorKind = "config error"
	// ErrProbe means the duration of an input could not be determined.
	ErrProbe ErrorKind = "probe error"
	// ErrSegmentTranscription means one window failed; the job continues.
	ErrSegmentTranscription ErrorKind = "segment transcription error"
	// ErrSummarization means a chunk or the combine step failed.
	ErrSummarization ErrorKind = "summarization error"
)

// PipelineError is a stage-aware error with optional command context.
type PipelineError struct {
	Kind       ErrorKind  `json:"kind"`
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats pipeline failures for logs and the operator.
func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}

	msg := fmt.Sprintf("%s: %s", e.Stage, e.Message)
	if e.CommandLog.Command != "" {
		msg = fmt.Sprintf("%s (cmd=%s exit=%d)", msg, e.CommandLog.Command, e.CommandLog.ExitCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches the error kind.
func (e *PipelineError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && e != nil && e.Kind == kind
}

// ConfigError builds an ErrConfig pipeline error.
func ConfigError(stage, message string, err error) *PipelineError {
	return &PipelineError{Kind: ErrConfig, Stage: stage, Message: message, Err: err}
}
