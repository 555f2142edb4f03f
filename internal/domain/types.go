package domain

import "time"

// JobStatus tracks each stage for a single digest job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusProbing      JobStatus = "probing"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusSummarizing  JobStatus = "summarizing"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// WriteMode selects how a run treats an existing transcript file.
type WriteMode string

const (
	// WriteModeAppend keeps prior runs and appends a run marker.
	WriteModeAppend WriteMode = "append"
	// WriteModeFresh truncates the transcript before the run marker.
	WriteModeFresh WriteMode = "fresh"
)

// AudioSource is a probed input file. Immutable once probed.
type AudioSource struct {
	Path     string  `json:"path"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration"`
	Hash     string  `json:"hash"`
}

// Segment is one window [Start, End) of the source timeline, in seconds.
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns the window duration in seconds.
func (s Segment) Length() float64 {
	return s.End - s.Start
}

// SegmentStatus reports whether a window produced text.
type SegmentStatus string

const (
	SegmentStatusOK     SegmentStatus = "ok"
	SegmentStatusFailed SegmentStatus = "failed"
)

// SegmentResult is the outcome for one Segment.
type SegmentResult struct {
	Segment Segment       `json:"segment"`
	Text    string        `json:"text"`
	Status  SegmentStatus `json:"status"`
	Reason  string        `json:"reason,omitempty"`
	Cached  bool          `json:"cached,omitempty"`
	Err     error         `json:"-"`
}

// Failed reports whether the window failed to transcribe.
func (r SegmentResult) Failed() bool {
	return r.Status == SegmentStatusFailed
}

// Chunk is a bounded slice of transcript text handed to the summary model.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PartialSummary is the map-phase output for one chunk.
type PartialSummary struct {
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
}

// FinalSummary is the persisted combine-phase output.
type FinalSummary struct {
	Text   string `json:"text"`
	Path   string `json:"path"`
	Chunks int    `json:"chunks"`
}

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// StageSpan is the time a job spent in one status. End is zero while the
// stage is still running.
type StageSpan struct {
	Status JobStatus `json:"status"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end,omitempty"`
}

// Elapsed returns the span length, measured up to now for an open span.
func (s StageSpan) Elapsed(now time.Time) time.Duration {
	if s.End.IsZero() {
		return now.Sub(s.Start)
	}
	return s.End.Sub(s.Start)
}
