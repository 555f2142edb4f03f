package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"audio-digest/internal/domain"
)

// ErrJobAlreadyRunning is returned when starting a second active job.
var ErrJobAlreadyRunning = errors.New("job already running")

// ErrNoRunningJob is returned when cancel is requested for idle state.
var ErrNoRunningJob = errors.New("no running job")

// Manager tracks the single allowed active job, its transitions and the
// time spent in each stage.
type Manager struct {
	mu       sync.RWMutex
	current  domain.Job
	timeline []domain.StageSpan
	now      func() time.Time
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return NewManagerForTests(time.Now)
}

// NewManagerForTests creates a manager with an injectable clock.
func NewManagerForTests(now func() time.Time) *Manager {
	return &Manager{
		current: domain.Job{Status: domain.JobStatusIdle},
		now:     now,
	}
}

// Start creates a new job in its first stage: probing for jobs that
// transcribe, summarizing for summary-only jobs.
func (m *Manager) Start(jobID string, first domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isRunning(m.current.Status) {
		return ErrJobAlreadyRunning
	}
	if first != domain.JobStatusProbing && first != domain.JobStatusSummarizing {
		return fmt.Errorf("invalid first stage: %s", first)
	}

	m.current = domain.Job{ID: jobID, Status: first}
	m.timeline = []domain.StageSpan{{Status: first, Start: m.now()}}
	return nil
}

// Transition validates and applies state transitions for current job.
// Moving to the status the job is already in is a no-op.
func (m *Manager) Transition(status domain.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.JobStatusIdle {
		return fmt.Errorf("cannot transition without an active job")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.enter(status)
	return nil
}

// Cancel moves an active job to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isRunning(m.current.Status) {
		return ErrNoRunningJob
	}
	m.enter(domain.JobStatusCancelled)
	return nil
}

// Current returns a snapshot of the current job.
func (m *Manager) Current() domain.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// IsRunning reports whether the current state is an active stage.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isRunning(m.current.Status)
}

// Timeline returns the active stages of the current job in order. Terminal
// states close the last span and are not listed themselves.
func (m *Manager) Timeline() []domain.StageSpan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.StageSpan(nil), m.timeline...)
}

// StageTotals sums the time spent per active status across the timeline.
func (m *Manager) StageTotals() map[domain.JobStatus]time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	totals := make(map[domain.JobStatus]time.Duration, 3)
	for _, span := range m.timeline {
		totals[span.Status] += span.Elapsed(now)
	}
	return totals
}

// enter closes the open span and opens one for status if it is active.
// Callers hold m.mu.
func (m *Manager) enter(status domain.JobStatus) {
	now := m.now()
	if n := len(m.timeline); n > 0 && m.timeline[n-1].End.IsZero() {
		m.timeline[n-1].End = now
	}
	if isRunning(status) {
		m.timeline = append(m.timeline, domain.StageSpan{Status: status, Start: now})
	}
	m.current.Status = status
}

// isRunning checks if a status represents active pipeline execution.
func isRunning(status domain.JobStatus) bool {
	switch status {
	case domain.JobStatusProbing, domain.JobStatusTranscribing, domain.JobStatusSummarizing:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed job state machine edges.
// Probing and transcribing alternate once per input file.
func isValidTransition(from, to domain.JobStatus) bool {
	ends := to == domain.JobStatusDone || to == domain.JobStatusFailed || to == domain.JobStatusCancelled
	switch from {
	case domain.JobStatusIdle:
		return to == domain.JobStatusProbing || to == domain.JobStatusSummarizing
	case domain.JobStatusProbing:
		return to == domain.JobStatusTranscribing || to == domain.JobStatusSummarizing || ends
	case domain.JobStatusTranscribing:
		return to == domain.JobStatusProbing || to == domain.JobStatusSummarizing || ends
	case domain.JobStatusSummarizing:
		return ends
	default:
		return to == domain.JobStatusProbing || to == domain.JobStatusSummarizing || to == domain.JobStatusIdle
	}
}
