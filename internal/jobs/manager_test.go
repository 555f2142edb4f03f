package jobs

import (
	"testing"
	"time"

	"audio-digest/internal/domain"
)

// TestManagerLifecycle verifies a two-file run through summary to done.
func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	if m.IsRunning() {
		t.Fatal("new manager should be idle")
	}

	if err := m.Start("job-1", domain.JobStatusProbing); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.IsRunning() {
		t.Fatal("expected running after start")
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusTranscribing,
		domain.JobStatusProbing,
		domain.JobStatusTranscribing,
		domain.JobStatusSummarizing,
		domain.JobStatusDone,
	} {
		if err := m.Transition(status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	current := m.Current()
	if current.Status != domain.JobStatusDone || current.ID != "job-1" {
		t.Fatalf("current = %+v, want done job-1", current)
	}
}

// TestManagerSummaryOnly verifies summary-only jobs start in summarizing.
func TestManagerSummaryOnly(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-2", domain.JobStatusSummarizing); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Transition(domain.JobStatusTranscribing); err == nil {
		t.Fatal("expected summarizing -> transcribing to be rejected")
	}
	if err := m.Transition(domain.JobStatusFailed); err != nil {
		t.Fatalf("transition to failed: %v", err)
	}
	if err := m.Start("job-3", domain.JobStatusDone); err == nil {
		t.Fatal("expected invalid first stage error")
	}
}

// TestManagerRejectsInvalidTransition checks state machine constraints.
func TestManagerRejectsInvalidTransition(t *testing.T) {
	m := NewManager()
	if err := m.Transition(domain.JobStatusTranscribing); err == nil {
		t.Fatal("expected transition without job to fail")
	}
	if err := m.Start("job-1", domain.JobStatusProbing); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Start("job-2", domain.JobStatusProbing); err != ErrJobAlreadyRunning {
		t.Fatalf("second start error = %v, want %v", err, ErrJobAlreadyRunning)
	}
	if err := m.Transition(domain.JobStatusIdle); err == nil {
		t.Fatal("expected probing -> idle to be rejected")
	}
}

// TestManagerCancel verifies cancel behavior and repeated cancel handling.
func TestManagerCancel(t *testing.T) {
	m := NewManager()
	if err := m.Start("job-1", domain.JobStatusProbing); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if m.Current().Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", m.Current().Status)
	}

	if err := m.Cancel(); err != ErrNoRunningJob {
		t.Fatalf("second cancel error = %v, want %v", err, ErrNoRunningJob)
	}
	if err := m.Start("job-2", domain.JobStatusSummarizing); err != nil {
		t.Fatalf("restart after cancel: %v", err)
	}
}

// TestManagerTimeline records one span per active stage and sums repeats.
func TestManagerTimeline(t *testing.T) {
	clock := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	m := NewManagerForTests(func() time.Time { return clock })
	advance := func(d time.Duration) { clock = clock.Add(d) }

	if err := m.Start("job-1", domain.JobStatusProbing); err != nil {
		t.Fatalf("start: %v", err)
	}
	steps := []struct {
		after  time.Duration
		status domain.JobStatus
	}{
		{time.Second, domain.JobStatusTranscribing},
		{time.Minute, domain.JobStatusProbing},
		{2 * time.Second, domain.JobStatusTranscribing},
		{2 * time.Minute, domain.JobStatusSummarizing},
		{30 * time.Second, domain.JobStatusDone},
	}
	for _, step := range steps {
		advance(step.after)
		if err := m.Transition(step.status); err != nil {
			t.Fatalf("transition to %s: %v", step.status, err)
		}
	}

	timeline := m.Timeline()
	if len(timeline) != 5 {
		t.Fatalf("timeline = %+v, want 5 spans", timeline)
	}
	for _, span := range timeline {
		if span.End.IsZero() {
			t.Fatalf("span %+v left open after done", span)
		}
	}

	advance(time.Hour)
	totals := m.StageTotals()
	want := map[domain.JobStatus]time.Duration{
		domain.JobStatusProbing:      3 * time.Second,
		domain.JobStatusTranscribing: 3 * time.Minute,
		domain.JobStatusSummarizing:  30 * time.Second,
	}
	for status, d := range want {
		if totals[status] != d {
			t.Fatalf("totals[%s] = %s, want %s", status, totals[status], d)
		}
	}
}
