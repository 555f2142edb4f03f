package domain

import "time"

// DiagnosticStatus is the outcome of one preflight check. Only fail blocks a job.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusWarn DiagnosticStatus = "warn"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one check. Hint tells the operator how to fix a warn or fail.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
}

// DiagnosticReport aggregates preflight checks for the doctor command and job start.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Failures returns the failed items in report order.
func (r DiagnosticReport) Failures() []DiagnosticItem {
	return r.withStatus(DiagnosticStatusFail)
}

// Warnings returns items that pass preflight but deserve attention.
func (r DiagnosticReport) Warnings() []DiagnosticItem {
	return r.withStatus(DiagnosticStatusWarn)
}

func (r DiagnosticReport) withStatus(status DiagnosticStatus) []DiagnosticItem {
	var out []DiagnosticItem
	for _, item := range r.Items {
		if item.Status == status {
			out = append(out, item)
		}
	}
	return out
}
