package queue

import (
	"strings"
	"time"

	"vise/internal/encoding"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending     Status = "pending"
	StatusCompressing Status = "compressing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusCompressing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminalStatus reports whether a status ends a job's lifecycle. Failed is
// terminal in the state machine sense even though Retry can re-enter Pending.
func IsTerminalStatus(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Job is one unit of compression work. The identity fields (ID, SourcePath,
// Settings) never change after creation; everything else is owned by the
// manager and mutated only under its lock.
type Job struct {
	ID           string
	SourcePath   string
	DisplayTitle string
	OutputPath   string
	Status       Status
	Settings     encoding.Settings

	ProgressPercent  float64
	OriginalBytes    int64
	CompressedBytes  int64
	ReductionPercent float64
	OutputLarger     bool
	HardwareUsed     bool

	ErrorKind    string
	ErrorMessage string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// IsTerminal reports whether the job has reached a terminal status.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// SetFailed marks the job as failed with the given classification.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.FinishedAt = time.Now()
	j.Touch()
}

// ResetForRetry clears failure state and returns the job to Pending.
func (j *Job) ResetForRetry() {
	j.Status = StatusPending
	j.ErrorKind = ""
	j.ErrorMessage = ""
	j.ProgressPercent = 0
	j.OutputPath = ""
	j.CompressedBytes = 0
	j.ReductionPercent = 0
	j.OutputLarger = false
	j.HardwareUsed = false
	j.FinishedAt = time.Time{}
	j.Touch()
}

// Touch refreshes the modification timestamp.
func (j *Job) Touch() {
	j.UpdatedAt = time.Now()
}
