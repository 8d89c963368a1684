package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"mimic/internal/services"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusRunning,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
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

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Result captures the output of a successfully completed job.
type Result struct {
	OutputPath        string   `json:"output_path"`
	DurationSeconds   float64  `json:"duration_seconds"`
	ProcessingSeconds float64  `json:"processing_seconds"`
	StagesCompleted   []string `json:"stages_completed,omitempty"`
}

// Job is one unit of queued work. Result and Error are mutually
// exclusive: Complete clears any error, Fail clears any result.
type Job struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	Parameters  json.RawMessage `json:"parameters"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Progress    float64         `json:"progress"`
	StageLabel  string          `json:"stage_label"`
	Result      *Result         `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewID produces a fresh job identifier. ULIDs sort by creation time,
// which keeps identifiers and queue order roughly aligned.
func NewID() string {
	return "job-" + ulid.Make().String()
}

// New builds a pending job for the given type and typed parameters.
func New(jobType Type, params any) (*Job, error) {
	raw, err := EncodeParameters(jobType, params)
	if err != nil {
		return nil, err
	}
	return &Job{
		ID:         NewID(),
		Type:       jobType,
		Status:     StatusPending,
		Parameters: raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Start transitions the job from pending to running, resetting progress
// so a job requeued after a crash does not report stale numbers.
func (j *Job) Start() error {
	if j.Status != StatusPending {
		return transitionError(j, StatusRunning)
	}
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.StartedAt = &now
	j.Progress = 0
	j.StageLabel = "starting"
	return nil
}

// Complete transitions a running job to completed and records its
// result. Progress snaps to 1 and any stale error is discarded.
func (j *Job) Complete(result Result) error {
	if j.Status != StatusRunning {
		return transitionError(j, StatusCompleted)
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.Progress = 1
	j.Result = &result
	j.Error = ""
	return nil
}

// Fail transitions a running job to failed with a terminal error
// message. Any partial result is discarded.
func (j *Job) Fail(message string) error {
	if j.Status != StatusRunning {
		return transitionError(j, StatusFailed)
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.Error = message
	j.Result = nil
	return nil
}

// Cancel transitions a pending job to cancelled. Running jobs cannot be
// cancelled; the stage tools do not support safe interruption mid-run.
func (j *Job) Cancel() error {
	if j.Status != StatusPending {
		return transitionError(j, StatusCancelled)
	}
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	return nil
}

// UpdateProgress records the current stage label and completed
// fraction. The fraction is clamped to [0, 1]; out-of-range input is a
// reporting artifact, not an error.
func (j *Job) UpdateProgress(stageLabel string, fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	j.StageLabel = stageLabel
	j.Progress = fraction
}

func transitionError(j *Job, to Status) error {
	return services.Wrap(services.ErrInvalidTransition, "", "jobs",
		fmt.Sprintf("cannot transition job %s from %s to %s", j.ID, j.Status, to), nil)
}
