package runtime

import (
	"fmt"
	"time"

	"github.com/openchord/openchord/pkg/history"
)

// Status represents the overall status of a job.
type Status string

const (
	// StatusPending indicates the job is created but not yet started.
	StatusPending Status = "pending"

	// StatusRunning indicates the job is currently executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates every task completed.
	StatusCompleted Status = "completed"

	// StatusFailed indicates every task failed.
	StatusFailed Status = "failed"

	// StatusPartial indicates some tasks failed and some completed.
	StatusPartial Status = "partial"
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// Validate checks if the status is valid.
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusPartial:
		return nil
	default:
		return fmt.Errorf("invalid job status: %s", s)
	}
}

// TaskStatus represents the status of a single task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Dependency records that a task's expression read a value owned by
// another resource.
type Dependency struct {
	// Expression is the source expression that was evaluated.
	Expression string `json:"expression"`

	// Resource is the path of the resource that owned the result.
	Resource string `json:"resource"`
}

// AttributeChange records one attribute transition produced by a task.
type AttributeChange struct {
	Attribute string           `json:"attribute"`
	Op        history.ChangeOp `json:"op"`
	Old       any              `json:"old,omitempty"`
	New       any              `json:"new,omitempty"`
}

// Task applies one declared resource to the live graph.
type Task struct {
	ID        string           `json:"id"`
	Resource  string           `json:"resource"`
	Status    TaskStatus       `json:"status"`
	Operation history.ChangeOp `json:"operation"`

	// Dependencies are the expression reads the task performed.
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// Changes are the attribute transitions the task applied.
	Changes []AttributeChange `json:"changes,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// Summary aggregates task outcomes for a job.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Job is one apply run of a manifest over a resource graph.
type Job struct {
	ID              string     `json:"id"`
	Manifest        string     `json:"manifest"`
	ManifestVersion string     `json:"manifest_version,omitempty"`
	Status          Status     `json:"status"`
	Tasks           []*Task    `json:"tasks"`
	Summary         Summary    `json:"summary"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// aggregate computes the job's status and summary from its tasks.
func (j *Job) aggregate() {
	s := Summary{Total: len(j.Tasks)}
	for _, t := range j.Tasks {
		switch t.Status {
		case TaskStatusCompleted:
			s.Completed++
		case TaskStatusFailed:
			s.Failed++
		}
		switch t.Operation {
		case history.ChangeOpCreate:
			s.Created++
		case history.ChangeOpUpdate:
			s.Updated++
		case history.ChangeOpNoop:
			if t.Status == TaskStatusCompleted {
				s.Unchanged++
			}
		}
	}
	j.Summary = s
	switch {
	case s.Failed == 0:
		j.Status = StatusCompleted
	case s.Completed == 0:
		j.Status = StatusFailed
	default:
		j.Status = StatusPartial
	}
}
