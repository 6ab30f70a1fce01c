package history

import "time"

// JobStatus represents the status of an apply job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ChangeOp classifies what a task did to a resource attribute.
type ChangeOp string

const (
	ChangeOpCreate ChangeOp = "create"
	ChangeOpUpdate ChangeOp = "update"
	ChangeOpNoop   ChangeOp = "noop"
)

// Job records one apply run of a manifest.
type Job struct {
	ID              string     `json:"id"`
	Manifest        string     `json:"manifest"`
	ManifestVersion string     `json:"manifest_version"`
	Status          JobStatus  `json:"status"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Error           *string    `json:"error,omitempty"`
	ResourceCount   int        `json:"resource_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Change records one attribute transition observed while applying a
// manifest. Old and new values are stored as JSON blobs.
type Change struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"job_id"`
	Resource  string    `json:"resource"`
	Attribute string    `json:"attribute"`
	Op        ChangeOp  `json:"op"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
