package schema

import "time"

// ExecutionStatus is the normalized run state described in §3/§4.4's state
// machine: Queued/Running map to "running" in the store, then transition
// monotonically to "complete", "failed", or (recovery-only) "unknown".
type ExecutionStatus string

const (
	StatusRunning  ExecutionStatus = "running"
	StatusComplete ExecutionStatus = "complete"
	StatusFailed   ExecutionStatus = "failed"
	StatusUnknown  ExecutionStatus = "unknown"
)

// AllStatuses is the fixed membership-set list the store maintains one
// status:<value> set for, per §6.
var AllStatuses = []ExecutionStatus{StatusRunning, StatusComplete, StatusFailed, StatusUnknown}

// Execution is a recorded pipeline run (§3 "Execution"). Exactly one
// Execution exists per successful record_execution call; status transitions
// are monotonic and result/duration are set only at the terminal
// transition.
type Execution struct {
	ID             string          `json:"id"`
	DeploymentID   string          `json:"deployment_id,omitempty"`
	TemplateName   string          `json:"template_name,omitempty"`
	JenkinsJobName string          `json:"jenkins_job_name,omitempty"`
	ServerName     string          `json:"server_name,omitempty"`
	BuildNumber    string          `json:"build_number,omitempty"`
	Parameters     map[string]any  `json:"parameters,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Status         ExecutionStatus `json:"status"`
	Result         string          `json:"result,omitempty"`
	DurationMS     int64           `json:"duration_ms,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	ConsoleStored  bool            `json:"console_stored"`
}

// RecordExecutionInput is the argument bundle for record_execution (§4.1).
type RecordExecutionInput struct {
	DeploymentID   string
	TemplateName   string
	JenkinsJobName string
	ServerName     string
	BuildNumber    string
	Parameters     map[string]any
}

// UpdateExecutionStatusInput is the argument bundle for
// update_execution_status (§4.1).
type UpdateExecutionStatusInput struct {
	ExecutionID    string
	Status         ExecutionStatus
	Result         string
	ConsoleOutput  string
	DurationMS     int64
	HasDuration    bool
}

// ListExecutionsQuery filters list_executions (§4.1).
type ListExecutionsQuery struct {
	TemplateName string
	Status       ExecutionStatus
	Limit        int
}
