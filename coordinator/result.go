package coordinator

// Result is the structured success/error record every public Coordinator
// entry point returns (§4.4 "Failure semantics"). It is never an escaped
// Go error; a failing operation is recorded via FailedOp and FailMessage.
type Result struct {
	Success bool   `json:"success"`
	Status  string `json:"status,omitempty"`

	DeploymentID string `json:"deployment_id,omitempty"`
	ExecutionID  string `json:"execution_id,omitempty"`
	BuildNumber  int    `json:"build_number,omitempty"`
	JobName      string `json:"job_name,omitempty"`
	ServerName   string `json:"server_name,omitempty"`
	TemplateName string `json:"template_name,omitempty"`

	ConsoleOutput string `json:"console_output,omitempty"`
	Diff          string `json:"diff,omitempty"`
	Version       int    `json:"version,omitempty"`

	Error        string `json:"error,omitempty"`
	FailedOp     string `json:"failed_operation,omitempty"`
	FailMessage  string `json:"message,omitempty"`
}

func errorResult(op string, err error) Result {
	return Result{
		Success:     false,
		Status:      "error",
		Error:       err.Error(),
		FailedOp:    op,
		FailMessage: err.Error(),
	}
}
