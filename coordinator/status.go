package coordinator

import (
	"context"
	"fmt"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// GetPipelineStatus reports the recorded status of one Execution,
// consulting the console-output fallback transparently (§4.1 get_execution).
func (c *Coordinator) GetPipelineStatus(ctx context.Context, executionID string) (result Result) {
	defer recoverPanic("get_pipeline_status", &result)

	exec, err := c.store.GetExecution(ctx, executionID)
	if err != nil {
		return errorResult("get_pipeline_status", err)
	}
	result = executionToResult(exec)
	if text, err := c.store.GetConsoleOutput(ctx, executionID); err == nil {
		result.ConsoleOutput = text
	}
	return result
}

// ListPipelineRuns lists recorded Executions filtered by template/status,
// newest first, bounded by limit (§4.1 list_executions).
func (c *Coordinator) ListPipelineRuns(ctx context.Context, templateName, status string, limit int) (out []Result) {
	defer func() {
		if r := recover(); r != nil {
			out = []Result{errorResult("list_pipeline_runs", pipeerr.New(pipeerr.CodeInternal, "list_pipeline_runs", fmt.Sprintf("recovered panic: %v", r)))}
		}
	}()

	execs, err := c.store.ListExecutions(ctx, schema.ListExecutionsQuery{
		TemplateName: templateName,
		Status:       schema.ExecutionStatus(status),
		Limit:        limit,
	})
	if err != nil {
		return []Result{errorResult("list_pipeline_runs", err)}
	}
	out = make([]Result, 0, len(execs))
	for _, e := range execs {
		out = append(out, executionToResult(e))
	}
	return out
}

func executionToResult(exec schema.Execution) Result {
	return Result{
		Success:      true,
		Status:       string(exec.Status),
		ExecutionID:  exec.ID,
		TemplateName: exec.TemplateName,
		JobName:      exec.JenkinsJobName,
		ServerName:   exec.ServerName,
	}
}
