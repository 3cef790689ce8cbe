package coordinator

import (
	"context"
	"fmt"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// RunInput bundles run_pipeline's arguments (§6 tool catalog).
type RunInput struct {
	TemplateName    string
	JenkinsfileText string
	JobName         string
	ServerName      string
	Parameters      map[string]any
	Stream          bool
	Username        string
	Password        string
}

// Run composes connect -> (delete+create if needed) -> start -> record ->
// (stream + finalize) into the run_pipeline tool action (§4.4 run).
func (c *Coordinator) Run(ctx context.Context, in RunInput) (result Result) {
	defer recoverPanic("run", &result)

	if in.TemplateName == "" && in.JenkinsfileText == "" {
		return errorResult("run.validate", pipeerr.New(pipeerr.CodeInputMissing, "run_pipeline", "template_name or jenkinsfile_content required"))
	}

	jobName := in.JobName
	templateLabel := in.TemplateName
	jenkinsfileText := in.JenkinsfileText
	direct := in.TemplateName == ""

	if direct {
		if jobName == "" {
			jobName = "direct-pipeline-" + shortID()
		}
		templateLabel = "direct-" + jobName
	} else if jobName == "" {
		jobName = in.TemplateName
	}

	serverName := in.ServerName
	if serverName == "" {
		serverName = c.defaultServerName
	}

	jenkins, err := c.connect(serverName, in.Username, in.Password)
	if err != nil {
		return errorResult("run.connect", err)
	}
	if err := jenkins.Connect(ctx); err != nil {
		return errorResult("run.connect", err)
	}

	if !direct {
		jenkinsfileText, err = c.templates.ReadJenkinsfile(in.TemplateName)
		if err != nil {
			return errorResult("run.read_jenkinsfile", err)
		}
	}

	needsRecreate := direct
	if !needsRecreate {
		exists, _ := jenkins.JobExists(ctx, jobName)
		needsRecreate = !exists
	}
	if needsRecreate {
		if _, err := jenkins.DeleteJobIfExists(ctx, jobName); err != nil {
			c.log.WithError(err).WithField("job", jobName).Warn("run: delete_job_if_exists failed, continuing")
		}
		if err := jenkins.CreateJob(ctx, jobName, jenkinsfileText); err != nil {
			return errorResult("run.create_job", pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "run.create_job", err))
		}
	}

	startResult, err := jenkins.StartJob(ctx, jobName, stringifyParameters(in.Parameters))
	if err != nil {
		return errorResult("run.start_job", err)
	}

	if startResult.Status == "queued" {
		exec, err := c.store.RecordExecution(ctx, schema.RecordExecutionInput{
			TemplateName:   templateLabel,
			JenkinsJobName: jobName,
			ServerName:     serverName,
			Parameters:     in.Parameters,
		})
		if err != nil {
			return errorResult("run.record_execution", err)
		}
		return Result{
			Success:      true,
			Status:       "queued",
			ExecutionID:  exec.ID,
			JobName:      jobName,
			ServerName:   serverName,
			TemplateName: templateLabel,
		}
	}

	exec, err := c.store.RecordExecution(ctx, schema.RecordExecutionInput{
		TemplateName:   templateLabel,
		JenkinsJobName: jobName,
		ServerName:     serverName,
		BuildNumber:    fmt.Sprintf("%d", startResult.BuildNumber),
		Parameters:     in.Parameters,
	})
	if err != nil {
		// record_execution recovery path: synthesize an id and write a
		// running placeholder directly so the run is still queryable
		// (§4.4 step 5).
		exec = schema.Execution{ID: synthesizeExecutionID(jobName, startResult.BuildNumber), TemplateName: templateLabel, JenkinsJobName: jobName, ServerName: serverName, BuildNumber: fmt.Sprintf("%d", startResult.BuildNumber)}
		if _, ferr := c.store.FinalizeExecution(ctx, schema.UpdateExecutionStatusInput{
			ExecutionID: exec.ID,
			Status:      schema.StatusRunning,
		}); ferr != nil {
			c.log.WithError(ferr).WithField("execution", exec.ID).Warn("run: recovery write failed")
		}
	}

	result = Result{
		Success:      true,
		ExecutionID:  exec.ID,
		BuildNumber:  startResult.BuildNumber,
		JobName:      jobName,
		ServerName:   serverName,
		TemplateName: templateLabel,
		Status:       "started",
	}

	if !in.Stream {
		return result
	}

	consoleResult, err := jenkins.StreamConsole(ctx, jobName, startResult.BuildNumber)
	if err != nil {
		return errorResult("run.stream_console", err)
	}

	var terminalStatus schema.ExecutionStatus
	resultText := consoleResult.Status
	switch {
	case !consoleResult.Complete:
		// The run is still in progress: no result until a terminal transition.
		terminalStatus = schema.StatusRunning
		resultText = ""
	case consoleResult.Status == "SUCCESS":
		terminalStatus = schema.StatusComplete
	default:
		terminalStatus = schema.StatusFailed
	}

	if _, err := c.store.FinalizeExecution(ctx, schema.UpdateExecutionStatusInput{
		ExecutionID:   exec.ID,
		Status:        terminalStatus,
		Result:        resultText,
		ConsoleOutput: consoleResult.ConsoleOutput,
	}); err != nil {
		c.log.WithError(err).WithField("execution", exec.ID).Warn("run: finalize_execution failed")
	}

	result.Status = consoleResult.Status
	result.ConsoleOutput = consoleResult.ConsoleOutput
	return result
}

func stringifyParameters(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func synthesizeExecutionID(jobName string, buildNumber int) string {
	return fmt.Sprintf("recovered-%s-%d-%s", jobName, buildNumber, shortID())
}
