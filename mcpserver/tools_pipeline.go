package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/opsorch/pipeline-orchestrator/coordinator"
)

type deployPipelineArgs struct {
	TemplateName string `json:"template_name" validate:"required"`
	JobName      string `json:"job_name"`
	ServerName   string `json:"server_name"`
	Username     string `json:"username"`
	Password     string `json:"password"`
}

type deployPipelineHandler struct {
	coordinator Coordinator
}

func (deployPipelineHandler) Name() string { return "deploy_pipeline" }
func (deployPipelineHandler) Description() string {
	return "Create or replace a Jenkins job from a registered template and record the deployment."
}
func (deployPipelineHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"template_name": prop("string", "Registered template to deploy."),
		"job_name":      prop("string", "Jenkins job name; defaults to template_name."),
		"server_name":   propDefault("string", "Jenkins server to deploy to.", "default"),
		"username":      prop("string", "Jenkins username, overriding the server's default credentials."),
		"password":      prop("string", "Jenkins password, overriding the server's default credentials."),
	}, "template_name")
}

func (h deployPipelineHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[deployPipelineArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}
	return h.coordinator.Deploy(ctx, args.TemplateName, args.JobName, args.ServerName, args.Username, args.Password), nil
}

type runPipelineArgs struct {
	TemplateName       string         `json:"template_name" validate:"required_without=JenkinsfileContent,excluded_with=JenkinsfileContent"`
	JenkinsfileContent string         `json:"jenkinsfile_content" validate:"required_without=TemplateName,excluded_with=TemplateName"`
	JobName            string         `json:"job_name"`
	ServerName         string         `json:"server_name"`
	Parameters         map[string]any `json:"parameters"`
	StreamOutput       *bool          `json:"stream_output"`
	Username           string         `json:"username"`
	Password           string         `json:"password"`
}

func (a runPipelineArgs) streamOutput() bool {
	if a.StreamOutput == nil {
		return true
	}
	return *a.StreamOutput
}

type runPipelineHandler struct {
	coordinator Coordinator
}

func (runPipelineHandler) Name() string { return "run_pipeline" }
func (runPipelineHandler) Description() string {
	return "Start a pipeline run, either from a registered template or from inline Jenkinsfile content."
}
func (runPipelineHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"template_name":       prop("string", "Registered template to run; mutually exclusive with jenkinsfile_content."),
		"jenkinsfile_content": prop("string", "Inline Jenkinsfile text to run directly; mutually exclusive with template_name."),
		"job_name":            prop("string", "Jenkins job name to use or create."),
		"server_name":         propDefault("string", "Jenkins server to run against.", "default"),
		"parameters":          object(map[string]*jsonschema.Schema{}),
		"stream_output":       propDefault("boolean", "Wait for the build to finish and return its console output.", true),
		"username":            prop("string", "Jenkins username, overriding the server's default credentials."),
		"password":            prop("string", "Jenkins password, overriding the server's default credentials."),
	})
}

func (h runPipelineHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[runPipelineArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}
	return h.coordinator.Run(ctx, coordinatorRunInputFrom(args)), nil
}

func coordinatorRunInputFrom(args runPipelineArgs) coordinator.RunInput {
	return coordinator.RunInput{
		TemplateName:    args.TemplateName,
		JenkinsfileText: args.JenkinsfileContent,
		JobName:         args.JobName,
		ServerName:      args.ServerName,
		Parameters:      args.Parameters,
		Stream:          args.streamOutput(),
		Username:        args.Username,
		Password:        args.Password,
	}
}

type getPipelineStatusArgs struct {
	ExecutionID string `json:"execution_id" validate:"required"`
}

type getPipelineStatusHandler struct {
	coordinator Coordinator
}

func (getPipelineStatusHandler) Name() string        { return "get_pipeline_status" }
func (getPipelineStatusHandler) Description() string { return "Look up the recorded status of a pipeline execution." }
func (getPipelineStatusHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"execution_id": prop("string", "Execution id returned by run_pipeline."),
	}, "execution_id")
}

func (h getPipelineStatusHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[getPipelineStatusArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}
	return h.coordinator.GetPipelineStatus(ctx, args.ExecutionID), nil
}

type listPipelineRunsArgs struct {
	TemplateName string `json:"template_name"`
	Limit        int    `json:"limit"`
	Status       string `json:"status" validate:"omitempty,oneof=running complete failed"`
}

type listPipelineRunsHandler struct {
	coordinator Coordinator
}

func (listPipelineRunsHandler) Name() string        { return "list_pipeline_runs" }
func (listPipelineRunsHandler) Description() string { return "List recorded pipeline executions, optionally filtered by template and status." }
func (listPipelineRunsHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"template_name": prop("string", "Restrict to executions of this template."),
		"limit":         propDefault("integer", "Maximum number of results, most recent first.", 10),
		"status":        prop("string", "Restrict to one of: running, complete, failed."),
	})
}

func (h listPipelineRunsHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[listPipelineRunsArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}
	limit := args.Limit
	if limit == 0 {
		limit = 10
	}
	return map[string]any{
		"success": true,
		"runs":    h.coordinator.ListPipelineRuns(ctx, args.TemplateName, args.Status, limit),
	}, nil
}
