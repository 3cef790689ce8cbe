package mcpserver

import (
	"context"

	"github.com/opsorch/pipeline-orchestrator/coordinator"
	"github.com/opsorch/pipeline-orchestrator/schema"
	"github.com/opsorch/pipeline-orchestrator/tplregistry"
)

// Store is the subset of store.Adapter the Tool Server composes over
// directly (list_templates does not go through the Coordinator — §4.5's
// handlers are "thin adapters over a Coordinator/Registry call").
type Store interface {
	ListTemplates(ctx context.Context) ([]schema.TemplateSummary, error)
}

// Templates is the subset of tplregistry.Registry the Tool Server composes
// over directly for create_template/edit_template.
type Templates interface {
	CreateTemplate(ctx context.Context, name, text, description string) (schema.Template, error)
	EditTemplate(ctx context.Context, name, newText string, preview bool, newDescription string) (tplregistry.EditResult, error)
}

// Coordinator is the subset of coordinator.Coordinator the Tool Server
// dispatches deploy/run/execute_command/status tools to.
type Coordinator interface {
	Deploy(ctx context.Context, templateName, jobName, serverName, username, password string) coordinator.Result
	Run(ctx context.Context, in coordinator.RunInput) coordinator.Result
	ExecuteCommand(ctx context.Context, command, workingDir, sessionID, serverName, username, password string) coordinator.Result
	GetPipelineStatus(ctx context.Context, executionID string) coordinator.Result
	ListPipelineRuns(ctx context.Context, templateName, status string, limit int) []coordinator.Result
}
