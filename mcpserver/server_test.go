package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/opsorch/pipeline-orchestrator/coordinator"
	"github.com/opsorch/pipeline-orchestrator/schema"
	"github.com/opsorch/pipeline-orchestrator/tplregistry"
)

type fakeStore struct {
	summaries []schema.TemplateSummary
}

func (f *fakeStore) ListTemplates(ctx context.Context) ([]schema.TemplateSummary, error) {
	return f.summaries, nil
}

type fakeTemplates struct {
	createCalls []string
	editResult  tplregistry.EditResult
}

func (f *fakeTemplates) CreateTemplate(ctx context.Context, name, text, description string) (schema.Template, error) {
	f.createCalls = append(f.createCalls, name)
	return schema.Template{Name: name, Description: description, Version: 1}, nil
}

func (f *fakeTemplates) EditTemplate(ctx context.Context, name, newText string, preview bool, newDescription string) (tplregistry.EditResult, error) {
	return f.editResult, nil
}

type fakeCoordinator struct {
	deployResult coordinator.Result
	runResult    coordinator.Result
	lastRunInput coordinator.RunInput
}

func (f *fakeCoordinator) Deploy(ctx context.Context, templateName, jobName, serverName, username, password string) coordinator.Result {
	return f.deployResult
}

func (f *fakeCoordinator) Run(ctx context.Context, in coordinator.RunInput) coordinator.Result {
	f.lastRunInput = in
	return f.runResult
}

func (f *fakeCoordinator) ExecuteCommand(ctx context.Context, command, workingDir, sessionID, serverName, username, password string) coordinator.Result {
	return coordinator.Result{Success: true, Status: "SUCCESS"}
}

func (f *fakeCoordinator) GetPipelineStatus(ctx context.Context, executionID string) coordinator.Result {
	return coordinator.Result{Success: true, ExecutionID: executionID, Status: "complete"}
}

func (f *fakeCoordinator) ListPipelineRuns(ctx context.Context, templateName, status string, limit int) []coordinator.Result {
	return []coordinator.Result{{Success: true, ExecutionID: "a1"}}
}

func newTestServer(t *testing.T) (*Server, *fakeStore, *fakeTemplates, *fakeCoordinator) {
	t.Helper()
	store := &fakeStore{}
	templates := &fakeTemplates{}
	coord := &fakeCoordinator{}
	s, err := New(store, templates, coord, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, store, templates, coord
}

func runLine(t *testing.T, s *Server, line string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	if err := s.Run(context.Background(), strings.NewReader(line+"\n"), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var resp map[string]any
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body=%s)", err, out.String())
	}
	return resp
}

func TestListToolsReturnsFullCatalog(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"list_tools"}`)
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected result object, got %+v", resp)
	}
	tools, ok := result["tools"].([]any)
	if !ok || len(tools) != 9 {
		t.Fatalf("expected 9 tools, got %+v", result["tools"])
	}
}

func TestCallToolHelloWorld(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"hello_world","arguments":{}}}`)
	result := resp["result"].(map[string]any)
	content := result["content"].([]any)[0].(map[string]any)
	var body map[string]any
	if err := json.Unmarshal([]byte(content["text"].(string)), &body); err != nil {
		t.Fatalf("unmarshal content text: %v", err)
	}
	if body["success"] != true {
		t.Fatalf("expected success=true, got %+v", body)
	}
}

func TestCallToolUnknownName(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"does_not_exist","arguments":{}}}`)
	result := resp["result"].(map[string]any)
	if result["is_error"] != true {
		t.Fatalf("expected is_error=true, got %+v", result)
	}
}

func TestCallToolValidationFailure(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"deploy_pipeline","arguments":{}}}`)
	result := resp["result"].(map[string]any)
	if result["is_error"] != true {
		t.Fatalf("expected validation error, got %+v", result)
	}
}

func TestCallToolDeployPipeline(t *testing.T) {
	s, _, _, coord := newTestServer(t)
	coord.deployResult = coordinator.Result{Success: true, Status: "deployed", JobName: "demo"}

	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"deploy_pipeline","arguments":{"template_name":"demo"}}}`)
	result := resp["result"].(map[string]any)
	content := result["content"].([]any)[0].(map[string]any)
	var body map[string]any
	json.Unmarshal([]byte(content["text"].(string)), &body)
	if body["job_name"] != "demo" {
		t.Fatalf("unexpected deploy result: %+v", body)
	}
}

func TestCallToolRunPipelineRejectsBothInputs(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"run_pipeline","arguments":{"template_name":"demo","jenkinsfile_content":"pipeline {}"}}}`)
	result := resp["result"].(map[string]any)
	if result["is_error"] != true {
		t.Fatalf("expected mutual-exclusion validation error, got %+v", result)
	}
}

func TestCallToolCreateTemplateDefaultsAgent(t *testing.T) {
	s, _, templates, _ := newTestServer(t)
	resp := runLine(t, s, `{"id":"1","method":"call_tool","params":{"name":"create_template","arguments":{"template_name":"demo","description":"build and test"}}}`)
	result := resp["result"].(map[string]any)
	if result["is_error"] == true {
		t.Fatalf("unexpected error: %+v", result)
	}
	if len(templates.createCalls) != 1 || templates.createCalls[0] != "demo" {
		t.Fatalf("expected CreateTemplate called with demo, got %+v", templates.createCalls)
	}
	content := result["content"].([]any)[0].(map[string]any)
	if !strings.Contains(content["text"].(string), "agent any") {
		t.Fatalf("expected generated Jenkinsfile to default to agent any, got %s", content["text"])
	}
}
