package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/opsorch/pipeline-orchestrator/schema"
)

// newTestAdapter spins up a miniredis instance and an Adapter pointed at
// temp template/metadata directories (§0.4).
func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	templatesDir := t.TempDir()
	metadataDir := t.TempDir()

	a := NewFromClient(rdb, Options{TemplatesDir: templatesDir, MetadataDir: metadataDir})
	return a
}

func writeJenkinsfile(t *testing.T, a *Adapter, name, body string) {
	t.Helper()
	path := a.jenkinsfilePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write jenkinsfile: %v", err)
	}
}

func TestRegisterTemplateRequiresFile(t *testing.T) {
	a := newTestAdapter(t)
	if _, err := a.RegisterTemplate(context.Background(), "missing", ""); err == nil {
		t.Fatalf("expected error for missing Jenkinsfile")
	}
}

func TestRegisterTemplateExtractsDescription(t *testing.T) {
	a := newTestAdapter(t)
	writeJenkinsfile(t, a, "deploy", "// Description: builds and deploys\npipeline {}\n")

	tmpl, err := a.RegisterTemplate(context.Background(), "deploy", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if tmpl.Description != "builds and deploys" {
		t.Fatalf("expected extracted description, got %q", tmpl.Description)
	}
	if tmpl.Version != 1 {
		t.Fatalf("expected version 1, got %d", tmpl.Version)
	}
}

func TestRegisterTemplateBumpsVersion(t *testing.T) {
	a := newTestAdapter(t)
	writeJenkinsfile(t, a, "deploy", "pipeline {}\n")

	first, err := a.RegisterTemplate(context.Background(), "deploy", "v1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := a.RegisterTemplate(context.Background(), "deploy", "v2")
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.Version != first.Version+1 {
		t.Fatalf("expected version bump, got %d -> %d", first.Version, second.Version)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected created_at to be preserved across re-register")
	}
}

func TestListTemplatesReconciles(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	writeJenkinsfile(t, a, "alpha", "// Description: alpha pipeline\npipeline {}\n")

	summaries, err := a.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("list_templates: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Name != "alpha" {
		t.Fatalf("expected auto-registered alpha, got %+v", summaries)
	}

	if err := os.Remove(a.jenkinsfilePath("alpha")); err != nil {
		t.Fatalf("remove jenkinsfile: %v", err)
	}
	summaries, err = a.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("list_templates after remove: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("expected eviction of missing template, got %+v", summaries)
	}
}

func TestUpdateTemplateRewritesDescriptionLine(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	writeJenkinsfile(t, a, "alpha", "// Description: old text\npipeline {}\n")
	if _, err := a.RegisterTemplate(ctx, "alpha", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := a.UpdateTemplate(ctx, "alpha", "new text"); err != nil {
		t.Fatalf("update_template: %v", err)
	}

	data, err := os.ReadFile(a.jenkinsfilePath("alpha"))
	if err != nil {
		t.Fatalf("read jenkinsfile: %v", err)
	}
	if got := string(data); got != "// Description: new text\npipeline {}\n" {
		t.Fatalf("unexpected jenkinsfile contents: %q", got)
	}
}

func TestDeployPipelineRequiresRegisteredTemplate(t *testing.T) {
	a := newTestAdapter(t)
	if _, err := a.DeployPipeline(context.Background(), "unregistered", "job1", "server1"); err == nil {
		t.Fatalf("expected error for unregistered template")
	}
}

func TestDeployPipelineSupersedesPreviousMapping(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	writeJenkinsfile(t, a, "alpha", "pipeline {}\n")
	if _, err := a.RegisterTemplate(ctx, "alpha", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := a.DeployPipeline(ctx, "alpha", "job1", "server1")
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	second, err := a.DeployPipeline(ctx, "alpha", "job1", "server1")
	if err != nil {
		t.Fatalf("redeploy: %v", err)
	}
	id, ok := a.resolveDeploymentID(ctx, "server1", "job1")
	if !ok || id != second.ID {
		t.Fatalf("expected job index to point at latest deployment, got %q want %q", id, second.ID)
	}
	if first.ID == second.ID {
		t.Fatalf("expected a new deployment id on redeploy")
	}
}

func TestRecordAndGetExecution(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	exec, err := a.RecordExecution(ctx, execInput("alpha", "job1", "server1"))
	if err != nil {
		t.Fatalf("record_execution: %v", err)
	}
	if exec.Status != "running" {
		t.Fatalf("expected running status, got %s", exec.Status)
	}

	got, err := a.GetExecution(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get_execution: %v", err)
	}
	if got.ID != exec.ID || got.TemplateName != "alpha" {
		t.Fatalf("unexpected execution: %+v", got)
	}
}

func TestUpdateExecutionStatusToTerminal(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	exec, err := a.RecordExecution(ctx, execInput("alpha", "job1", "server1"))
	if err != nil {
		t.Fatalf("record_execution: %v", err)
	}

	updated, err := a.FinalizeExecution(ctx, updateInput(exec.ID, "complete", "SUCCESS", "build log\nFinished: SUCCESS\n"))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if updated.Status != "complete" || updated.Result != "SUCCESS" {
		t.Fatalf("unexpected finalized execution: %+v", updated)
	}
	if updated.FinishedAt == nil {
		t.Fatalf("expected finished_at to be set")
	}
	if !updated.ConsoleStored {
		t.Fatalf("expected console output to be recorded")
	}

	out, err := a.GetConsoleOutput(ctx, exec.ID)
	if err != nil {
		t.Fatalf("get_console_output: %v", err)
	}
	if out == "" {
		t.Fatalf("expected non-empty console output")
	}
}

func TestListExecutionsFiltersByTemplateAndStatus(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	e1, _ := a.RecordExecution(ctx, execInput("alpha", "job1", "server1"))
	e2, _ := a.RecordExecution(ctx, execInput("alpha", "job1", "server1"))
	_, _ = a.RecordExecution(ctx, execInput("beta", "job2", "server1"))

	if _, err := a.FinalizeExecution(ctx, updateInput(e1.ID, "complete", "SUCCESS", "")); err != nil {
		t.Fatalf("finalize e1: %v", err)
	}
	if _, err := a.FinalizeExecution(ctx, updateInput(e2.ID, "failed", "FAILURE", "")); err != nil {
		t.Fatalf("finalize e2: %v", err)
	}

	list, err := a.ListExecutions(ctx, listQuery("alpha", "complete", 10))
	if err != nil {
		t.Fatalf("list_executions: %v", err)
	}
	if len(list) != 1 || list[0].ID != e1.ID {
		t.Fatalf("expected only e1 in complete+alpha filter, got %+v", list)
	}
}

func TestGetExecutionFallsBackToConsoleSpill(t *testing.T) {
	a := newTestAdapter(t)
	if err := a.writeConsoleFallback("orphan-1", "build output\nFinished: FAILURE\n"); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	exec, err := a.GetExecution(context.Background(), "orphan-1")
	if err != nil {
		t.Fatalf("get_execution: %v", err)
	}
	if exec.Status != "failed" || exec.Result != "FAILURE" {
		t.Fatalf("expected recovered failed status, got %+v", exec)
	}
}

func execInput(template, job, server string) schema.RecordExecutionInput {
	return schema.RecordExecutionInput{TemplateName: template, JenkinsJobName: job, ServerName: server}
}

func updateInput(id, status, result, console string) schema.UpdateExecutionStatusInput {
	return schema.UpdateExecutionStatusInput{
		ExecutionID:   id,
		Status:        schema.ExecutionStatus(status),
		Result:        result,
		ConsoleOutput: console,
	}
}

func listQuery(template, status string, limit int) schema.ListExecutionsQuery {
	return schema.ListExecutionsQuery{TemplateName: template, Status: schema.ExecutionStatus(status), Limit: limit}
}
