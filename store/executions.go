package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// RecordExecution creates a fresh Execution and indexes it into the global,
// per-template, per-job, and status:running sets (§4.1 record_execution).
// It retries the hash write once on failure before reporting partial
// success, and never fails the per-index writes past logging them.
func (a *Adapter) RecordExecution(ctx context.Context, in schema.RecordExecutionInput) (schema.Execution, error) {
	deploymentID := in.DeploymentID
	if deploymentID == "" && in.TemplateName != "" && in.JenkinsJobName != "" && in.ServerName != "" {
		if id, ok := a.resolveDeploymentID(ctx, in.ServerName, in.JenkinsJobName); ok {
			deploymentID = id
		}
	}

	status := schema.StatusRunning
	exec := schema.Execution{
		ID:             uuid.NewString(),
		DeploymentID:   deploymentID,
		TemplateName:   in.TemplateName,
		JenkinsJobName: in.JenkinsJobName,
		ServerName:     in.ServerName,
		BuildNumber:    in.BuildNumber,
		Parameters:     in.Parameters,
		StartedAt:      a.now(),
		Status:         status,
	}

	fields, err := executionFields(exec)
	if err != nil {
		return exec, pipeerr.Wrap(pipeerr.CodeStoreError, "record_execution.marshal", err)
	}

	writeErr := a.rdb.HSet(ctx, executionKey(exec.ID), fields).Err()
	if writeErr != nil {
		a.log.WithError(writeErr).WithField("execution", exec.ID).Warn("record_execution: hash write failed, retrying once")
		writeErr = a.rdb.HSet(ctx, executionKey(exec.ID), fields).Err()
		if writeErr != nil {
			a.log.WithError(writeErr).WithField("execution", exec.ID).Warn("record_execution: retry failed, returning partial success")
			return exec, nil
		}
	}

	pipe := a.rdb.TxPipeline()
	pipe.ZAdd(ctx, executionsIndexKey(), redis.Z{Score: score(exec.StartedAt), Member: exec.ID})
	if exec.TemplateName != "" {
		pipe.ZAdd(ctx, templateExecutionsKey(exec.TemplateName), redis.Z{Score: score(exec.StartedAt), Member: exec.ID})
	}
	if exec.ServerName != "" && exec.JenkinsJobName != "" {
		pipe.ZAdd(ctx, jobExecutionsKey(exec.ServerName, exec.JenkinsJobName), redis.Z{Score: score(exec.StartedAt), Member: exec.ID})
	}
	pipe.SAdd(ctx, statusKey(string(status)), exec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.WithError(err).WithField("execution", exec.ID).Warn("record_execution: index write failed")
	}

	return exec, nil
}

// UpdateExecutionStatus is the single idempotent primitive the Coordinator
// calls to move an Execution to a terminal (or intermediate) state,
// replacing the original's multiple ad hoc recovery writes (§4.4 Design
// Notes, SPEC_FULL §4). If the Execution key is missing it synthesizes a
// minimal placeholder and proceeds (§4.1 recovery path).
func (a *Adapter) UpdateExecutionStatus(ctx context.Context, in schema.UpdateExecutionStatusInput) (schema.Execution, error) {
	if in.ExecutionID == "" {
		return schema.Execution{}, pipeerr.New(pipeerr.CodeStoreError, "update_execution_status", "execution id required")
	}

	key := executionKey(in.ExecutionID)
	fields, err := a.rdb.HGetAll(ctx, key).Result()
	var exec schema.Execution
	if err != nil || len(fields) == 0 {
		exec = schema.Execution{ID: in.ExecutionID, StartedAt: a.now(), Status: schema.StatusRunning}
	} else {
		exec = executionFromFields(in.ExecutionID, fields)
	}

	priorStatus := exec.Status
	exec.Status = in.Status
	if in.Result != "" {
		exec.Result = in.Result
	}
	if in.HasDuration {
		exec.DurationMS = in.DurationMS
	}
	if isTerminal(in.Status) {
		now := a.now()
		exec.FinishedAt = &now
	}

	if in.ConsoleOutput != "" {
		if err := a.storeConsole(ctx, in.ExecutionID, in.ConsoleOutput); err != nil {
			a.log.WithError(err).WithField("execution", in.ExecutionID).Warn("update_execution_status: console store failed")
		} else {
			exec.ConsoleStored = true
		}
	}

	fieldsOut, err := executionFields(exec)
	if err != nil {
		return exec, pipeerr.Wrap(pipeerr.CodeStoreError, "update_execution_status.marshal", err)
	}

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, key, fieldsOut)
	if priorStatus != "" && priorStatus != exec.Status {
		pipe.SRem(ctx, statusKey(string(priorStatus)), exec.ID)
	}
	pipe.SAdd(ctx, statusKey(string(exec.Status)), exec.ID)
	pipe.ZAdd(ctx, executionsIndexKey(), redis.Z{Score: score(exec.StartedAt), Member: exec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.WithError(err).WithField("execution", exec.ID).Warn("update_execution_status: pipeline write failed")
	}

	return exec, nil
}

// FinalizeExecution is an alias for UpdateExecutionStatus named after the
// idempotent-primitive role it plays in the run_pipeline flow (SPEC_FULL
// §4): "ensure Execution X is in terminal state S with result R" is exactly
// UpdateExecutionStatus's contract, called exactly once per run.
func (a *Adapter) FinalizeExecution(ctx context.Context, in schema.UpdateExecutionStatusInput) (schema.Execution, error) {
	return a.UpdateExecutionStatus(ctx, in)
}

// GetExecution fetches an Execution, falling back to a minimal record
// reconstructed from the console spill file when the store has no hash for
// the id (§4.1 get_execution).
func (a *Adapter) GetExecution(ctx context.Context, id string) (schema.Execution, error) {
	fields, err := a.rdb.HGetAll(ctx, executionKey(id)).Result()
	if err == nil && len(fields) > 0 {
		exec := executionFromFields(id, fields)
		if !exec.ConsoleStored {
			if text, ok := a.readConsoleFallback(id); ok {
				exec.ConsoleStored = true
				_ = a.storeConsole(ctx, id, text)
			}
		}
		return exec, nil
	}

	text, ok := a.readConsoleFallback(id)
	if !ok {
		return schema.Execution{}, pipeerr.New(pipeerr.CodeStoreError, "get_execution", fmt.Sprintf("no record or fallback for %s", id))
	}

	exec := schema.Execution{ID: id, StartedAt: a.now(), Status: schema.StatusUnknown, ConsoleStored: true}
	if strings.Contains(text, "Finished: SUCCESS") {
		exec.Status = schema.StatusComplete
		exec.Result = "SUCCESS"
	} else if strings.Contains(text, "Finished: FAILURE") {
		exec.Status = schema.StatusFailed
		exec.Result = "FAILURE"
	}
	_ = a.storeConsole(ctx, id, text)
	return exec, nil
}

// ListExecutions lists executions with optional template/status filters,
// newest first, bounded by limit (§4.1 list_executions).
func (a *Adapter) ListExecutions(ctx context.Context, q schema.ListExecutionsQuery) ([]schema.Execution, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var ids []string
	var err error

	switch {
	case q.TemplateName != "" && q.Status != "":
		ids, err = a.intersectTemplateAndStatus(ctx, q.TemplateName, string(q.Status), limit)
	case q.Status != "":
		ids, err = a.filterGlobalByStatus(ctx, string(q.Status), limit)
	case q.TemplateName != "":
		ids, err = a.rdb.ZRevRange(ctx, templateExecutionsKey(q.TemplateName), 0, int64(limit-1)).Result()
	default:
		ids, err = a.rdb.ZRevRange(ctx, executionsIndexKey(), 0, int64(limit-1)).Result()
	}
	if err != nil && err != redis.Nil {
		return nil, pipeerr.Wrap(pipeerr.CodeStoreError, "list_executions", err)
	}

	out := make([]schema.Execution, 0, len(ids))
	for _, id := range ids {
		fields, err := a.rdb.HGetAll(ctx, executionKey(id)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		out = append(out, executionFromFields(id, fields))
	}
	return out, nil
}

// intersectTemplateAndStatus walks the per-template time-ordered list in
// reverse and keeps only ids present in the status set, respecting limit.
func (a *Adapter) intersectTemplateAndStatus(ctx context.Context, templateName, status string, limit int) ([]string, error) {
	candidates, err := a.rdb.ZRevRange(ctx, templateExecutionsKey(templateName), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, limit)
	for _, id := range candidates {
		if len(out) >= limit {
			break
		}
		member, err := a.rdb.SIsMember(ctx, statusKey(status), id).Result()
		if err != nil {
			continue
		}
		if member {
			out = append(out, id)
		}
	}
	return out, nil
}

// filterGlobalByStatus scans the global index in reverse time order and
// keeps only ids that are members of the status set.
func (a *Adapter) filterGlobalByStatus(ctx context.Context, status string, limit int) ([]string, error) {
	candidates, err := a.rdb.ZRevRange(ctx, executionsIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, limit)
	for _, id := range candidates {
		if len(out) >= limit {
			break
		}
		member, err := a.rdb.SIsMember(ctx, statusKey(status), id).Result()
		if err != nil {
			continue
		}
		if member {
			out = append(out, id)
		}
	}
	return out, nil
}

func isTerminal(s schema.ExecutionStatus) bool {
	return s == schema.StatusComplete || s == schema.StatusFailed
}

func executionFields(e schema.Execution) (map[string]any, error) {
	paramsJSON := "{}"
	if e.Parameters != nil {
		b, err := json.Marshal(e.Parameters)
		if err != nil {
			return nil, err
		}
		paramsJSON = string(b)
	}
	finishedAt := ""
	if e.FinishedAt != nil {
		finishedAt = e.FinishedAt.Format(timeLayout)
	}
	return map[string]any{
		"id":               e.ID,
		"deployment_id":    e.DeploymentID,
		"template_name":    e.TemplateName,
		"jenkins_job_name": e.JenkinsJobName,
		"server_name":      e.ServerName,
		"build_number":     e.BuildNumber,
		"parameters":       paramsJSON,
		"started_at":       e.StartedAt.Format(timeLayout),
		"status":           string(e.Status),
		"result":           e.Result,
		"duration_ms":      fmt.Sprintf("%d", e.DurationMS),
		"finished_at":      finishedAt,
		"console_stored":   fmt.Sprintf("%t", e.ConsoleStored),
	}, nil
}

func executionFromFields(id string, fields map[string]string) schema.Execution {
	exec := schema.Execution{
		ID:             id,
		DeploymentID:   fields["deployment_id"],
		TemplateName:   fields["template_name"],
		JenkinsJobName: fields["jenkins_job_name"],
		ServerName:     fields["server_name"],
		BuildNumber:    fields["build_number"],
		Status:         schema.ExecutionStatus(fields["status"]),
		Result:         fields["result"],
		DurationMS:     parseInt64Field(fields["duration_ms"], 0),
		ConsoleStored:  fields["console_stored"] == "true",
	}
	exec.StartedAt = parseTimeField(fields["started_at"], time.Time{})
	if fields["finished_at"] != "" {
		t := parseTimeField(fields["finished_at"], time.Time{})
		exec.FinishedAt = &t
	}
	if fields["parameters"] != "" {
		var params map[string]any
		if err := json.Unmarshal([]byte(fields["parameters"]), &params); err == nil {
			exec.Parameters = params
		}
	}
	return exec
}
