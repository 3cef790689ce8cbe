package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// DeployPipeline records a new Deployment, superseding any previous mapping
// for the same (server, job) pair (§4.1 deploy_pipeline, §3 invariants).
func (a *Adapter) DeployPipeline(ctx context.Context, templateName, jenkinsJobName, serverName string) (schema.Deployment, error) {
	fields, err := a.rdb.HGetAll(ctx, templateKey(templateName)).Result()
	if err != nil || len(fields) == 0 {
		return schema.Deployment{}, pipeerr.New(pipeerr.CodeTemplateNotFound, "deploy_pipeline",
			fmt.Sprintf("template %s not registered", templateName))
	}

	dep := schema.Deployment{
		ID:              uuid.NewString(),
		TemplateName:    templateName,
		TemplateVersion: parseIntField(fields["version"], 1),
		JenkinsJobName:  jenkinsJobName,
		ServerName:      serverName,
		DeployedAt:      a.now(),
		Status:          schema.DeploymentStatusDeployed,
	}

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, deploymentKey(dep.ID), deploymentFields(dep))
	pipe.SAdd(ctx, templateDeploymentsKey(templateName), dep.ID)
	pipe.Set(ctx, jobIndexKey(serverName, jenkinsJobName), dep.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.WithError(err).WithField("deployment", dep.ID).Warn("deploy_pipeline: pipeline write failed")
	}
	return dep, nil
}

// resolveDeploymentID looks up the (server, job) -> deployment id index.
func (a *Adapter) resolveDeploymentID(ctx context.Context, serverName, jenkinsJobName string) (string, bool) {
	id, err := a.rdb.Get(ctx, jobIndexKey(serverName, jenkinsJobName)).Result()
	if err != nil {
		return "", false
	}
	return id, id != ""
}

func deploymentFields(d schema.Deployment) map[string]any {
	return map[string]any{
		"id":               d.ID,
		"template_name":    d.TemplateName,
		"template_version": strconv.Itoa(d.TemplateVersion),
		"jenkins_job_name": d.JenkinsJobName,
		"server_name":      d.ServerName,
		"deployed_at":      d.DeployedAt.Format(timeLayout),
		"status":           d.Status,
	}
}
