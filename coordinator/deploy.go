package coordinator

import (
	"context"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
)

// Deploy composes verify-template -> read-jenkinsfile -> connect ->
// delete-then-create-job -> record-deployment into the deploy_pipeline tool
// action (§4.4 deploy). Every failing step returns a structured error record
// naming the failing stage.
func (c *Coordinator) Deploy(ctx context.Context, templateName, jobName, serverName, username, password string) (result Result) {
	defer recoverPanic("deploy", &result)

	if jobName == "" {
		jobName = templateName
	}
	if serverName == "" {
		serverName = c.defaultServerName
	}

	if _, err := c.store.GetTemplate(ctx, templateName); err != nil {
		return errorResult("deploy.verify_template", err)
	}

	jenkinsfileText, err := c.templates.ReadJenkinsfile(templateName)
	if err != nil {
		return errorResult("deploy.read_jenkinsfile", err)
	}

	jenkins, err := c.connect(serverName, username, password)
	if err != nil {
		return errorResult("deploy.connect", err)
	}
	if err := jenkins.Connect(ctx); err != nil {
		return errorResult("deploy.connect", err)
	}

	if _, err := jenkins.DeleteJobIfExists(ctx, jobName); err != nil {
		c.log.WithError(err).WithField("job", jobName).Warn("deploy: delete_job_if_exists failed, continuing")
	}
	if err := jenkins.CreateJob(ctx, jobName, jenkinsfileText); err != nil {
		return errorResult("deploy.create_job", pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "deploy.create_job", err))
	}

	deployment, err := c.store.DeployPipeline(ctx, templateName, jobName, serverName)
	if err != nil {
		return errorResult("deploy.record_deployment", err)
	}

	return Result{
		Success:      true,
		Status:       "deployed",
		DeploymentID: deployment.ID,
		JobName:      jobName,
		ServerName:   serverName,
		TemplateName: templateName,
	}
}
