package jenkinsclient

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
)

// pipelineConfig is the job configuration document Jenkins accepts for a
// sandboxed scripted pipeline job (§4.2 create_job: "the configuration
// selects a sandboxed pipeline definition"). The Jenkinsfile body is the
// only variable part.
type pipelineConfig struct {
	XMLName xml.Name `xml:"flow-definition"`
	Plugin  string   `xml:"plugin,attr"`
	Definition struct {
		Class   string `xml:"class,attr"`
		Script  string `xml:"script"`
		Sandbox bool   `xml:"sandbox"`
	} `xml:"definition"`
}

func newPipelineConfig(jenkinsfileText string) pipelineConfig {
	cfg := pipelineConfig{Plugin: "workflow-job"}
	cfg.Definition.Class = "org.jenkinsci.plugins.workflow.cps.CpsFlowDefinition"
	cfg.Definition.Script = jenkinsfileText
	cfg.Definition.Sandbox = true
	return cfg
}

// JobExists reports whether job_name exists on this server (§4.2).
func (c *Client) JobExists(ctx context.Context, jobName string) (bool, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/job/%s/api/json", jobName))
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	return true, nil
}

// DeleteJobIfExists deletes job_name, returning whether anything was
// removed. It never fails if the job is absent (§4.2).
func (c *Client) DeleteJobIfExists(ctx context.Context, jobName string) (bool, error) {
	exists, _ := c.JobExists(ctx, jobName)
	if !exists {
		return false, nil
	}
	resp, err := c.postForm(ctx, fmt.Sprintf("/job/%s/doDelete", jobName), nil)
	if err != nil {
		c.log.WithError(err).WithField("job", jobName).Warn("delete_job_if_exists: delete failed")
		return false, pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "delete_job_if_exists", err)
	}
	defer resp.Body.Close()
	return true, nil
}

// CreateJob posts a job configuration document whose only variable part is
// the XML-escaped Jenkinsfile script body (§4.2).
func (c *Client) CreateJob(ctx context.Context, jobName, jenkinsfileText string) error {
	cfg := newPipelineConfig(jenkinsfileText)
	body, err := xml.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "create_job.marshal", err)
	}
	resp, err := c.postXML(ctx, fmt.Sprintf("/createItem?name=%s", jobName), body)
	if err != nil {
		return pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "create_job", err)
	}
	defer resp.Body.Close()
	return nil
}
