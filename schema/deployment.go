package schema

import "time"

// Deployment is a named Jenkins job associated with a template and server
// (§3 "Deployment"). At most one live deployment exists per
// (ServerName, JenkinsJobName) pair; redeploying the same pair supersedes
// the previous mapping rather than creating a second record.
type Deployment struct {
	ID              string    `json:"id"`
	TemplateName    string    `json:"template_name"`
	TemplateVersion int       `json:"template_version"`
	JenkinsJobName  string    `json:"jenkins_job_name"`
	ServerName      string    `json:"server_name"`
	DeployedAt      time.Time `json:"deployed_at"`
	Status          string    `json:"status"`
}

// DeploymentStatus is always "deployed" for a live record (§3).
const DeploymentStatusDeployed = "deployed"
