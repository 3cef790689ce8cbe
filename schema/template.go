// Package schema defines the wire and store shapes for templates,
// deployments, executions, and the queries used to list them, per §3.
package schema

import "time"

// Template is the registered form of a Jenkinsfile on disk (§3 "Template").
// A Template record exists if and only if a file
// <templates_dir>/<name>.Jenkinsfile exists at the moment of a
// list_templates reconciliation.
type Template struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	TemplatePath string   `json:"template_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int       `json:"version"`
}

// TemplateSummary is the projection returned by list_templates.
type TemplateSummary struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	UpdatedAt   time.Time `json:"updated_at"`
}
