// Package coordinator is the Pipeline Coordinator (§4.4): it composes the
// Jenkins Client, the Metadata Store Adapter, and the Template Registry
// into the user-facing deploy/run/execute_command actions. Every public
// entry point returns a structured result and never lets an underlying
// failure escape as a raw error (§4.4 "Failure semantics").
package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opsorch/pipeline-orchestrator/jenkinsclient"
	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// Store is the subset of store.Adapter the Coordinator composes over.
type Store interface {
	GetTemplate(ctx context.Context, name string) (schema.Template, error)
	DeployPipeline(ctx context.Context, templateName, jenkinsJobName, serverName string) (schema.Deployment, error)
	RecordExecution(ctx context.Context, in schema.RecordExecutionInput) (schema.Execution, error)
	FinalizeExecution(ctx context.Context, in schema.UpdateExecutionStatusInput) (schema.Execution, error)
	GetExecution(ctx context.Context, id string) (schema.Execution, error)
	ListExecutions(ctx context.Context, q schema.ListExecutionsQuery) ([]schema.Execution, error)
	GetConsoleOutput(ctx context.Context, executionID string) (string, error)
}

// Jenkins is the subset of the per-server Jenkins handle the Coordinator
// drives. jenkinsclient.Client satisfies it directly.
type Jenkins interface {
	Connect(ctx context.Context) error
	JobExists(ctx context.Context, jobName string) (bool, error)
	DeleteJobIfExists(ctx context.Context, jobName string) (bool, error)
	CreateJob(ctx context.Context, jobName, jenkinsfileText string) error
	StartJob(ctx context.Context, jobName string, parameters map[string]string) (jenkinsclient.StartResult, error)
	StreamConsole(ctx context.Context, jobName string, buildNumber int) (jenkinsclient.ConsoleResult, error)
}

// ServerConnector resolves a server name to a Jenkins handle (§4.2 connect).
// Implementations return the Jenkins interface rather than a concrete
// *jenkinsclient.Client so the Coordinator can be exercised against a test
// double without touching HTTP.
type ServerConnector interface {
	Connect(serverName, username, password string) (Jenkins, error)
}

// Templates is the subset of tplregistry.Registry the Coordinator composes
// over.
type Templates interface {
	ReadJenkinsfile(name string) (string, error)
}

// Coordinator holds the composed dependencies. It carries no state of its
// own beyond what it was constructed with (§9 "Global state": threaded
// through explicitly rather than kept as a process-wide singleton).
type Coordinator struct {
	store     Store
	servers   ServerConnector
	templates Templates
	log       *logrus.Entry

	defaultServerName string
	defaultUsername   string
	defaultPassword   string
}

// Options configures a Coordinator.
type Options struct {
	DefaultServerName string
	DefaultUsername   string
	DefaultPassword   string
	Logger            *logrus.Logger
}

func New(store Store, servers ServerConnector, templates Templates, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	serverName := opts.DefaultServerName
	if serverName == "" {
		serverName = "default"
	}
	return &Coordinator{
		store:             store,
		servers:           servers,
		templates:         templates,
		log:               logger.WithField("component", "coordinator"),
		defaultServerName: serverName,
		defaultUsername:   opts.DefaultUsername,
		defaultPassword:   opts.DefaultPassword,
	}
}

func (c *Coordinator) connect(serverName, username, password string) (Jenkins, error) {
	if serverName == "" {
		serverName = c.defaultServerName
	}
	if username == "" {
		username, password = c.defaultUsername, c.defaultPassword
	}
	return c.servers.Connect(serverName, username, password)
}

func shortID() string {
	return uuid.NewString()[:8]
}

// recoverPanic converts a panic escaping a Coordinator entry point into a
// structured Result rather than letting it crash the stdio process
// (SPEC_FULL §0.2 "nothing propagates as ... a panic to the MCP transport").
func recoverPanic(op string, result *Result) {
	if r := recover(); r != nil {
		*result = errorResult(op, pipeerr.New(pipeerr.CodeInternal, op, fmt.Sprintf("recovered panic: %v", r)))
	}
}
