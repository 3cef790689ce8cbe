package coordinator

import "github.com/opsorch/pipeline-orchestrator/jenkinsclient"

// JenkinsServerConnector adapts jenkinsclient.ServerRegistry to the
// ServerConnector interface for production wiring; *jenkinsclient.Client
// satisfies Jenkins structurally, so no further translation is needed.
type JenkinsServerConnector struct {
	Registry *jenkinsclient.ServerRegistry
}

func (a *JenkinsServerConnector) Connect(serverName, username, password string) (Jenkins, error) {
	return a.Registry.Connect(serverName, username, password)
}
