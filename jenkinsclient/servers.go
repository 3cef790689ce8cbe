package jenkinsclient

import (
	"fmt"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/registry"
)

// ServerConfig is one entry of the static {server_name -> url} map (§4.2,
// §6 Configuration).
type ServerConfig struct {
	URL      string
	Username string
	Password string
}

// ServerRegistry holds the static server map the Coordinator connects
// through; it is built once at startup from configuration.
type ServerRegistry struct {
	servers *registry.Registry[ServerConfig]
}

func NewServerRegistry() *ServerRegistry {
	return &ServerRegistry{servers: registry.New[ServerConfig]()}
}

func (r *ServerRegistry) Add(name string, cfg ServerConfig) {
	r.servers.Set(name, cfg)
}

// Connect looks up server_name and returns a Client handle, preferring
// per-call credentials over the server's static defaults (§4.2 connect
// semantics).
func (r *ServerRegistry) Connect(serverName, username, password string) (*Client, error) {
	cfg, ok := r.servers.Get(serverName)
	if !ok {
		return nil, pipeerr.New(pipeerr.CodeJenkinsUnreachable, "connect", fmt.Sprintf("unknown server %q", serverName))
	}
	u, p := cfg.Username, cfg.Password
	if username != "" {
		u, p = username, password
	}
	return New(cfg.URL, WithCredentials(u, p)), nil
}
