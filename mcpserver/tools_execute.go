package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

type executeCommandArgs struct {
	Command          string `json:"command" validate:"required"`
	WorkingDirectory string `json:"working_directory"`
	SessionID        string `json:"session_id"`
	ServerName       string `json:"server_name"`
	Username         string `json:"username"`
	Password         string `json:"password"`
}

type executeCommandHandler struct {
	coordinator Coordinator
}

func (executeCommandHandler) Name() string { return "execute_command" }
func (executeCommandHandler) Description() string {
	return "Run an ad-hoc shell command on a Jenkins agent through a disposable job."
}
func (executeCommandHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"command":           prop("string", "Shell command to execute."),
		"working_directory": propDefault("string", "Directory the command runs in.", "/workspace"),
		"session_id":        prop("string", "Caller-supplied session id propagated into the job environment."),
		"server_name":       propDefault("string", "Jenkins server to run against.", "default"),
		"username":          prop("string", "Jenkins username, overriding the server's default credentials."),
		"password":          prop("string", "Jenkins password, overriding the server's default credentials."),
	}, "command")
}

func (h executeCommandHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[executeCommandArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}
	return h.coordinator.ExecuteCommand(ctx, args.Command, args.WorkingDirectory, args.SessionID, args.ServerName, args.Username, args.Password), nil
}
