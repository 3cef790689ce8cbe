package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// embeddedCommandTemplate is the fixed Jenkinsfile execute_command deploys
// under a generated job name. The command is substituted as the body of
// the sh step inside a triple-single-quoted Groovy string, never as inline
// pipeline text, to avoid a pipeline-script injection hazard (§9 Open
// Questions).
const embeddedCommandTemplate = `pipeline {
    agent any
    environment {
        SESSION_ID = '%s'
    }
    stages {
        stage('execute') {
            steps {
                dir('%s') {
                    sh '''%s'''
                }
            }
        }
    }
}
`

// ExecuteCommand runs an ad-hoc shell command through the same Jenkins
// substrate without persisting a template, using a generated job name that
// is deleted after streaming completes (§4.4 execute_command).
func (c *Coordinator) ExecuteCommand(ctx context.Context, command, workingDir, sessionID, serverName, username, password string) (result Result) {
	defer recoverPanic("execute_command", &result)

	if workingDir == "" {
		workingDir = "/workspace"
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if serverName == "" {
		serverName = c.defaultServerName
	}

	jobName := "cmd-" + shortID()
	jenkinsfileText := fmt.Sprintf(embeddedCommandTemplate, sessionID, workingDir, escapeGroovyTripleQuoted(command))

	jenkins, err := c.connect(serverName, username, password)
	if err != nil {
		return errorResult("execute_command.connect", err)
	}
	if err := jenkins.Connect(ctx); err != nil {
		return errorResult("execute_command.connect", err)
	}

	if err := jenkins.CreateJob(ctx, jobName, jenkinsfileText); err != nil {
		return errorResult("execute_command.create_job", err)
	}
	defer func() {
		if _, err := jenkins.DeleteJobIfExists(ctx, jobName); err != nil {
			c.log.WithError(err).WithField("job", jobName).Warn("execute_command: cleanup delete failed")
		}
	}()

	startResult, err := jenkins.StartJob(ctx, jobName, nil)
	if err != nil {
		return errorResult("execute_command.start_job", err)
	}

	consoleResult, err := jenkins.StreamConsole(ctx, jobName, startResult.BuildNumber)
	if err != nil {
		return errorResult("execute_command.stream_console", err)
	}

	return Result{
		Success:       true,
		Status:        consoleResult.Status,
		JobName:       jobName,
		ServerName:    serverName,
		BuildNumber:   startResult.BuildNumber,
		ConsoleOutput: consoleResult.ConsoleOutput,
	}
}

// escapeGroovyTripleQuoted escapes every backslash and every single quote so
// the command cannot break out of the Groovy string literal it is
// substituted into, and Groovy's unescaping hands the sh step the command
// text unchanged.
func escapeGroovyTripleQuoted(command string) string {
	escaped := strings.ReplaceAll(command, `\`, `\\`)
	return strings.ReplaceAll(escaped, `'`, `\'`)
}
