// Command orchestrator wires the Metadata Store Adapter, Jenkins Client,
// Template Registry, and Pipeline Coordinator into the Tool Server and runs
// its stdio loop (§4.5, §6).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/opsorch/pipeline-orchestrator/config"
	"github.com/opsorch/pipeline-orchestrator/coordinator"
	"github.com/opsorch/pipeline-orchestrator/jenkinsclient"
	"github.com/opsorch/pipeline-orchestrator/mcpserver"
	"github.com/opsorch/pipeline-orchestrator/store"
	"github.com/opsorch/pipeline-orchestrator/tplregistry"
)

func main() {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log); err != nil {
		log.WithError(err).Fatal("orchestrator exited")
	}
}

func run(ctx context.Context, log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	metaStore, err := store.New(ctx, store.Options{
		Host:         cfg.RedisHost,
		Port:         cfg.RedisPort,
		TemplatesDir: cfg.TemplatesDir,
		MetadataDir:  cfg.MetadataDir,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	servers := jenkinsclient.NewServerRegistry()
	for _, s := range cfg.Servers {
		servers.Add(s.Name, jenkinsclient.ServerConfig{URL: s.URL, Username: s.Username, Password: s.Password})
	}

	templates := tplregistry.New(metaStore, cfg.TemplatesDir, log)
	watchChanges, err := templates.Watch()
	if err != nil {
		log.WithError(err).Warn("template watcher unavailable, continuing without change notifications")
	} else {
		go logTemplateChanges(ctx, log, watchChanges)
	}

	coord := coordinator.New(metaStore, &coordinator.JenkinsServerConnector{Registry: servers}, templates, coordinator.Options{
		DefaultServerName: cfg.DefaultServerName,
		DefaultUsername:   cfg.DefaultUsername,
		DefaultPassword:   cfg.DefaultPassword,
		Logger:            log,
	})

	server, err := mcpserver.New(metaStore, templates, coord, log)
	if err != nil {
		return err
	}

	log.WithField("transport", "stdio").Info("pipeline orchestrator tool server starting")
	return server.Run(ctx, os.Stdin, os.Stdout)
}

func logTemplateChanges(ctx context.Context, log *logrus.Logger, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-changes:
			if !ok {
				return
			}
			log.WithField("template", name).Debug("template file changed on disk")
		}
	}
}
