// Package tplregistry is the Template Registry (§4.3): a thin composition
// over the Metadata Store Adapter and the templates filesystem. It owns no
// keyspace of its own — every version/description mutation is delegated to
// the store.Adapter, which remains the sole owner of the miladyos: prefix.
package tplregistry

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

// Store is the subset of store.Adapter the Registry composes over.
type Store interface {
	RegisterTemplate(ctx context.Context, name, description string) (schema.Template, error)
	UpdateTemplate(ctx context.Context, name, description string) (schema.Template, error)
	IncrementTemplateVersion(ctx context.Context, name string) (schema.Template, error)
}

// Registry composes Store with direct filesystem access to the templates
// directory (§4.3).
type Registry struct {
	store        Store
	templatesDir string
	log          *logrus.Entry
	watcher      *Watcher
}

// New constructs a Registry rooted at templatesDir.
func New(store Store, templatesDir string, log *logrus.Logger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		store:        store,
		templatesDir: templatesDir,
		log:          log.WithField("component", "tplregistry"),
	}
}

func (r *Registry) path(name string) string {
	return filepath.Join(r.templatesDir, name+".Jenkinsfile")
}

// ReadJenkinsfile reads <templates_dir>/<name>.Jenkinsfile (§4.3).
func (r *Registry) ReadJenkinsfile(name string) (string, error) {
	data, err := os.ReadFile(r.path(name))
	if err != nil {
		return "", pipeerr.New(pipeerr.CodeTemplateFileMissing, "read_jenkinsfile", name+".Jenkinsfile not found")
	}
	return string(data), nil
}

// WriteJenkinsfile creates the templates directory if needed and writes
// atomically via write-to-temp-then-rename (§4.3).
func (r *Registry) WriteJenkinsfile(name, text string) error {
	if err := os.MkdirAll(r.templatesDir, 0o755); err != nil {
		return pipeerr.Wrap(pipeerr.CodeStoreError, "write_jenkinsfile.mkdir", err)
	}

	target := r.path(name)
	tmp, err := os.CreateTemp(r.templatesDir, "."+name+".Jenkinsfile.*.tmp")
	if err != nil {
		return pipeerr.Wrap(pipeerr.CodeStoreError, "write_jenkinsfile.tempfile", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return pipeerr.Wrap(pipeerr.CodeStoreError, "write_jenkinsfile.write", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return pipeerr.Wrap(pipeerr.CodeStoreError, "write_jenkinsfile.close", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return pipeerr.Wrap(pipeerr.CodeStoreError, "write_jenkinsfile.rename", err)
	}
	return nil
}

// CreateTemplate writes the Jenkinsfile and registers it with the store in
// one step — the composition create_template uses (§6 tool catalog).
func (r *Registry) CreateTemplate(ctx context.Context, name, text, description string) (schema.Template, error) {
	if err := r.WriteJenkinsfile(name, text); err != nil {
		return schema.Template{}, err
	}
	tmpl, err := r.store.RegisterTemplate(ctx, name, description)
	if err != nil {
		return schema.Template{}, err
	}
	if r.watcher != nil {
		r.watcher.notify(name)
	}
	return tmpl, nil
}

// EditResult is the outcome of EditTemplate (§4.3 edit_template).
type EditResult struct {
	Diff    string
	Version int
	Written bool
}
