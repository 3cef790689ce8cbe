package store

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
	"github.com/opsorch/pipeline-orchestrator/schema"
)

const descriptionMarker = "// Description:"

func (a *Adapter) jenkinsfilePath(name string) string {
	return filepath.Join(a.templatesDir, name+".Jenkinsfile")
}

// jenkinsfileExists reports whether <templates_dir>/<name>.Jenkinsfile exists.
func (a *Adapter) jenkinsfileExists(name string) bool {
	_, err := os.Stat(a.jenkinsfilePath(name))
	return err == nil
}

// descriptionFromFile extracts the text after the marker on the first line
// that begins with "// Description:", if any.
func descriptionFromFile(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, descriptionMarker) {
			return strings.TrimSpace(strings.TrimPrefix(line, descriptionMarker)), true
		}
	}
	return "", false
}

// RegisterTemplate creates or version-bumps the Template record for name
// (§4.1 register_template). The Jenkinsfile must already exist on disk.
func (a *Adapter) RegisterTemplate(ctx context.Context, name string, description string) (schema.Template, error) {
	if !a.jenkinsfileExists(name) {
		return schema.Template{}, pipeerr.New(pipeerr.CodeTemplateFileMissing, "register_template",
			fmt.Sprintf("%s.Jenkinsfile not found", name))
	}

	if description == "" {
		if fromFile, ok := descriptionFromFile(a.jenkinsfilePath(name)); ok {
			description = fromFile
		}
	}

	now := a.now()
	key := templateKey(name)

	existing, err := a.rdb.HGetAll(ctx, key).Result()
	if err != nil && err != redis.Nil {
		a.log.WithError(err).Warn("register_template: read existing record failed")
	}

	tmpl := schema.Template{
		Name:         name,
		Description:  description,
		TemplatePath: a.jenkinsfilePath(name),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}

	if len(existing) > 0 {
		tmpl.CreatedAt = parseTimeField(existing["created_at"], now)
		tmpl.Version = parseIntField(existing["version"], 0) + 1
		if description == "" {
			tmpl.Description = existing["description"]
		}
	}

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, key, templateFields(tmpl))
	pipe.ZAdd(ctx, templatesIndexKey(), redis.Z{Score: score(now), Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.WithError(err).Warn("register_template: pipeline write failed")
	}

	return tmpl, nil
}

// GetTemplate returns the registered Template record for name, or
// CodeTemplateNotFound if it has never been registered (§4.4 deploy step 1:
// "verify the template is registered").
func (a *Adapter) GetTemplate(ctx context.Context, name string) (schema.Template, error) {
	fields, err := a.rdb.HGetAll(ctx, templateKey(name)).Result()
	if err != nil || len(fields) == 0 {
		return schema.Template{}, pipeerr.New(pipeerr.CodeTemplateNotFound, "get_template", fmt.Sprintf("template %s not registered", name))
	}
	return schema.Template{
		Name:         name,
		Description:  fields["description"],
		TemplatePath: a.jenkinsfilePath(name),
		CreatedAt:    parseTimeField(fields["created_at"], a.now()),
		UpdatedAt:    parseTimeField(fields["updated_at"], a.now()),
		Version:      parseIntField(fields["version"], 1),
	}, nil
}

// ListTemplates reconciles the on-disk templates directory against the
// store catalog (§4.1 list_templates): unknown files are registered,
// catalog entries whose file is gone are removed. The filesystem wins.
func (a *Adapter) ListTemplates(ctx context.Context) ([]schema.TemplateSummary, error) {
	if err := os.MkdirAll(a.templatesDir, 0o755); err != nil {
		return nil, pipeerr.Wrap(pipeerr.CodeStoreError, "list_templates.mkdir", err)
	}

	entries, err := os.ReadDir(a.templatesDir)
	if err != nil {
		return nil, pipeerr.Wrap(pipeerr.CodeStoreError, "list_templates.readdir", err)
	}

	onDisk := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".Jenkinsfile") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".Jenkinsfile")
		onDisk[name] = true
	}

	catalogued, err := a.rdb.ZRange(ctx, templatesIndexKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		a.log.WithError(err).Warn("list_templates: read catalog failed")
	}
	known := make(map[string]bool, len(catalogued))
	for _, name := range catalogued {
		known[name] = true
	}

	for name := range onDisk {
		if !known[name] {
			if _, err := a.RegisterTemplate(ctx, name, ""); err != nil {
				a.log.WithError(err).WithField("template", name).Warn("list_templates: auto-register failed")
			}
		}
	}
	for name := range known {
		if !onDisk[name] {
			if err := a.rdb.ZRem(ctx, templatesIndexKey(), name).Err(); err != nil {
				a.log.WithError(err).WithField("template", name).Warn("list_templates: evict failed")
			}
			if err := a.rdb.Del(ctx, templateKey(name)).Err(); err != nil {
				a.log.WithError(err).WithField("template", name).Warn("list_templates: delete record failed")
			}
		}
	}

	names, err := a.rdb.ZRange(ctx, templatesIndexKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, pipeerr.Wrap(pipeerr.CodeStoreError, "list_templates.zrange", err)
	}

	summaries := make([]schema.TemplateSummary, 0, len(names))
	for _, name := range names {
		fields, err := a.rdb.HGetAll(ctx, templateKey(name)).Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		summaries = append(summaries, schema.TemplateSummary{
			Name:        name,
			Description: fields["description"],
			Version:     parseIntField(fields["version"], 1),
			UpdatedAt:   parseTimeField(fields["updated_at"], a.now()),
		})
	}
	return summaries, nil
}

// UpdateTemplate bumps the version, replaces the description, and
// best-effort rewrites the // Description: line in the Jenkinsfile
// (§4.1 update_template).
func (a *Adapter) UpdateTemplate(ctx context.Context, name, description string) (schema.Template, error) {
	tmpl, err := a.mutateVersion(ctx, name, func(t *schema.Template) {
		t.Description = description
	})
	if err != nil {
		return schema.Template{}, err
	}
	if err := rewriteDescriptionLine(a.jenkinsfilePath(name), description); err != nil {
		a.log.WithError(err).WithField("template", name).Warn("update_template: jenkinsfile rewrite failed")
	}
	return tmpl, nil
}

// IncrementTemplateVersion bumps the version without touching the
// description (§4.1 increment_template_version).
func (a *Adapter) IncrementTemplateVersion(ctx context.Context, name string) (schema.Template, error) {
	return a.mutateVersion(ctx, name, func(t *schema.Template) {})
}

func (a *Adapter) mutateVersion(ctx context.Context, name string, mutate func(*schema.Template)) (schema.Template, error) {
	key := templateKey(name)
	fields, err := a.rdb.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return schema.Template{}, pipeerr.New(pipeerr.CodeTemplateNotFound, "update_template", fmt.Sprintf("template %s not registered", name))
	}

	now := a.now()
	tmpl := schema.Template{
		Name:         name,
		Description:  fields["description"],
		TemplatePath: a.jenkinsfilePath(name),
		CreatedAt:    parseTimeField(fields["created_at"], now),
		UpdatedAt:    now,
		Version:      parseIntField(fields["version"], 0) + 1,
	}
	mutate(&tmpl)

	pipe := a.rdb.TxPipeline()
	pipe.HSet(ctx, key, templateFields(tmpl))
	pipe.ZAdd(ctx, templatesIndexKey(), redis.Z{Score: score(now), Member: name})
	if _, err := pipe.Exec(ctx); err != nil {
		a.log.WithError(err).WithField("template", name).Warn("mutate_version: pipeline write failed")
	}
	return tmpl, nil
}

func templateFields(t schema.Template) map[string]any {
	return map[string]any{
		"name":          t.Name,
		"description":   t.Description,
		"template_path": t.TemplatePath,
		"created_at":    t.CreatedAt.Format(timeLayout),
		"updated_at":    t.UpdatedAt.Format(timeLayout),
		"version":       strconv.Itoa(t.Version),
	}
}

func rewriteDescriptionLine(path, description string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	newLine := descriptionMarker + " " + description

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), descriptionMarker) {
			lines[i] = newLine
			return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644)
		}
	}

	// No existing marker: insert after the leading comment block, or at top.
	insertAt := 0
	for insertAt < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[insertAt]), "//") {
		insertAt++
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:insertAt]...)
	out = append(out, newLine)
	out = append(out, lines[insertAt:]...)
	return os.WriteFile(path, []byte(strings.Join(out, "\n")), 0o644)
}
