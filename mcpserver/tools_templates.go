package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/opsorch/pipeline-orchestrator/tplregistry"
)

var validate = validator.New()

type helloWorldHandler struct{}

func (helloWorldHandler) Name() string        { return "hello_world" }
func (helloWorldHandler) Description() string { return "Sanity-check tool confirming the server is reachable." }
func (helloWorldHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{})
}
func (helloWorldHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	return map[string]any{"success": true, "message": "hello from the pipeline orchestrator"}, nil
}

type createTemplateArgs struct {
	TemplateName string   `json:"template_name" validate:"required"`
	Description  string   `json:"description" validate:"required"`
	Agent        string   `json:"agent"`
	Environment  []string `json:"environment"`
}

type createTemplateHandler struct {
	templates Templates
}

func (createTemplateHandler) Name() string { return "create_template" }
func (createTemplateHandler) Description() string {
	return "Generate a Jenkinsfile scaffold from a description and register it as a template."
}
func (createTemplateHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"template_name": prop("string", "Unique name identifying the template."),
		"description":   prop("string", "Free-text description used both as metadata and as a stage-scaffolding hint."),
		"agent":         propDefault("string", "Jenkins agent label for the generated pipeline's top-level agent block.", "any"),
		"environment":   arrayOfStrings("Environment variable assignments as KEY=VALUE strings."),
	}, "template_name", "description")
}

func (h createTemplateHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[createTemplateArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}

	text := tplregistry.GenerateJenkinsfile(args.TemplateName, args.Description, args.Agent, args.Environment)
	tmpl, err := h.templates.CreateTemplate(ctx, args.TemplateName, text, args.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":       true,
		"status":        "created",
		"template_name": tmpl.Name,
		"version":       tmpl.Version,
		"jenkinsfile":   text,
	}, nil
}

type editTemplateArgs struct {
	TemplateName string `json:"template_name" validate:"required"`
	Content      string `json:"content" validate:"required"`
	DiffPreview  bool   `json:"diff_preview"`
	Description  string `json:"description"`
}

type editTemplateHandler struct {
	templates Templates
}

func (editTemplateHandler) Name() string { return "edit_template" }
func (editTemplateHandler) Description() string {
	return "Replace a template's Jenkinsfile content, optionally previewing the diff without writing."
}
func (editTemplateHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"template_name": prop("string", "Name of the template to edit."),
		"content":       prop("string", "Full replacement Jenkinsfile text."),
		"diff_preview":  propDefault("boolean", "When true, return the unified diff without writing.", false),
		"description":   prop("string", "Optional updated description; when set, bumps the version via update_template."),
	}, "template_name", "content")
}

func (h editTemplateHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	args, err := decodeArgs[editTemplateArgs](arguments)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(args); err != nil {
		return nil, err
	}

	result, err := h.templates.EditTemplate(ctx, args.TemplateName, args.Content, args.DiffPreview, args.Description)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success": true,
		"status":  editStatus(result.Written),
		"diff":    result.Diff,
		"version": result.Version,
	}, nil
}

func editStatus(written bool) string {
	if written {
		return "written"
	}
	return "preview"
}

type listTemplatesHandler struct {
	store Store
}

func (listTemplatesHandler) Name() string        { return "list_templates" }
func (listTemplatesHandler) Description() string { return "List registered templates, reconciled against the templates directory." }
func (listTemplatesHandler) InputSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{})
}

func (h listTemplatesHandler) Handle(ctx context.Context, arguments json.RawMessage) (any, error) {
	summaries, err := h.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "templates": summaries}, nil
}
