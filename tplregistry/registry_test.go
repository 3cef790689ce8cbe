package tplregistry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsorch/pipeline-orchestrator/schema"
)

type fakeStore struct {
	registered map[string]int
	updated    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{registered: map[string]int{}, updated: map[string]int{}}
}

func (f *fakeStore) RegisterTemplate(ctx context.Context, name, description string) (schema.Template, error) {
	f.registered[name]++
	return schema.Template{Name: name, Description: description, Version: f.registered[name]}, nil
}

func (f *fakeStore) UpdateTemplate(ctx context.Context, name, description string) (schema.Template, error) {
	f.updated[name]++
	return schema.Template{Name: name, Description: description, Version: f.updated[name] + 1}, nil
}

func (f *fakeStore) IncrementTemplateVersion(ctx context.Context, name string) (schema.Template, error) {
	f.updated[name]++
	return schema.Template{Name: name, Version: f.updated[name] + 1}, nil
}

func TestWriteAndReadJenkinsfile(t *testing.T) {
	dir := t.TempDir()
	r := New(newFakeStore(), dir, nil)

	if err := r.WriteJenkinsfile("alpha", "pipeline {}\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	text, err := r.ReadJenkinsfile("alpha")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "pipeline {}\n" {
		t.Fatalf("unexpected content: %q", text)
	}

	if _, err := os.Stat(filepath.Join(dir, "alpha.Jenkinsfile")); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
}

func TestReadJenkinsfileMissing(t *testing.T) {
	r := New(newFakeStore(), t.TempDir(), nil)
	if _, err := r.ReadJenkinsfile("nope"); err == nil {
		t.Fatalf("expected error for missing jenkinsfile")
	}
}

func TestCreateTemplateWritesAndRegisters(t *testing.T) {
	store := newFakeStore()
	r := New(store, t.TempDir(), nil)

	tmpl, err := r.CreateTemplate(context.Background(), "alpha", "pipeline {}\n", "desc")
	if err != nil {
		t.Fatalf("create_template: %v", err)
	}
	if tmpl.Version != 1 {
		t.Fatalf("expected version 1, got %d", tmpl.Version)
	}
	if store.registered["alpha"] != 1 {
		t.Fatalf("expected RegisterTemplate to be called once")
	}
}

func TestEditTemplatePreviewDoesNotWrite(t *testing.T) {
	store := newFakeStore()
	dir := t.TempDir()
	r := New(store, dir, nil)
	if err := r.WriteJenkinsfile("alpha", "pipeline {}\n"); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	result, err := r.EditTemplate(context.Background(), "alpha", "pipeline { stages {} }\n", true, "")
	if err != nil {
		t.Fatalf("edit_template preview: %v", err)
	}
	if result.Written {
		t.Fatalf("expected preview to not write")
	}
	if result.Diff == "" {
		t.Fatalf("expected non-empty diff")
	}

	text, _ := r.ReadJenkinsfile("alpha")
	if text != "pipeline {}\n" {
		t.Fatalf("expected file unchanged after preview, got %q", text)
	}
}

func TestEditTemplateWritesAndBumpsVersion(t *testing.T) {
	store := newFakeStore()
	r := New(store, t.TempDir(), nil)
	if err := r.WriteJenkinsfile("alpha", "pipeline {}\n"); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	result, err := r.EditTemplate(context.Background(), "alpha", "pipeline { stages {} }\n", false, "")
	if err != nil {
		t.Fatalf("edit_template: %v", err)
	}
	if !result.Written {
		t.Fatalf("expected write to happen")
	}
	if store.updated["alpha"] != 1 {
		t.Fatalf("expected IncrementTemplateVersion to be called")
	}

	text, _ := r.ReadJenkinsfile("alpha")
	if text != "pipeline { stages {} }\n" {
		t.Fatalf("unexpected file contents after edit: %q", text)
	}
}

func TestGenerateJenkinsfileDerivesStagesFromKeywords(t *testing.T) {
	text := GenerateJenkinsfile("demo", "build and test then deploy", "", []string{"FOO=bar"})
	for _, want := range []string{"Build", "Test", "Deploy", "FOO"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected generated Jenkinsfile to contain %q:\n%s", want, text)
		}
	}
}

func TestGenerateJenkinsfileFallsBackToRunStage(t *testing.T) {
	text := GenerateJenkinsfile("demo", "does nothing special", "", nil)
	if !strings.Contains(text, "Run") {
		t.Fatalf("expected fallback Run stage:\n%s", text)
	}
}
