package tplregistry

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// EditTemplate, when preview is true, returns a unified diff between the
// on-disk text and newText without writing. Otherwise it writes newText,
// bumps the template's version (via UpdateTemplate if a description is
// supplied, IncrementTemplateVersion otherwise), and returns both the diff
// and the new version (§4.3 edit_template).
func (r *Registry) EditTemplate(ctx context.Context, name, newText string, preview bool, newDescription string) (EditResult, error) {
	current, err := r.ReadJenkinsfile(name)
	if err != nil {
		// A template being edited for the first time has no prior text to
		// diff against; treat it as empty rather than failing the preview.
		current = ""
	}

	diff := unifiedDiff(name, current, newText)

	if preview {
		return EditResult{Diff: diff, Written: false}, nil
	}

	if err := r.WriteJenkinsfile(name, newText); err != nil {
		return EditResult{}, err
	}

	var version int
	if newDescription != "" {
		tmpl, err := r.store.UpdateTemplate(ctx, name, newDescription)
		if err != nil {
			return EditResult{}, err
		}
		version = tmpl.Version
	} else {
		tmpl, err := r.store.IncrementTemplateVersion(ctx, name)
		if err != nil {
			return EditResult{}, err
		}
		version = tmpl.Version
	}

	if r.watcher != nil {
		r.watcher.notify(name)
	}

	return EditResult{Diff: diff, Version: version, Written: true}, nil
}

func unifiedDiff(name, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name + ".Jenkinsfile (current)",
		ToFile:   name + ".Jenkinsfile (proposed)",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}
	return strings.TrimRight(text, "\n")
}
