package render_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loom/internal/codemodel"
	"loom/internal/render"
	"loom/internal/services"
)

func todoModel() codemodel.CodeModel {
	return codemodel.CodeModel{
		ProjectName: "meeting-app",
		Entities: []codemodel.EntitySpec{{
			Name: "todo",
			Fields: []codemodel.FieldSpec{
				{Name: "title", Type: codemodel.FieldText, Required: true},
				{Name: "completed", Type: codemodel.FieldBoolean, Default: "false"},
			},
			Operations: []codemodel.Operation{
				codemodel.OpCreate, codemodel.OpRead, codemodel.OpToggle, codemodel.OpDelete,
			},
		}},
	}
}

func allGroups() render.Options {
	return render.Options{Schema: true, API: true, UI: true}
}

func TestRenderWritesExpectedTree(t *testing.T) {
	renderer, err := render.New(allGroups(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := t.TempDir()
	manifest, err := renderer.Render(todoModel(), root)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	expected := []string{
		"backend/schema.sql",
		"backend/package.json",
		"backend/server.js",
		"frontend/package.json",
		"frontend/public/index.html",
		"frontend/src/index.js",
		"frontend/src/App.js",
		"frontend/src/components/TodoList.js",
		"frontend/src/components/TodoItem.js",
		"frontend/src/components/AddTodo.js",
		"manifest.yaml",
	}
	for _, rel := range expected {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}

	if len(manifest.Files) != len(expected)-1 {
		t.Errorf("manifest files = %d, want %d", len(manifest.Files), len(expected)-1)
	}
	if manifest.ProjectName != "meeting-app" {
		t.Errorf("manifest project = %q", manifest.ProjectName)
	}
}

func TestRenderSchemaColumns(t *testing.T) {
	renderer, err := render.New(render.Options{Schema: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := t.TempDir()
	if _, err := renderer.Render(todoModel(), root); err != nil {
		t.Fatalf("Render: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "backend", "schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	schema := string(data)

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS todos",
		"id INTEGER PRIMARY KEY AUTOINCREMENT",
		"title TEXT NOT NULL",
		"completed INTEGER DEFAULT 0",
		"created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q:\n%s", want, schema)
		}
	}
}

func TestRenderServerGatesOperations(t *testing.T) {
	model := todoModel()
	model.Entities[0].Operations = []codemodel.Operation{codemodel.OpRead}

	renderer, err := render.New(render.Options{API: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := t.TempDir()
	if _, err := renderer.Render(model, root); err != nil {
		t.Fatalf("Render: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "backend", "server.js"))
	if err != nil {
		t.Fatalf("read server: %v", err)
	}
	server := string(data)

	if !strings.Contains(server, "app.get('/api/todos'") {
		t.Errorf("server missing read route:\n%s", server)
	}
	for _, forbidden := range []string{"app.post(", "app.put(", "app.delete("} {
		if strings.Contains(server, forbidden) {
			t.Errorf("server should not contain %q when only read is enabled", forbidden)
		}
	}
}

func TestRenderRequiredFieldValidation(t *testing.T) {
	renderer, err := render.New(render.Options{API: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := t.TempDir()
	if _, err := renderer.Render(todoModel(), root); err != nil {
		t.Fatalf("Render: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "backend", "server.js"))
	if err != nil {
		t.Fatalf("read server: %v", err)
	}
	server := string(data)
	if got := strings.Count(server, "Title is required"); got != 2 {
		t.Errorf("required-field checks = %d, want one on create and one on update:\n%s", got, server)
	}
	_, put, found := strings.Cut(server, "app.put(")
	if !found {
		t.Fatalf("server missing update route:\n%s", server)
	}
	if !strings.Contains(put, "Title is required") {
		t.Errorf("update route missing required-field validation:\n%s", put)
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	renderer, err := render.New(allGroups(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	root := t.TempDir()
	manifest, err := renderer.Render(todoModel(), root)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}

	before := map[string][]byte{}
	for _, rel := range manifest.Files {
		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		before[rel] = data
	}

	if _, err := renderer.Render(todoModel(), root); err != nil {
		t.Fatalf("second render: %v", err)
	}
	for rel, want := range before {
		got, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(got) != string(want) {
			t.Errorf("%s changed between identical renders", rel)
		}
	}
}

func TestRenderInvalidModel(t *testing.T) {
	renderer, err := render.New(allGroups(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = renderer.Render(codemodel.CodeModel{ProjectName: "x"}, t.TempDir())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestRenderUnwritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission checks are bypassed")
	}

	root := t.TempDir()
	if err := os.Chmod(root, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(root, 0o755) })

	renderer, err := render.New(allGroups(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = renderer.Render(todoModel(), root)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("err = %v, want io failure", err)
	}
}
