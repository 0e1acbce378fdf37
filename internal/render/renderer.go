package render

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"loom/internal/codemodel"
	"loom/internal/logging"
	"loom/internal/services"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Options selects which artifact groups the renderer emits. Disabled
// groups are skipped entirely but still recorded in the manifest.
type Options struct {
	Schema bool
	API    bool
	UI     bool
}

// Manifest describes one rendering: which groups ran, every file written
// (relative to the project root), and the model the files were derived
// from. It is serialized to manifest.yaml as the last write of a render.
type Manifest struct {
	ProjectName string              `yaml:"project_name"`
	Groups      map[string]bool     `yaml:"groups"`
	Files       []string            `yaml:"files"`
	Model       codemodel.CodeModel `yaml:"model"`
}

// Renderer turns a validated CodeModel into a project tree on disk.
type Renderer struct {
	opts      Options
	templates *template.Template
	logger    *slog.Logger
}

// New parses the embedded templates and returns a ready Renderer.
func New(opts Options, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	tmpl, err := template.New("render").Funcs(templateFuncs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{
		opts:      opts,
		templates: tmpl,
		logger:    logging.NewComponentLogger(logger, "render"),
	}, nil
}

type entityData struct {
	codemodel.EntitySpec
	Display string
	Route   string
	Table   string

	// InsertFields are the fields supplied by clients on update:
	// everything except the implicit identity and creation-timestamp
	// columns and database-defaulted timestamps.
	InsertFields []codemodel.FieldSpec
	// CreateFields are the fields a create request supplies; optional
	// fields fall back to their schema defaults.
	CreateFields []codemodel.FieldSpec
	// RequiredText are the text fields a create request must supply.
	RequiredText []codemodel.FieldSpec
	// TitleField is the primary user-visible text field.
	TitleField string
	// ToggleField is the boolean flipped by the toggle operation, if any.
	ToggleField string
}

// HasOp reports whether the entity supports the named operation. It exists
// so templates can pass plain strings.
func (e entityData) HasOp(name string) bool {
	return e.Has(codemodel.Operation(name))
}

func newEntityData(entity codemodel.EntitySpec) entityData {
	data := entityData{
		EntitySpec: entity,
		Display:    entity.DisplayName(),
		Route:      entity.Plural(),
		Table:      entity.Plural(),
	}
	for _, field := range entity.Fields {
		if field.Name == "id" || field.Name == "created_at" {
			continue
		}
		if field.Type == codemodel.FieldDatetime && field.Default != "" {
			continue
		}
		data.InsertFields = append(data.InsertFields, field)
		if field.Required {
			data.CreateFields = append(data.CreateFields, field)
		}
		if field.Type == codemodel.FieldText && field.Required {
			data.RequiredText = append(data.RequiredText, field)
			if data.TitleField == "" {
				data.TitleField = field.Name
			}
		}
		if field.Type == codemodel.FieldBoolean && data.ToggleField == "" {
			data.ToggleField = field.Name
		}
	}
	if data.TitleField == "" {
		data.TitleField = "id"
	}
	return data
}

type renderData struct {
	Model    codemodel.CodeModel
	Entities []entityData
}

// Render writes the project tree for model under outputRoot. Output is
// deterministic for a given model and options: rendering twice into the
// same directory produces byte-identical files. The manifest is written
// last so a manifest on disk implies a complete render.
func (r *Renderer) Render(model codemodel.CodeModel, outputRoot string) (Manifest, error) {
	if err := model.Validate(); err != nil {
		return Manifest{}, err
	}

	data := renderData{Model: model}
	for _, entity := range model.Entities {
		data.Entities = append(data.Entities, newEntityData(entity))
	}

	manifest := Manifest{
		ProjectName: model.ProjectName,
		Groups: map[string]bool{
			"schema": r.opts.Schema,
			"api":    r.opts.API,
			"ui":     r.opts.UI,
		},
		Model: model,
	}

	type plannedFile struct {
		relPath  string
		template string
		data     any
	}
	var plan []plannedFile

	if r.opts.Schema {
		plan = append(plan, plannedFile{"backend/schema.sql", "schema.sql.tmpl", data})
	}
	if r.opts.API {
		plan = append(plan,
			plannedFile{"backend/package.json", "backend_package.json.tmpl", data},
			plannedFile{"backend/server.js", "server.js.tmpl", data},
		)
	}
	if r.opts.UI {
		plan = append(plan,
			plannedFile{"frontend/package.json", "frontend_package.json.tmpl", data},
			plannedFile{"frontend/public/index.html", "index.html.tmpl", data},
			plannedFile{"frontend/src/index.js", "index.js.tmpl", data},
			plannedFile{"frontend/src/App.js", "app.js.tmpl", data},
		)
		for _, entity := range data.Entities {
			plan = append(plan,
				plannedFile{
					filepath.Join("frontend/src/components", entity.Display+"List.js"),
					"entity_list.js.tmpl", entity,
				},
				plannedFile{
					filepath.Join("frontend/src/components", entity.Display+"Item.js"),
					"entity_item.js.tmpl", entity,
				},
				plannedFile{
					filepath.Join("frontend/src/components", "Add"+entity.Display+".js"),
					"add_entity.js.tmpl", entity,
				},
			)
		}
	}

	for _, file := range plan {
		if err := r.renderFile(outputRoot, file.relPath, file.template, file.data); err != nil {
			return Manifest{}, err
		}
		manifest.Files = append(manifest.Files, filepath.ToSlash(file.relPath))
	}
	sort.Strings(manifest.Files)

	if err := r.writeManifest(outputRoot, manifest); err != nil {
		return Manifest{}, err
	}

	r.logger.Info("project rendered",
		logging.String("project", model.ProjectName),
		logging.String("output", outputRoot),
		logging.Int("files", len(manifest.Files)))

	return manifest, nil
}

func (r *Renderer) renderFile(outputRoot, relPath, templateName string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render",
			fmt.Sprintf("render %s", relPath), err)
	}

	target := filepath.Join(outputRoot, relPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render",
			fmt.Sprintf("create directory for %s", relPath), err)
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o644); err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render",
			fmt.Sprintf("write %s", relPath), err)
	}
	return nil
}

func (r *Renderer) writeManifest(outputRoot string, manifest Manifest) error {
	encoded, err := yaml.Marshal(manifest)
	if err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render", "encode manifest", err)
	}
	target := filepath.Join(outputRoot, "manifest.yaml")
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render", "create output root", err)
	}
	if err := os.WriteFile(target, encoded, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "generating_code", "render", "write manifest.yaml", err)
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"sqlColumns": sqlColumns,
		"columns": func(fields []codemodel.FieldSpec) string {
			names := make([]string, 0, len(fields))
			for _, field := range fields {
				names = append(names, field.Name)
			}
			return strings.Join(names, ", ")
		},
		"placeholders": func(fields []codemodel.FieldSpec) string {
			marks := make([]string, 0, len(fields))
			for range fields {
				marks = append(marks, "?")
			}
			return strings.Join(marks, ", ")
		},
		"setClause": func(fields []codemodel.FieldSpec) string {
			parts := make([]string, 0, len(fields))
			for _, field := range fields {
				parts = append(parts, field.Name+" = ?")
			}
			return strings.Join(parts, ", ")
		},
		"capitalize": func(s string) string {
			if s == "" {
				return s
			}
			return strings.ToUpper(s[:1]) + s[1:]
		},
		"join": strings.Join,
	}
}

// sqlColumns renders the column definitions for an entity, one per line,
// joined for direct inclusion in CREATE TABLE. The identity and
// creation-timestamp columns are implicit: every table gets them even
// though the model does not list them.
func sqlColumns(entity entityData) string {
	lines := []string{"  id INTEGER PRIMARY KEY AUTOINCREMENT"}
	for _, field := range entity.Fields {
		if field.Name == "id" || field.Name == "created_at" {
			continue
		}
		lines = append(lines, "  "+sqlColumn(field))
	}
	lines = append(lines, "  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP")
	return strings.Join(lines, ",\n")
}

func sqlColumn(field codemodel.FieldSpec) string {
	var def strings.Builder
	def.WriteString(field.Name)
	switch field.Type {
	case codemodel.FieldText:
		def.WriteString(" TEXT")
	case codemodel.FieldBoolean:
		def.WriteString(" INTEGER")
	case codemodel.FieldInteger:
		def.WriteString(" INTEGER")
	case codemodel.FieldDatetime:
		def.WriteString(" TIMESTAMP")
	}
	if field.Required {
		def.WriteString(" NOT NULL")
	}
	switch {
	case field.Default == "":
	case field.Type == codemodel.FieldBoolean:
		if field.Default == "true" {
			def.WriteString(" DEFAULT 1")
		} else {
			def.WriteString(" DEFAULT 0")
		}
	case field.Type == codemodel.FieldText:
		def.WriteString(" DEFAULT '" + field.Default + "'")
	default:
		def.WriteString(" DEFAULT " + field.Default)
	}
	return def.String()
}
