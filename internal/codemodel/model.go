package codemodel

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/services"
)

// FieldType enumerates the storage-independent field types a model may use.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldBoolean  FieldType = "boolean"
	FieldInteger  FieldType = "integer"
	FieldDatetime FieldType = "datetime"
)

// Operation enumerates the behaviors an entity can expose.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpToggle Operation = "toggle"
	OpDelete Operation = "delete"
)

// operationOrder is the canonical emission order for operations.
var operationOrder = []Operation{OpCreate, OpRead, OpUpdate, OpToggle, OpDelete}

// FieldSpec describes one column/property of an entity.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
	Default  string    `json:"default,omitempty" yaml:"default,omitempty"`
}

// EntitySpec describes a single domain entity and its operations.
type EntitySpec struct {
	Name       string      `json:"name" yaml:"name"`
	Fields     []FieldSpec `json:"fields" yaml:"fields"`
	Operations []Operation `json:"operations" yaml:"operations"`
}

// Has reports whether the entity supports the given operation.
func (e EntitySpec) Has(op Operation) bool {
	for _, candidate := range e.Operations {
		if candidate == op {
			return true
		}
	}
	return false
}

// DisplayName returns the entity name in title case for UI labels.
func (e EntitySpec) DisplayName() string {
	return cases.Title(language.English).String(e.Name)
}

// Plural returns a naive English plural of the entity name, used for table
// names and API routes.
func (e EntitySpec) Plural() string {
	name := e.Name
	switch {
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "x"),
		strings.HasSuffix(name, "z"), strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "sh"):
		return name + "es"
	case len(name) > 1 && strings.HasSuffix(name, "y") && !isVowel(name[len(name)-2]):
		return name[:len(name)-2] + "ies"
	default:
		return name + "s"
	}
}

func isVowel(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// CodeModel is the language-independent description of the application to
// generate. It is the contract between extraction and rendering.
type CodeModel struct {
	ProjectName string       `json:"project_name" yaml:"project_name"`
	Entities    []EntitySpec `json:"entities" yaml:"entities"`
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks model invariants: at least one entity, lowercase
// identifier names, at least one field and operation per entity, and no
// duplicate field names within an entity.
func (m CodeModel) Validate() error {
	if strings.TrimSpace(m.ProjectName) == "" {
		return services.Wrap(services.ErrValidation, "building_model", "validate", "project name is empty", nil)
	}
	if len(m.Entities) == 0 {
		return services.Wrap(services.ErrValidation, "building_model", "validate", "model has no entities", nil)
	}
	for _, entity := range m.Entities {
		if !identPattern.MatchString(entity.Name) {
			return services.Wrap(services.ErrValidation, "building_model", "validate",
				fmt.Sprintf("entity name %q is not a lowercase identifier", entity.Name), nil)
		}
		if len(entity.Fields) == 0 {
			return services.Wrap(services.ErrValidation, "building_model", "validate",
				fmt.Sprintf("entity %q has no fields", entity.Name), nil)
		}
		if len(entity.Operations) == 0 {
			return services.Wrap(services.ErrValidation, "building_model", "validate",
				fmt.Sprintf("entity %q has no operations", entity.Name), nil)
		}
		seen := make(map[string]struct{}, len(entity.Fields))
		for _, field := range entity.Fields {
			if !identPattern.MatchString(field.Name) {
				return services.Wrap(services.ErrValidation, "building_model", "validate",
					fmt.Sprintf("field name %q on entity %q is not a lowercase identifier", field.Name, entity.Name), nil)
			}
			if _, dup := seen[field.Name]; dup {
				return services.Wrap(services.ErrValidation, "building_model", "validate",
					fmt.Sprintf("entity %q has duplicate field %q", entity.Name, field.Name), nil)
			}
			seen[field.Name] = struct{}{}
			switch field.Type {
			case FieldText, FieldBoolean, FieldInteger, FieldDatetime:
			default:
				return services.Wrap(services.ErrValidation, "building_model", "validate",
					fmt.Sprintf("field %q on entity %q has unknown type %q", field.Name, entity.Name, field.Type), nil)
			}
		}
		for _, op := range entity.Operations {
			if !knownOperation(op) {
				return services.Wrap(services.ErrValidation, "building_model", "validate",
					fmt.Sprintf("entity %q has unknown operation %q", entity.Name, op), nil)
			}
		}
	}
	return nil
}

func knownOperation(op Operation) bool {
	for _, candidate := range operationOrder {
		if candidate == op {
			return true
		}
	}
	return false
}
