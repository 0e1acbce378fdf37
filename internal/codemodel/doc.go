// Package codemodel defines the language-independent application model and
// the extraction that derives it from user stories. The model is the single
// contract between story extraction and code generation: entities, their
// fields, and the operations they expose.
package codemodel
