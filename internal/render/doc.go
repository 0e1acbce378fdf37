// Package render turns a CodeModel into a generated project tree: SQLite
// schema, Express-style API server, and React-style UI, all produced from
// embedded templates. Rendering is deterministic and writes manifest.yaml
// last, so a manifest on disk implies a complete project.
package render
