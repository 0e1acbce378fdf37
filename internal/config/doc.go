// Package config loads, validates, and normalizes loom's TOML
// configuration. Defaults come from Default, file values override them, and
// a small set of environment variables override the file. All path values
// are tilde-expanded and made absolute before other packages see them.
package config
