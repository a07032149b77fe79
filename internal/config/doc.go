// Package config holds the pagewalk configuration: built-in defaults, the
// optional .pagewalk YAML file with per-site settings, and validation.
package config
