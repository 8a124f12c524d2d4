// Package config loads and validates the watcher's YAML configuration.
//
// Config files support ${VAR} environment-variable substitution so
// secrets (the stream API key, database passwords) stay out of the file.
package config
