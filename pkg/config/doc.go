// Package config loads the sandboxd server configuration.
//
// Configuration is resolved in layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file (sandboxd.yaml)
//  3. SANDBOX_* environment variables
//
// The merged result is validated with go-playground/validator struct tags
// before the server uses it.
package config
