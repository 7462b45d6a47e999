// Package config defines the meshnode client configuration.
//
//   - spec.go: ClientConfig struct definition
//   - default.go: default values and path expansion
//   - verify.go: validation and conversion into domain values
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// MESHNODE_* environment variables and command-line flags.
package config
