// Package file provides file-based configuration adapters.
//
// Adapters:
//   - Loader: builds domain.AppSettings from defaults, a .env file, an
//     optional TOML or YAML config file and environment overrides
//   - PromptStore: answer prompt templates with on-disk overrides
package file
