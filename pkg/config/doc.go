// Package config loads the tabwarden daemon configuration from YAML.
//
// Load starts from Default and overlays the file, so a config only needs
// the keys it changes. Durations use Go syntax ("30s", "2m"). The serve
// command applies its flags on top of the loaded file.
package config
