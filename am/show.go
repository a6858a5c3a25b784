package am

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/teranos/tempo/errors"
)

// Formats accepted by Render
const (
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

const redacted = "<redacted>"

// Redacted returns a copy with secrets replaced.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Database.DSN != "" {
		out.Database.DSN = redacted
	}
	if out.Alarm.WebhookURL != "" {
		out.Alarm.WebhookURL = redacted
	}
	out.Commands = append([]CommandConfig(nil), c.Commands...)
	return &out
}

// Render serializes cfg in the given format.
func Render(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatTOML:
		return toml.Marshal(cfg)
	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return nil, errors.Wrap(err, "encode config as json")
		}
		return buf.Bytes(), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, errors.Wrap(err, "encode config as yaml")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "encode config as yaml")
		}
		return buf.Bytes(), nil
	}
	return nil, errors.NewInvalidRequestError("unknown format %q (supported: toml, json, yaml)", format)
}
