package am

import (
	"os"
	"sort"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/tempo/tempo.toml
	SourceUser        ConfigSource = "user"        // ~/.tempo/tempo.toml
	SourceProject     ConfigSource = "project"     // tempo.toml found upward from cwd
	SourceDotEnv      ConfigSource = "dotenv"      // project .env
	SourceEnvironment ConfigSource = "environment" // TEMPO_* env vars
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // file path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// ConfigIntrospection describes the active configuration
type ConfigIntrospection struct {
	Files    []string      `json:"files"`
	DotEnv   string        `json:"dotenv,omitempty"`
	Settings []SettingInfo `json:"settings"`
}

// Introspect lists every effective setting with the layer it came from.
func (l *Loader) Introspect() *ConfigIntrospection {
	out := &ConfigIntrospection{
		Files:  l.Files(),
		DotEnv: l.dotenv,
	}

	keys := l.v.AllKeys()
	sort.Strings(keys)
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := l.sources[key]; ok {
			info = si
		}
		if name := EnvVarName(key); os.Getenv(name) != "" {
			info = SourceInfo{Source: SourceEnvironment, Path: name}
		}
		out.Settings = append(out.Settings, SettingInfo{
			Key:        key,
			Value:      l.v.Get(key),
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}
	return out
}

// CountBySource returns how many settings each layer supplies.
func (ci *ConfigIntrospection) CountBySource() map[ConfigSource]int {
	counts := make(map[ConfigSource]int)
	for _, s := range ci.Settings {
		counts[s.Source]++
	}
	return counts
}
