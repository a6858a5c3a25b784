package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teranos/tempo/errors"
)

// Configuration file names and locations
const (
	EnvPrefix        = "TEMPO"
	ConfigFileName   = "tempo.toml"
	DotEnvFileName   = ".env"
	SystemConfigPath = "/etc/tempo/tempo.toml"
	UserConfigDir    = ".tempo"
)

// Paths lists where configuration is searched. Empty fields use the
// standard locations.
type Paths struct {
	System  string // system-wide file
	UserDir string // directory holding the user file
	WorkDir string // start of the upward project search
}

// DefaultPaths returns the standard search locations.
func DefaultPaths() Paths {
	home, _ := os.UserHomeDir()
	wd, _ := os.Getwd()
	return Paths{
		System:  SystemConfigPath,
		UserDir: filepath.Join(home, UserConfigDir),
		WorkDir: wd,
	}
}

// Loader merges every configuration layer into one viper instance:
// defaults < system < user < project < .env < TEMPO_* environment.
type Loader struct {
	v       *viper.Viper
	files   []string
	dotenv  string
	sources map[string]SourceInfo
}

// NewLoader reads every layer under p.
func NewLoader(p Paths) (*Loader, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindSensitiveEnvVars(v)
	SetDefaults(v)

	l := &Loader{v: v, sources: make(map[string]SourceInfo)}
	if err := l.mergeConfigFiles(p); err != nil {
		return nil, err
	}
	if err := l.mergeDotEnv(p); err != nil {
		return nil, err
	}
	return l, nil
}

// Viper returns the merged viper instance.
func (l *Loader) Viper() *viper.Viper { return l.v }

// Files returns the configuration files that were merged, lowest
// precedence first.
func (l *Loader) Files() []string { return append([]string(nil), l.files...) }

// Config decodes the merged layers.
func (l *Loader) Config() (*Config, error) {
	return LoadWithViper(l.v)
}

// mergeConfigFiles merges the TOML layers in precedence order.
func (l *Loader) mergeConfigFiles(p Paths) error {
	type layer struct {
		path   string
		source ConfigSource
	}
	var layers []layer
	if p.System != "" {
		layers = append(layers, layer{p.System, SourceSystem})
	}
	if p.UserDir != "" {
		layers = append(layers, layer{filepath.Join(p.UserDir, ConfigFileName), SourceUser})
	}
	if project := findProjectConfig(p.WorkDir); project != "" {
		layers = append(layers, layer{project, SourceProject})
	}

	for _, ly := range layers {
		if _, err := os.Stat(ly.path); err != nil {
			continue
		}
		file := viper.New()
		file.SetConfigFile(ly.path)
		file.SetConfigType("toml")
		if err := file.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", ly.path)
		}

		settings := file.AllSettings()
		for _, key := range file.AllKeys() {
			l.sources[key] = SourceInfo{Source: ly.source, Path: ly.path}
		}
		if err := l.v.MergeConfigMap(settings); err != nil {
			return errors.Wrapf(err, "failed to merge config file %s", ly.path)
		}
		l.files = append(l.files, ly.path)
	}
	return nil
}

// mergeDotEnv applies TEMPO_* assignments from the project .env file.
// Variables already present in the environment win; the process
// environment itself is not modified.
func (l *Loader) mergeDotEnv(p Paths) error {
	dir := p.WorkDir
	if project := findProjectConfig(p.WorkDir); project != "" {
		dir = filepath.Dir(project)
	}
	if dir == "" {
		return nil
	}
	path := filepath.Join(dir, DotEnvFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	l.dotenv = path

	for _, key := range l.v.AllKeys() {
		name := EnvVarName(key)
		value, ok := vars[name]
		if !ok {
			continue
		}
		if _, inEnv := os.LookupEnv(name); inEnv {
			continue
		}
		l.v.Set(key, value)
		l.sources[key] = SourceInfo{Source: SourceDotEnv, Path: path + " (" + name + ")"}
	}
	return nil
}

// EnvVarName returns the environment variable that overrides key.
func EnvVarName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// findProjectConfig searches for tempo.toml by walking up from dir.
func findProjectConfig(dir string) string {
	if dir == "" {
		return ""
	}
	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var (
	globalMu     sync.Mutex
	globalConfig *Config
	globalLoader *Loader
)

// Load reads the tempo configuration from the standard locations. The
// result is cached until Reset.
func Load() (*Config, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}
	l, err := loader()
	if err != nil {
		return nil, err
	}
	config, err := l.Config()
	if err != nil {
		return nil, err
	}
	globalConfig = config
	return globalConfig, nil
}

// GetLoader returns the loader behind Load.
func GetLoader() (*Loader, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	return loader()
}

func loader() (*Loader, error) {
	if globalLoader != nil {
		return globalLoader, nil
	}
	l, err := NewLoader(DefaultPaths())
	if err != nil {
		return nil, err
	}
	globalLoader = l
	return l, nil
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path on top of
// the defaults, ignoring every other layer.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}
	return LoadWithViper(v)
}

// Reset clears the cached configuration so the next Load rereads it.
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = nil
	globalLoader = nil
}

// Get returns a configuration value using dot notation
func Get(key string) (interface{}, error) {
	l, err := GetLoader()
	if err != nil {
		return nil, err
	}
	if !l.v.IsSet(key) {
		return nil, errors.NewNotFoundError("config key %s", key)
	}
	return l.v.Get(key), nil
}
