package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"audio-digest/internal/domain"
)

// EnvPrefix namespaces environment overrides, e.g. DIGEST_TRANSCRIPTION_BACKEND.
const EnvPrefix = "DIGEST"

// LoadOptions selects sources for Load.
type LoadOptions struct {
	// ConfigFile is an explicit YAML path; it must exist when set.
	ConfigFile string
	// SearchPaths are tried in order when ConfigFile is empty.
	SearchPaths []string
	// EnvFiles are dotenv files; variables already set in the process win.
	EnvFiles []string
	// Bind lets the CLI attach flag overrides before unmarshalling.
	Bind func(v *viper.Viper) error
}

// DefaultLoadOptions searches ./digest.yaml then the per-user config.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		SearchPaths: []string{"digest.yaml", filepath.Join(HomeDir(), "config.yaml")},
		EnvFiles:    []string{".env", filepath.Join(HomeDir(), ".env")},
	}
}

// Load merges defaults, the YAML file, dotenv files, environment and flags,
// in increasing precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return Config{}, domain.ConfigError("config", "encode defaults", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, domain.ConfigError("config", "seed defaults", err)
	}

	path, err := resolveConfigFile(opts)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, domain.ConfigError("config", fmt.Sprintf("cannot read config file %s", path), err)
		}
	}

	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("transcription.remote.api_key", EnvPrefix+"_TRANSCRIPTION_REMOTE_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("summary.openai.api_key", EnvPrefix+"_SUMMARY_OPENAI_API_KEY", "OPENAI_API_KEY")
	// Keys left out of the seeded defaults are unknown to AutomaticEnv.
	_ = v.BindEnv("summary.map_template", EnvPrefix+"_SUMMARY_MAP_TEMPLATE")
	_ = v.BindEnv("summary.combine_template", EnvPrefix+"_SUMMARY_COMBINE_TEMPLATE")

	if opts.Bind != nil {
		if err := opts.Bind(v); err != nil {
			return Config{}, domain.ConfigError("config", "bind flags", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, domain.ConfigError("config", "invalid configuration values", err)
	}
	cfg.ConfigFile = path
	return cfg, nil
}

func resolveConfigFile(opts LoadOptions) (string, error) {
	if explicit := strings.TrimSpace(opts.ConfigFile); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", domain.ConfigError("config", fmt.Sprintf("config file not found: %s", explicit), err)
		}
		return explicit, nil
	}
	for _, candidate := range opts.SearchPaths {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

// loadEnvFiles exports dotenv entries that are not already set.
func loadEnvFiles(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}

		e := viper.New()
		e.SetConfigFile(path)
		e.SetConfigType("env")
		if err := e.ReadInConfig(); err != nil {
			return domain.ConfigError("config", fmt.Sprintf("cannot read env file %s", path), err)
		}
		for _, key := range e.AllKeys() {
			name := strings.ToUpper(key)
			if _, set := os.LookupEnv(name); set {
				continue
			}
			if err := os.Setenv(name, e.GetString(key)); err != nil {
				return domain.ConfigError("config", fmt.Sprintf("cannot export %s", name), err)
			}
		}
	}
	return nil
}
