package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	EnvVarPrefix = "EXT2SH"
	AppName      = "ext2sh"

	DefaultLogLevel = "INFO"
	DefaultPrompt   = ":> "
)

type Config struct {
	Image     string `envconfig:"IMAGE"      yaml:"image"`
	ReadOnly  bool   `envconfig:"READ_ONLY"  yaml:"readOnly"`
	LogLevel  string `envconfig:"LOG_LEVEL"  yaml:"logLevel"`
	Prompt    string `envconfig:"PROMPT"     yaml:"prompt"`
	AWSRegion string `envconfig:"AWS_REGION" yaml:"awsRegion"`
}

func Default() Config {
	return Config{LogLevel: DefaultLogLevel, Prompt: DefaultPrompt}
}

// Load layers the config file over the defaults and the environment over
// the file. `configFile` falls back to `EXT2SH_CONFIG_FILE` and then to
// `~/.config/ext2sh.yaml`; only the last may be missing.
func Load(configFile string) (*Config, error) {
	explicit := true
	if configFile == "" {
		configFile = os.Getenv(EnvVarPrefix + "_CONFIG_FILE")
	}
	if configFile == "" {
		explicit = false
		if home, err := os.UserHomeDir(); err == nil {
			configFile = filepath.Join(home, ".config", AppName+".yaml")
		}
	}

	c := Default()
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if explicit || !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
			return nil, fmt.Errorf(
				"unmarshaling config file `%s`: %w",
				configFile,
				err,
			)
		}
	}

	if err := envconfig.Process(EnvVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}

	return &c, nil
}

func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf(
			"missing required configuration: %s / %s_%s",
			"image",
			EnvVarPrefix,
			"IMAGE",
		)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid configuration: logLevel: %w", err)
	}
	return nil
}
