// Package config loads the runtime settings of the tutorial steps from flags, RTSBT_*
// environment variables and an optional config file.
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultWidth     = 800
	DefaultHeight    = 600
	DefaultShaderDir = "shaders"
)

// Config holds the settings that may vary between runs. The shader group layout,
// the instance SBT offset and the build flags are fixed and not configurable.
type Config struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	ShaderDir  string `mapstructure:"shader_dir"`
	Mesh       string `mapstructure:"mesh"`
	Validation bool   `mapstructure:"validation"`
	LogLevel   string `mapstructure:"log_level"`

	// PipelineCache is a file the pipeline cache is seeded from and saved to. Empty disables it.
	PipelineCache string `mapstructure:"pipeline_cache"`
}

func DefaultConfig() *Config {
	return &Config{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		ShaderDir:  DefaultShaderDir,
		Mesh:       "",
		Validation: true,
		LogLevel:   "info",
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("width", cfg.Width)
	v.SetDefault("height", cfg.Height)
	v.SetDefault("shader_dir", cfg.ShaderDir)
	v.SetDefault("mesh", cfg.Mesh)
	v.SetDefault("validation", cfg.Validation)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("pipeline_cache", cfg.PipelineCache)
}

// Load parses args (without the program name) and merges them over the environment,
// the config file named by --config, and the defaults, in that order of precedence.
func Load(name string, args []string) (*Config, error) {
	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	cfgFile := flags.String("config", "", "config file (yaml, toml or json)")
	flags.Int("width", cfg.Width, "window width")
	flags.Int("height", cfg.Height, "window height")
	flags.String("shader-dir", cfg.ShaderDir, "directory holding the compiled SPIR-V shaders")
	flags.String("mesh", cfg.Mesh, "Wavefront OBJ file for the bottom-level structure (default: a single triangle)")
	flags.Bool("validation", cfg.Validation, "enable the Khronos validation layer")
	flags.String("log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.String("pipeline-cache", cfg.PipelineCache, "file to load and save the pipeline cache")

	if err := flags.Parse(args); err != nil {
		return nil, errors.Wrap(err, "parsing flags")
	}

	for key, flag := range map[string]string{
		"width":      "width",
		"height":     "height",
		"shader_dir": "shader-dir",
		"mesh":       "mesh",
		"validation": "validation",
		"log_level":  "log-level",

		"pipeline_cache": "pipeline-cache",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, errors.Wrapf(err, "binding flag %s", flag)
		}
	}

	v.SetEnvPrefix("RTSBT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", *cfgFile)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Width, c.Height)
	}
	if c.ShaderDir == "" {
		return errors.New("shader_dir must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// Level is the parsed LogLevel. Validate has already rejected bad values.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
