package config

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Options struct {
	OutputDir            string `yaml:"output_dir"`
	EmitSource           bool   `yaml:"emit_source"`
	UseFixedBuffers      bool   `yaml:"use_fixed_buffers"`
	ByteAddressable      bool   `yaml:"byte_addressable"`
	UseShadowRegisters   bool   `yaml:"shadow_registers"`
	NumberConfigurations int    `yaml:"number_configurations"`
	LogLevel             string `yaml:"log_level"`
}

func Default() Options {
	return Options{
		OutputDir:            "src",
		EmitSource:           true,
		NumberConfigurations: 1,
		LogLevel:             "info",
	}
}

// Load reads options from a YAML file. Fields missing from the file keep
// their defaults. An empty path returns the defaults.
func Load(path string) (Options, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "read options %s", path)
	}
	opts, err := Parse(data)
	if err != nil {
		return Options{}, errors.Wrapf(err, "options %s", path)
	}
	return opts, nil
}

func Parse(data []byte) (Options, error) {
	opts := Default()
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, errors.Wrap(err, "decode")
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) Validate() error {
	if o.NumberConfigurations < 1 {
		return errors.Errorf("number_configurations must be at least 1, got %d", o.NumberConfigurations)
	}
	if o.EmitSource && o.OutputDir == "" {
		return errors.New("emit_source needs an output_dir")
	}
	if hclog.LevelFromString(o.LogLevel) == hclog.NoLevel {
		return errors.Errorf("unknown log_level %q", o.LogLevel)
	}
	return nil
}

func (o Options) Level() hclog.Level {
	return hclog.LevelFromString(o.LogLevel)
}
