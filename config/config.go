// Package config loads the YAML configuration of the emlua CLI.
//
// A file is checked in three steps: the raw document against the JSON schema
// generated from Config, then a strict decode that rejects unknown keys, then
// the struct validation tags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/emlua-dev/emlua/domain/entities"
	domainerrors "github.com/emlua-dev/emlua/domain/errors"
	"github.com/emlua-dev/emlua/host"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the configuration file layout.
type Config struct {
	// Globals are written into every session before its script runs.
	Globals map[string]any `yaml:"globals" json:"globals,omitempty" jsonschema:"description=Globals written into every session"`

	// ScriptsDir reads scripts from disk instead of the embedded copies.
	ScriptsDir string `yaml:"scripts_dir" json:"scripts_dir,omitempty" jsonschema:"description=Directory holding the example scripts; embedded scripts are used when empty"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log" json:"log,omitempty"`

	// Examples restricts the run to these example names or numbers.
	Examples []string `yaml:"examples" json:"examples,omitempty" validate:"dive,required" jsonschema:"description=Examples to run by name or number; all when empty"`

	// CallStackSize overrides the interpreter call stack size when positive.
	CallStackSize int `yaml:"call_stack_size" json:"call_stack_size,omitempty" validate:"gte=0,lte=1000000" jsonschema:"minimum=0,maximum=1000000"`

	// StopOnError stops the run after the first example that does not succeed.
	StopOnError bool `yaml:"stop_on_error" json:"stop_on_error,omitempty"`

	// Stdlib registers the interpreter standard library in every session.
	Stdlib bool `yaml:"stdlib" json:"stdlib,omitempty" jsonschema:"default=true"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" json:"level,omitempty" validate:"omitempty,oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `yaml:"format" json:"format,omitempty" validate:"omitempty,oneof=text json" jsonschema:"enum=text,enum=json,default=text"`
}

// validate is a package-level singleton; building a validator is expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Stdlib: true,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a YAML document. Keys missing from the
// document keep their Default values.
func Parse(data []byte) (Config, error) {
	if err := ValidateDocument(data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &domainerrors.ConfigError{Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct validation tags and the globals.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domainerrors.ConfigError{
				Field: fieldPath(fe.Namespace()),
				Err:   fmt.Errorf("failed on the '%s' rule (value %v)", fe.Tag(), fe.Value()),
			}
		}
		return &domainerrors.ConfigError{Err: err}
	}
	if _, err := c.GlobalValues(); err != nil {
		return err
	}
	return nil
}

// GlobalValues converts Globals into interpreter values.
func (c Config) GlobalValues() (map[string]entities.Value, error) {
	if len(c.Globals) == 0 {
		return nil, nil
	}
	out := make(map[string]entities.Value, len(c.Globals))
	for _, name := range sortedKeys(c.Globals) {
		if name == "" {
			return nil, &domainerrors.ConfigError{Field: "globals", Err: errors.New("global name cannot be empty")}
		}
		v, err := entities.FromGo(c.Globals[name])
		if err != nil {
			return nil, &domainerrors.ConfigError{Field: "globals." + name, Err: err}
		}
		out[name] = v
	}
	return out, nil
}

// HostOptions returns the session options this configuration implies.
func (c Config) HostOptions() ([]host.Option, error) {
	globals, err := c.GlobalValues()
	if err != nil {
		return nil, err
	}

	var opts []host.Option
	if len(globals) > 0 {
		opts = append(opts, host.WithGlobals(globals))
	}
	if !c.Stdlib {
		opts = append(opts, host.WithoutStdlib())
	}
	if c.CallStackSize > 0 {
		opts = append(opts, host.WithCallStackSize(c.CallStackSize))
	}
	return opts, nil
}

// fieldPath turns "Config.log.level" into "log.level".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
