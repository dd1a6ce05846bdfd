package pipeline

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	perrors "github.com/matzehuels/netplace/pkg/errors"
)

// Config file formats recognised by [ParseConfig].
const (
	ConfigTOML = "toml"
	ConfigYAML = "yaml"
)

// LoadConfig reads options from a TOML (.toml) or YAML (.yaml, .yml) file.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadConfig(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Options{}, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "config %s", path)
		}
		return Options{}, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "read config %s", path)
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = ConfigTOML
	case ".yaml", ".yml":
		format = ConfigYAML
	default:
		return Options{}, perrors.New(perrors.ErrCodeInvalidConfig, "config %s: unsupported extension (must be .toml, .yaml or .yml)", path)
	}

	opts, err := ParseConfig(data, format)
	if err != nil {
		return Options{}, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "config %s", path)
	}
	return opts, nil
}

// ParseConfig decodes options in the given format. Values are not
// validated; call [Options.ValidateAndSetDefaults] afterwards.
func ParseConfig(data []byte, format string) (Options, error) {
	var opts Options
	switch format {
	case ConfigTOML:
		md, err := toml.Decode(string(data), &opts)
		if err != nil {
			return Options{}, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "decode toml")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Options{}, perrors.New(perrors.ErrCodeInvalidConfig, "unknown key %q", undecoded[0].String())
		}
	case ConfigYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			return Options{}, perrors.Wrap(perrors.ErrCodeInvalidConfig, err, "decode yaml")
		}
	default:
		return Options{}, perrors.New(perrors.ErrCodeInvalidConfig, "unknown config format %q", format)
	}
	return opts, nil
}
