package pkgdelta

import (
	"io/ioutil"

	"github.com/pkg/errors"
	. "github.com/stevegt/goadapt"
	"gopkg.in/yaml.v3"

	"github.com/t7a/pkgdelta/backend"
)

// size bound defaults: below the lower bound a full download is
// already cheap, above the upper bound the backend gets too expensive
// to run routinely.
const (
	kiB = 1024
	miB = 1024 * kiB

	defMinSize = 1 * miB
	defMaxSize = 10 * miB
)

// Config carries the knobs of a reconciliation run.  All fields have
// working defaults; a YAML file can override any of them.
type Config struct {
	// MinSize and MaxSize bound the size of the delta source
	// artifact: pairs whose from-file is at or below MinSize, or
	// above MaxSize, are skipped.
	MinSize int64 `yaml:"min_size"`
	MaxSize int64 `yaml:"max_size"`

	// Hash selects the content digest algorithm used for
	// fingerprints: sha256, sha512 or blake3.
	Hash string `yaml:"hash"`

	// DeltaDir is the subdirectory under each artifact directory
	// holding deltas and sidecars.
	DeltaDir string `yaml:"delta_dir"`

	// Backend is an external delta command template with {from},
	// {to} and {delta} placeholders.  Empty selects the built-in
	// chunked backend.
	Backend string `yaml:"backend"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		MinSize:  defMinSize,
		MaxSize:  defMaxSize,
		Hash:     "sha256",
		DeltaDir: DeltaSubdir,
	}
}

// LoadConfig reads a YAML config file over the defaults.  A missing
// or malformed file is a configuration error: the caller asked for
// that file explicitly, so we refuse to run rather than silently
// falling back.
func LoadConfig(path string) (cfg *Config, err error) {
	defer Return(&err)

	buf, err := ioutil.ReadFile(path)
	Ck(err)

	cfg = DefaultConfig()
	err = yaml.Unmarshal(buf, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	err = cfg.validate()
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return
}

func (cfg *Config) validate() (err error) {
	if _, err = NewHash(cfg.Hash); err != nil {
		return
	}
	if cfg.MinSize < 0 || cfg.MaxSize <= cfg.MinSize {
		return errors.Errorf("bad size bounds: min %d max %d", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.DeltaDir == "" {
		return errors.New("empty delta_dir")
	}
	return nil
}

// NewBackend builds the delta backend this config selects.
func (cfg *Config) NewBackend() (be backend.Backend, err error) {
	if cfg.Backend == "" {
		return backend.NewChunked(), nil
	}
	return backend.NewCommand(cfg.Backend)
}
