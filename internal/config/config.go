// Package config builds the metainf configuration from go.mod, an optional
// .metainf.yaml in the module root, METAINF_* environment variables and
// command-line flags.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	FileName = ".metainf"
	FileType = "yaml"

	EnvPrefix = "METAINF"

	KeyOutput       = "output"
	KeyScan         = "scan"
	KeyExclude      = "exclude"
	KeyRootTypes    = "root_types"
	KeyDeclarations = "declarations"
	KeyDebounce     = "debounce"
)

// Config holds metainf configuration.
type Config struct {
	Module string // module path from go.mod, empty outside a Go module
	Root   string // directory holding go.mod, or the working directory

	Output       string        // output root; manifests go to <Output>/META-INF/services
	Scan         []string      // package patterns, one pass each
	Exclude      []string      // package prefixes to skip
	RootTypes    []string      // supertypes that never count as a base class
	Declarations string        // YAML declaration stream; replaces package scanning when set
	Debounce     time.Duration // watch mode settle time
}

// New returns a viper instance with metainf defaults and env bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyOutput, ".")
	v.SetDefault(KeyScan, []string{"./..."})
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyRootTypes, []string{"java.lang.Object"})
	v.SetDefault(KeyDeclarations, "")
	v.SetDefault(KeyDebounce, 500*time.Millisecond)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads the configuration for the module rooted at root. file names an
// explicit config file; when empty, .metainf.yaml in root is used if present.
// A missing default config file is not an error.
func Load(v *viper.Viper, root, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType(FileType)
		v.AddConfigPath(root)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	module, err := parseModulePath(root)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		Module:       module,
		Root:         root,
		Output:       v.GetString(KeyOutput),
		Scan:         v.GetStringSlice(KeyScan),
		Exclude:      v.GetStringSlice(KeyExclude),
		RootTypes:    v.GetStringSlice(KeyRootTypes),
		Declarations: v.GetString(KeyDeclarations),
		Debounce:     v.GetDuration(KeyDebounce),
	}
	if !filepath.IsAbs(cfg.Output) {
		cfg.Output = filepath.Join(root, cfg.Output)
	}
	if cfg.Declarations != "" && !filepath.IsAbs(cfg.Declarations) {
		cfg.Declarations = filepath.Join(root, cfg.Declarations)
	}
	if len(cfg.Scan) == 0 {
		cfg.Scan = []string{"./..."}
	}
	return cfg, nil
}

// FindModuleRoot walks up from dir to the directory containing go.mod. If
// there is none, dir itself is returned.
func FindModuleRoot(dir string) string {
	start := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

func parseModulePath(root string) (string, error) {
	f, err := os.Open(filepath.Join(root, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("open go.mod: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "module ") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module ")), `"`), nil
		}
	}
	return "", fmt.Errorf("module directive not found in go.mod")
}
