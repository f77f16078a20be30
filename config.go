package grove

import (
	"os"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"
)

// Config is a Context's global configuration (spec §3 Entity: Context,
// "global configuration"). Precedence, lowest to highest: built-in
// defaults, grove.toml in the working directory, GROVE_* environment
// variables (spec §6's "environment variables consumed").
type Config struct {
	BuildDir string
	Parallel int
	NoColor  bool
}

// fileConfig mirrors the subset of grove.toml fields Config understands.
// Unrecognized keys are ignored, matching spec §6's "unrecognized
// environment variables are ignored" for the file layer too.
type fileConfig struct {
	BuildDir string `toml:"build_dir"`
	Parallel int    `toml:"parallel"`
	NoColor  bool   `toml:"no_color"`
}

// DefaultConfig returns the built-in defaults, before any grove.toml or
// environment override is applied. NoColor defaults to true when stdout
// isn't a terminal (piped output, CI logs), matching the teacher's
// isTerminal-gated color detection (pk/exec.go's initColorEnv).
func DefaultConfig() *Config {
	return &Config{
		BuildDir: ".grove",
		Parallel: runtime.GOMAXPROCS(0),
		NoColor:  !isTerminal(os.Stdout),
	}
}

// isTerminal reports whether f is attached to an interactive terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// LoadConfig builds a Config by layering grove.toml (if present in the
// current directory) and then GROVE_BUILD_DIR / GROVE_PARALLEL /
// GROVE_NO_COLOR over DefaultConfig.
func LoadConfig() *Config {
	cfg := DefaultConfig()

	var fc fileConfig
	if _, err := toml.DecodeFile("grove.toml", &fc); err == nil {
		if fc.BuildDir != "" {
			cfg.BuildDir = fc.BuildDir
		}
		if fc.Parallel > 0 {
			cfg.Parallel = fc.Parallel
		}
		if fc.NoColor {
			cfg.NoColor = true
		}
	}

	if v, ok := os.LookupEnv("GROVE_BUILD_DIR"); ok && v != "" {
		cfg.BuildDir = v
	}
	if v, ok := os.LookupEnv("GROVE_PARALLEL"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parallel = n
		}
	}
	if _, ok := os.LookupEnv("GROVE_NO_COLOR"); ok {
		cfg.NoColor = true
	}

	return cfg
}
