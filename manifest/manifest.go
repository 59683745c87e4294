// Package manifest handles monkey.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name searched for by Load and FindAndLoad.
const FileName = "monkey.toml"

// Defaults for values left unset in monkey.toml.
const (
	DefaultPrompt     = ">> "
	DefaultEngine     = "vm"
	DefaultHistory    = ".monkey_history"
	DefaultStackSize  = 2048
	DefaultMaxFrames  = 1024
	DefaultServerAddr = "localhost:4567"
)

// Manifest represents a monkey.toml configuration.
type Manifest struct {
	REPL   REPL   `toml:"repl"`
	VM     VM     `toml:"vm"`
	Log    Log    `toml:"log"`
	Server Server `toml:"server"`

	// Dir is the directory containing the monkey.toml file (set at load time).
	// It is empty for a manifest built by Default.
	Dir string `toml:"-"`
}

// REPL configures the interactive prompt.
type REPL struct {
	Prompt  string `toml:"prompt"`
	Engine  string `toml:"engine"`
	History string `toml:"history"`
}

// VM bounds execution. MaxSteps of zero means unlimited.
type VM struct {
	StackSize int   `toml:"stack_size"`
	MaxFrames int   `toml:"max_frames"`
	MaxSteps  int64 `toml:"max_steps"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Server configures the RPC listener.
type Server struct {
	Addr string `toml:"addr"`
}

// Default returns a manifest with every default filled in.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses the monkey.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a manifest from an explicit path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a monkey.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) validate() error {
	switch m.REPL.Engine {
	case "", "vm", "eval":
	default:
		return fmt.Errorf("repl.engine: unknown engine %q (want vm or eval)", m.REPL.Engine)
	}
	if m.VM.StackSize < 0 || m.VM.MaxFrames < 0 || m.VM.MaxSteps < 0 {
		return fmt.Errorf("vm: limits must not be negative")
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative")
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = DefaultPrompt
	}
	if m.REPL.Engine == "" {
		m.REPL.Engine = DefaultEngine
	}
	if m.REPL.History == "" {
		m.REPL.History = DefaultHistory
	}
	if m.VM.StackSize == 0 {
		m.VM.StackSize = DefaultStackSize
	}
	if m.VM.MaxFrames == 0 {
		m.VM.MaxFrames = DefaultMaxFrames
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultServerAddr
	}
}

// HistoryPath returns the REPL history file. A relative path is resolved
// against the manifest directory, or the user's home directory when the
// manifest was not loaded from disk.
func (m *Manifest) HistoryPath() string {
	return m.resolve(m.REPL.History)
}

// LogPath returns the log file, or "" to log to stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	base := m.Dir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		base = home
	}
	return filepath.Join(base, p)
}
