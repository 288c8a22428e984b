// Package config defines AnalysisConfig and the small amount of
// plumbing needed to build one from CLI flags and an optional YAML file,
// flags first, a config file merged underneath for anything flags
// didn't set.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects how local frame sizes are computed.
type Mode int

const (
	ModeIR Mode = iota
	ModeABI
)

func (m Mode) String() string {
	if m == ModeABI {
		return "ABI"
	}
	return "IR"
}

func ParseMode(s string) Mode {
	if s == "ABI" || s == "abi" {
		return ModeABI
	}
	return ModeIR
}

// DefaultStackLimit is 8 MiB, the tool's default stack budget.
const DefaultStackLimit uint64 = 8 * 1024 * 1024

// StringSet is a set-like filter: empty means "no restriction".
type StringSet map[string]bool

func NewStringSet(items []string) StringSet {
	if len(items) == 0 {
		return nil
	}
	s := make(StringSet, len(items))
	for _, it := range items {
		if it != "" {
			s[it] = true
		}
	}
	return s
}

func (s StringSet) Empty() bool { return len(s) == 0 }

func (s StringSet) Has(v string) bool { return s[v] }

// Config holds all tunables for a single analysis run.
type Config struct {
	Mode          Mode       `yaml:"mode"`
	StackLimit    uint64     `yaml:"stackLimit"`
	OnlyFiles     StringSet  `yaml:"-"`
	OnlyDirs      StringSet  `yaml:"-"`
	OnlyFunctions StringSet  `yaml:"-"`

	OnlyFilesList     []string `yaml:"onlyFiles"`
	OnlyDirsList      []string `yaml:"onlyDirs"`
	OnlyFunctionsList []string `yaml:"onlyFunctions"`

	ExtraCompileArgs []string `yaml:"extraCompileArgs"`
	DumpFilter       bool     `yaml:"dumpFilter"`
}

// Default returns the baseline defaults: IR mode, 8 MiB limit, no
// filters.
func Default() *Config {
	return &Config{Mode: ModeIR, StackLimit: DefaultStackLimit}
}

// finalizeSets builds the StringSet filters from their YAML-friendly list
// form, called after flags and/or a config file have populated the lists.
func (c *Config) finalizeSets() {
	c.OnlyFiles = NewStringSet(c.OnlyFilesList)
	c.OnlyDirs = NewStringSet(c.OnlyDirsList)
	c.OnlyFunctions = NewStringSet(c.OnlyFunctionsList)
}

// LoadFile merges a YAML config file under the receiver: any field the
// file sets and the receiver left at its zero value is adopted; fields
// already set (by flags, before this call) win. Mode is not merged: the
// receiver's mode is kept whatever the file says. Missing files are not
// an error — an optional config file is exactly that.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if c.StackLimit == 0 {
		c.StackLimit = file.StackLimit
	}
	if len(c.OnlyFilesList) == 0 {
		c.OnlyFilesList = file.OnlyFilesList
	}
	if len(c.OnlyDirsList) == 0 {
		c.OnlyDirsList = file.OnlyDirsList
	}
	if len(c.OnlyFunctionsList) == 0 {
		c.OnlyFunctionsList = file.OnlyFunctionsList
	}
	if len(c.ExtraCompileArgs) == 0 {
		c.ExtraCompileArgs = file.ExtraCompileArgs
	}
	c.DumpFilter = c.DumpFilter || file.DumpFilter

	return nil
}

// Finalize must be called once all flag/file merging is done; it builds
// the queryable StringSet filters and applies the stack-limit default.
func (c *Config) Finalize() *Config {
	if c.StackLimit == 0 {
		c.StackLimit = DefaultStackLimit
	}
	c.finalizeSets()
	return c
}
