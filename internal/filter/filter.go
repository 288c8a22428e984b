// Package filter builds the `shouldAnalyze` predicate from
// the file/directory/function-name filters in the analysis config.
package filter

import (
	"path/filepath"
	"strings"

	"ctrace/internal/config"
	"ctrace/internal/ir"
	"ctrace/internal/mangle"
)

// Filter decides which functions the detector passes should run over.
type Filter struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Filter {
	return &Filter{cfg: cfg}
}

// ShouldAnalyze applies path filters AND name filters, both
// empty-means-unrestricted, with the `__`/`llvm.`/`clang.` exclusion for
// functions lacking a usable source path.
func (flt *Filter) ShouldAnalyze(f *ir.Function, moduleSourceFile string) bool {
	path := f.DebugFile
	if path == "" {
		if hasExcludedPrefix(f.Symbol) || hasExcludedPrefix(f.Name) {
			return false
		}
		path = moduleSourceFile
	}
	path = canonicalize(path)

	if !flt.pathMatches(path) {
		return false
	}
	return flt.nameMatches(f)
}

func hasExcludedPrefix(name string) bool {
	return strings.HasPrefix(name, "__") || strings.HasPrefix(name, "llvm.") || strings.HasPrefix(name, "clang.")
}

// canonicalize absolutizes the path and normalizes separators: backslash
// to forward slash, duplicate slashes collapsed, trailing slash
// stripped.
func canonicalize(path string) string {
	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	abs = strings.ReplaceAll(abs, "\\", "/")
	for strings.Contains(abs, "//") {
		abs = strings.ReplaceAll(abs, "//", "/")
	}
	abs = strings.TrimSuffix(abs, "/")
	return abs
}

func (flt *Filter) pathMatches(path string) bool {
	if flt.cfg.OnlyFiles.Empty() && flt.cfg.OnlyDirs.Empty() {
		return true
	}
	for pattern := range flt.cfg.OnlyFiles {
		if matchesPathOrSuffixOrBasename(path, canonicalize(pattern)) {
			return true
		}
	}
	for pattern := range flt.cfg.OnlyDirs {
		dir := canonicalize(pattern)
		if path == dir || strings.HasPrefix(path, dir+"/") {
			return true
		}
	}
	return false
}

func matchesPathOrSuffixOrBasename(path, pattern string) bool {
	if path == pattern {
		return true
	}
	if strings.HasSuffix(path, "/"+pattern) {
		return true
	}
	if filepath.Base(path) == filepath.Base(pattern) {
		return true
	}
	return false
}

// nameMatches checks four name forms: raw mangled symbol,
// demangled pretty name, demangled-without-args (here identical to
// Pretty, see internal/mangle), and the Itanium base name.
func (flt *Filter) nameMatches(f *ir.Function) bool {
	if flt.cfg.OnlyFunctions.Empty() {
		return true
	}

	symbol := f.Symbol
	if symbol == "" {
		symbol = f.Name
	}
	d := mangle.Demangle(symbol)

	candidates := []string{symbol, f.Name}
	if d.OK {
		candidates = append(candidates, d.Pretty, d.BaseName)
	}

	for pattern := range flt.cfg.OnlyFunctions {
		for _, c := range candidates {
			if matchesNameForm(c, pattern) {
				return true
			}
		}
	}
	return false
}

func matchesNameForm(candidate, pattern string) bool {
	if candidate == pattern {
		return true
	}
	if strings.HasSuffix(candidate, "/"+pattern) {
		return true
	}
	return filepath.Base(candidate) == filepath.Base(pattern)
}
