// Package compiledb loads an optional compile_commands.json and answers
// the one question the driver needs of it: given a source file, what
// extra compiler arguments apply (spec §6 "Compile-commands JSON").
// Purely a mapping lookup, per spec §1's "explicitly out of scope" list,
// supplied here as the clerical collaborator the CLI wires up.
package compiledb

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Entry is one translation unit's resolved compiler invocation.
type Entry struct {
	File      string
	Directory string
	Arguments []string
}

// DB is a loaded compile_commands.json, indexed for the suffix lookup
// spec §6 describes.
type DB struct {
	byFullPath map[string]Entry
	all        []Entry
}

// rawEntry mirrors one array element of compile_commands.json.
type rawEntry struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	Command   string   `json:"command"`
}

// Load parses path into a DB. It reports read and parse failures,
// including a missing file, as errors; the CLI driver treats any of
// them as fatal.
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading compile database %s", path)
	}

	var raws []rawEntry
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, errors.Wrapf(err, "parsing compile database %s", path)
	}

	db := &DB{byFullPath: map[string]Entry{}}
	for _, r := range raws {
		args := r.Arguments
		if len(args) == 0 && r.Command != "" {
			args = tokenizeCommand(r.Command)
		}
		args = stripNoise(args)

		full := r.File
		if !filepath.IsAbs(full) {
			full = filepath.Join(r.Directory, full)
		}
		full = normalize(full)

		e := Entry{File: full, Directory: r.Directory, Arguments: args}
		db.byFullPath[full] = e
		db.all = append(db.all, e)
	}
	return db, nil
}

// Lookup resolves file against the database: first by full normalized
// path, then by progressively shorter `/`-boundary path suffixes, with
// uniqueness required at each suffix level (an ambiguous suffix match is
// not a match).
func (db *DB) Lookup(file string) (Entry, bool) {
	file = normalize(file)
	if e, ok := db.byFullPath[file]; ok {
		return e, true
	}

	parts := strings.Split(strings.TrimPrefix(file, "/"), "/")
	for i := 0; i < len(parts); i++ {
		suffix := strings.Join(parts[i:], "/")
		if suffix == "" {
			continue
		}
		var match Entry
		count := 0
		for full, e := range db.byFullPath {
			if full == suffix || strings.HasSuffix(full, "/"+suffix) {
				match = e
				count++
			}
		}
		if count == 1 {
			return match, true
		}
		if count > 1 {
			return Entry{}, false
		}
	}
	return Entry{}, false
}

func normalize(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return strings.TrimSuffix(path, "/")
}

// dependencyGenOpts are the dependency-generation flags spec §6 says
// must be stripped entirely (no-argument form).
var dependencyGenOpts = map[string]bool{
	"-M": true, "-MM": true, "-MD": true, "-MMD": true, "-MG": true, "-MP": true,
}

// dependencyGenArgOpts take a following argument that must be dropped
// along with the flag.
var dependencyGenArgOpts = map[string]bool{
	"-MF": true, "-MT": true, "-MQ": true,
}

// stripNoise removes the leading command-name token(s) (anything before
// the first `-`-prefixed option or recognizable source file), output
// flags, dependency-generation flags, and the input file argument
// itself, per spec §6.
func stripNoise(tokens []string) []string {
	tokens = dropLeadingCommand(tokens)

	var out []string
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t == "-o" || t == "--output":
			i++ // skip its argument too
		case dependencyGenOpts[t]:
		case dependencyGenArgOpts[t]:
			i++
		case looksLikeSourceFile(t):
		default:
			out = append(out, t)
		}
	}
	return out
}

func dropLeadingCommand(tokens []string) []string {
	for i, t := range tokens {
		if strings.HasPrefix(t, "-") || looksLikeSourceFile(t) {
			return tokens[i:]
		}
	}
	return nil
}

var sourceExts = map[string]bool{
	".c": true, ".cpp": true, ".cc": true, ".cxx": true, ".c++": true, ".cp": true,
}

func looksLikeSourceFile(tok string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(tok))]
}

// tokenizeCommand splits a shell-like command string honoring single and
// double quotes and backslash escapes, per spec §6.
func tokenizeCommand(cmd string) []string {
	var tokens []string
	var cur strings.Builder
	var inSingle, inDouble bool
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(cmd); i++ {
		c := cmd[i]
		switch {
		case c == '\\' && i+1 < len(cmd) && !inSingle:
			cur.WriteByte(cmd[i+1])
			i++
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == ' ' && !inSingle && !inDouble:
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}
