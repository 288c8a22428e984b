// Package dupcond implements the duplicate-else-if condition analyzer: a
// branch is flagged when a dominating branch's false edge also dominates
// it, the two conditions are equivalent, and the source text between
// them contains an `else` token.
package dupcond

import (
	"bufio"
	"os"
	"regexp"
	"strings"

	"github.com/sasha-s/go-deadlock"
)

// LineCache is the process-wide, path-keyed cache of source file lines
// this analyzer reads to look for the `else` token between two branches.
// Concurrent per-function detector passes share one cache, so reads and
// the fill-on-miss write are guarded by a deadlock-detecting mutex rather
// than a bare sync.RWMutex.
type LineCache struct {
	mu    deadlock.RWMutex
	lines map[string][]string
}

func NewLineCache() *LineCache {
	return &LineCache{lines: map[string][]string{}}
}

func (c *LineCache) Lines(path string) []string {
	c.mu.RLock()
	if ls, ok := c.lines[path]; ok {
		c.mu.RUnlock()
		return ls
	}
	c.mu.RUnlock()

	ls := readLines(path)

	c.mu.Lock()
	c.lines[path] = ls
	c.mu.Unlock()
	return ls
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out
}

var elseWord = regexp.MustCompile(`\belse\b`)

// ContainsElseToken scans lines [fromLine, toLine] (1-based, inclusive)
// for a whole-word `else`, ignoring the tail of each line following an
// unquoted `//` and ignoring content inside double-quoted strings.
func (c *LineCache) ContainsElseToken(path string, fromLine, toLine int) bool {
	lines := c.Lines(path)
	if lines == nil {
		return false
	}
	lo, hi := fromLine, toLine
	if lo > hi {
		lo, hi = hi, lo
	}
	for ln := lo; ln <= hi; ln++ {
		if ln < 1 || ln > len(lines) {
			continue
		}
		if elseWord.MatchString(stripCommentsAndStrings(lines[ln-1])) {
			return true
		}
	}
	return false
}

// stripCommentsAndStrings removes a trailing `//` line comment (outside
// quotes) and the contents of double-quoted string literals, replacing
// them with spaces so token positions and a subsequent word-boundary
// search stay stable.
func stripCommentsAndStrings(line string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inString:
			b.WriteByte(' ')
			if ch == '"' && (i == 0 || line[i-1] != '\\') {
				inString = false
			}
		case ch == '"':
			inString = true
			b.WriteByte(' ')
		case ch == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String()
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
