// Package mangle implements the symbol-demangling collaborator that the
// treats as an external black box (`demangle(symbol) -> human_name`).
// Real demangling is owned by libc++abi/LLVM in the original tool; this
// is a best-effort, dependency-free stand-in covering the Itanium shapes
// function filter needs to recognize: a plain
// `_Z<len><name>...` leaf name, and nested `_ZN<len><name>...<len><name>E`
// namespace/class-qualified names, with an optional leading `L` (internal
// linkage) and a trailing parameter-type sequence this package does not
// attempt to spell out — callers that need the "stripped argument list"
// form get it by construction, not by re-parsing a printed signature.
package mangle

import "strings"

// IsMangled reports whether name looks like an Itanium-mangled symbol
// (`_Z` or `_ZL` prefix).
func IsMangled(name string) bool {
	return strings.HasPrefix(name, "_Z")
}

// Demangled is the decomposition of a mangled symbol the function filter needs for
// the four match forms.
type Demangled struct {
	// Pretty is the best-effort human-readable qualified name, e.g.
	// "ns::Class::method".
	Pretty string
	// BaseName is the innermost identifier (the Itanium base
	// name").
	BaseName string
	// OK is false when name did not parse as Itanium-mangled; callers
	// then fall back to treating name itself as already-demangled.
	OK bool
}

// Demangle decomposes an Itanium-mangled symbol into its qualified and
// base names. It does not reconstruct parameter types; the "demangled
// name with the argument list stripped" form is exactly
// Pretty, since this implementation never appends one.
func Demangle(name string) Demangled {
	s := name
	if strings.HasPrefix(s, "_ZL") {
		s = s[3:]
	} else if strings.HasPrefix(s, "_Z") {
		s = s[2:]
	} else {
		return Demangled{Pretty: name, BaseName: name, OK: false}
	}

	if strings.HasPrefix(s, "N") {
		parts, _ := parseNestedName(s[1:])
		if len(parts) == 0 {
			return Demangled{Pretty: name, BaseName: name, OK: false}
		}
		return Demangled{
			Pretty:   strings.Join(parts, "::"),
			BaseName: parts[len(parts)-1],
			OK:       true,
		}
	}

	name1, _, ok := parseLengthPrefixed(s)
	if !ok {
		return Demangled{Pretty: name, BaseName: name, OK: false}
	}
	return Demangled{Pretty: name1, BaseName: name1, OK: true}
}

// BaseName is a convenience wrapper returning just the innermost
// identifier, falling back to name itself when it isn't mangled.
func BaseName(name string) string {
	return Demangle(name).BaseName
}

// parseNestedName parses the sequence of <length><name> components
// inside an `N...E` nested-name, stopping at the first `E` or the first
// component that doesn't start with a decimal digit (e.g. qualifiers or
// template args this stand-in doesn't model).
func parseNestedName(s string) ([]string, string) {
	var parts []string
	for len(s) > 0 {
		if s[0] == 'E' {
			return parts, s[1:]
		}
		name, rest, ok := parseLengthPrefixed(s)
		if !ok {
			break
		}
		parts = append(parts, name)
		s = rest
	}
	return parts, s
}

// parseLengthPrefixed consumes a decimal length followed by that many
// identifier characters, e.g. "3foo" -> ("foo", "", true).
func parseLengthPrefixed(s string) (name string, rest string, ok bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", s, false
	}
	n := 0
	for _, c := range s[:i] {
		n = n*10 + int(c-'0')
	}
	if i+n > len(s) {
		return "", s, false
	}
	return s[i : i+n], s[i+n:], true
}
