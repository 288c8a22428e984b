package compiledb

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeDB(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "compile_commands.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadAndLookup_ByArgumentsArray(t *testing.T) {
	path := writeDB(t, `[
		{
			"file": "src/foo.c",
			"directory": "/repo",
			"arguments": ["clang", "-std=gnu++20", "-I/repo/include", "-o", "foo.o", "src/foo.c"]
		}
	]`)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	e, ok := db.Lookup("/repo/src/foo.c")
	if !ok {
		t.Fatal("expected a full-path match")
	}
	want := []string{"-std=gnu++20", "-I/repo/include"}
	if !reflect.DeepEqual(e.Arguments, want) {
		t.Errorf("arguments = %v, want %v", e.Arguments, want)
	}

	if _, ok := db.Lookup("foo.c"); !ok {
		t.Error("expected a suffix match on the bare file name")
	}
}

func TestLookup_AmbiguousSuffixFails(t *testing.T) {
	path := writeDB(t, `[
		{"file": "a/foo.c", "directory": "/repo", "arguments": ["clang", "a/foo.c"]},
		{"file": "b/foo.c", "directory": "/repo", "arguments": ["clang", "b/foo.c"]}
	]`)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := db.Lookup("foo.c"); ok {
		t.Error("an ambiguous suffix should not resolve")
	}
	if _, ok := db.Lookup("a/foo.c"); !ok {
		t.Error("a longer, unambiguous suffix should still resolve")
	}
}

func TestLoad_CommandStringIsTokenizedAndStripped(t *testing.T) {
	path := writeDB(t, `[
		{
			"file": "foo.cpp",
			"directory": "/repo",
			"command": "clang++ -MMD -MF foo.d -std=c++20 \"-DNAME=a b\" -o foo.o foo.cpp"
		}
	]`)
	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := db.Lookup("/repo/foo.cpp")
	if !ok {
		t.Fatal("expected a match")
	}
	want := []string{"-std=c++20", "-DNAME=a b"}
	if !reflect.DeepEqual(e.Arguments, want) {
		t.Errorf("arguments = %v, want %v", e.Arguments, want)
	}
}

func TestTokenizeCommand(t *testing.T) {
	got := tokenizeCommand(`clang -DX='a b' "y z" c\ d`)
	want := []string{"clang", "-DX=a b", "y z", "c d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokenizeCommand = %v, want %v", got, want)
	}
}

func TestStripNoise_DropsOutputAndDepGenAndSourceFile(t *testing.T) {
	got := stripNoise([]string{"clang", "-MD", "-MT", "foo.o", "-O2", "-o", "foo.o", "foo.c"})
	want := []string{"-O2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stripNoise = %v, want %v", got, want)
	}
}
