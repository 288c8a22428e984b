// Package irsource is the IR-acquisition step (spec §4.1, step 1): given
// a path, either parse it directly as textual LLVM IR or hand it to the
// external "compile to IR" collaborator and parse that collaborator's
// output. The collaborator itself — the real C/C++ front end — is
// explicitly out of scope (spec §1); this package only owns the
// documented interface: which flags it is invoked with, and how its
// failure is reported.
package irsource

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"ctrace/internal/ir"
	"ctrace/internal/irtext"
)

// cppExtensions are the C++ source extensions spec §6 names; anything
// else recognized ends up compiled in C mode.
var cppExtensions = map[string]bool{
	".cpp": true, ".cc": true, ".cxx": true, ".c++": true, ".cp": true,
}

// Compiler is the black-box "compile to IR" collaborator: given a source
// file and a flag list, produce textual LLVM IR on stdout. The default
// implementation shells out to a real compiler binary; tests substitute
// a fake.
type Compiler interface {
	CompileToIR(sourcePath string, flags []string) (string, error)
}

// ExecCompiler invokes an external compiler binary (clang/clang++ by
// convention) as a subprocess.
type ExecCompiler struct {
	// Bin overrides the compiler binary; empty selects clang/clang++
	// by source extension.
	Bin string
}

func (c ExecCompiler) CompileToIR(sourcePath string, flags []string) (string, error) {
	bin := c.Bin
	if bin == "" {
		bin = "clang"
		if cppExtensions[strings.ToLower(filepath.Ext(sourcePath))] {
			bin = "clang++"
		}
	}
	args := append(append([]string{}, flags...), sourcePath)
	out, err := exec.Command(bin, args...).Output()
	if err != nil {
		return "", errors.Wrapf(err, "invoking %s to compile %s to IR", bin, sourcePath)
	}
	return string(out), nil
}

// buildFlags constructs the compile-to-IR flag sequence spec §6
// specifies, in order: emit-LLVM, textual, debug info, C++ mode when
// applicable, extraCompileArgs, then disable-value-name-discarding.
func buildFlags(sourcePath string, extraCompileArgs []string) []string {
	flags := []string{"-emit-llvm", "-S", "-g"}
	if cppExtensions[strings.ToLower(filepath.Ext(sourcePath))] {
		flags = append(flags, "-std=gnu++20")
	}
	flags = append(flags, extraCompileArgs...)
	flags = append(flags, "-Xclang", "-disable-llvm-passes=false", "-fno-discard-value-names")
	return flags
}

// Acquire produces a single in-memory module from path: parse directly
// if it is already textual IR (.ll), otherwise invoke compiler to
// produce IR text first.
func Acquire(path string, extraCompileArgs []string, compiler Compiler) (*ir.Module, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".ll" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading IR file %s", path)
		}
		return irtext.Parse(path, string(data))
	}

	if !isRecognizedSourceExt(ext) {
		return nil, errors.Errorf("unrecognized input extension %q for %s", ext, path)
	}

	text, err := compiler.CompileToIR(path, buildFlags(path, extraCompileArgs))
	if err != nil {
		return nil, err
	}
	m, err := irtext.Parse(path, text)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing compiler output for %s", path)
	}
	return m, nil
}

var recognizedExts = map[string]bool{
	".c": true, ".cpp": true, ".cc": true, ".cxx": true, ".c++": true, ".cp": true,
}

func isRecognizedSourceExt(ext string) bool {
	return recognizedExts[ext]
}
