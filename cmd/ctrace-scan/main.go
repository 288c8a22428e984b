// Command ctrace-scan is the CLI driver (spec §4.1 step overview): for
// each input source file, acquire its IR, run the full analysis, and
// emit a report, exiting non-zero if any Error-severity diagnostic was
// found.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"ctrace/internal/compiledb"
	"ctrace/internal/config"
	"ctrace/internal/ctrace"
	"ctrace/internal/diag"
	"ctrace/internal/irsource"
	"ctrace/internal/report"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("ctrace-scan", flag.ContinueOnError)
	mode := fs.String("mode", "IR", "stack accounting mode: IR or ABI")
	stackLimit := fs.Uint64("stack-limit", config.DefaultStackLimit, "stack budget in bytes")
	onlyFiles := fs.String("only-files", "", "comma-separated file allowlist")
	onlyDirs := fs.String("only-dirs", "", "comma-separated directory allowlist")
	onlyFuncs := fs.String("only-functions", "", "comma-separated function-name allowlist")
	extraArgs := fs.String("extra-compile-args", "", "comma-separated extra compiler flags")
	configPath := fs.String("config", ".ctrace.yml", "optional YAML config file")
	compileDBPath := fs.String("compile-commands", "", "path to compile_commands.json")
	jsonOut := fs.String("json", "", "write JSON report to this path")
	sarifOut := fs.String("sarif", "", "write SARIF report to this path")
	compilerBin := fs.String("compiler", "", "compiler binary override (default clang/clang++)")
	dumpFilter := fs.Bool("dump-filter", false, "print the effective function filter and exit")

	if err := fs.Parse(argv); err != nil {
		return 2
	}
	inputs := fs.Args()
	if len(inputs) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ctrace-scan [flags] <file...>")
		return 2
	}

	cfg := config.Default()
	cfg.Mode = config.ParseMode(*mode)
	// Zero unless the flag overrides the default, so a config file's
	// stackLimit can apply; Finalize restores the default otherwise.
	cfg.StackLimit = 0
	if *stackLimit != config.DefaultStackLimit {
		cfg.StackLimit = *stackLimit
	}
	cfg.OnlyFilesList = splitCSV(*onlyFiles)
	cfg.OnlyDirsList = splitCSV(*onlyDirs)
	cfg.OnlyFunctionsList = splitCSV(*onlyFuncs)
	cfg.ExtraCompileArgs = splitCSV(*extraArgs)
	cfg.DumpFilter = *dumpFilter
	if err := cfg.LoadFile(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", *configPath, err)
		return 2
	}
	cfg.Finalize()

	if cfg.DumpFilter {
		fmt.Printf("mode: %s\n", cfg.Mode)
		fmt.Printf("stackLimit: %d\n", cfg.StackLimit)
		fmt.Printf("onlyFiles: %v\n", cfg.OnlyFilesList)
		fmt.Printf("onlyDirs: %v\n", cfg.OnlyDirsList)
		fmt.Printf("onlyFunctions: %v\n", cfg.OnlyFunctionsList)
		return 0
	}

	var db *compiledb.DB
	if *compileDBPath != "" {
		loaded, err := compiledb.Load(*compileDBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading compile database: %v\n", err)
			return 2
		}
		db = loaded
	}

	compiler := irsource.ExecCompiler{Bin: *compilerBin}

	var results []*ctrace.AnalysisResult
	hasError := false
	runStart := time.Now()

	for _, path := range inputs {
		extra := append([]string{}, cfg.ExtraCompileArgs...)
		if db != nil {
			if e, ok := db.Lookup(path); ok {
				extra = append(extra, e.Arguments...)
			}
		}

		start := time.Now()
		m, err := irsource.Acquire(path, extra, compiler)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			hasError = true
			continue
		}

		result := ctrace.AnalyzeModule(m, cfg, start)
		results = append(results, result)

		srcText, _ := os.ReadFile(path)
		reporter := diag.NewReporter(path, string(srcText))
		for _, d := range result.Diagnostics {
			fmt.Print(reporter.Format(d))
			if d.Severity == diag.Error {
				hasError = true
			}
		}
	}

	totalMs := time.Since(runStart).Milliseconds()

	if *jsonOut != "" {
		if err := writeTo(*jsonOut, func(w *os.File) error {
			return report.WriteJSON(w, results, inputs, totalMs)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "writing JSON report: %v\n", err)
			return 2
		}
	}
	if *sarifOut != "" {
		if err := writeTo(*sarifOut, func(w *os.File) error {
			return report.WriteSARIF(w, results, inputs)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "writing SARIF report: %v\n", err)
			return 2
		}
	}

	if hasError {
		color.Red("ctrace-scan: completed with errors")
		return 1
	}
	color.Green("ctrace-scan: completed")
	return 0
}

func writeTo(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
