package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"ctrace/internal/config"
	"ctrace/internal/ctrace"
	"ctrace/internal/diag"
)

func sampleResult() *ctrace.AnalysisResult {
	return &ctrace.AnalysisResult{
		Config: config.Config{Mode: config.ModeIR, StackLimit: config.DefaultStackLimit},
		Functions: []diag.FunctionResult{
			{Name: "f", FilePath: "a.c", Line: 3, Column: 1, LocalStack: 32, MaxStack: 64},
			{Name: "g", MaxStackUnknown: true, MaxStack: 48},
		},
		Diagnostics: []diag.Diagnostic{
			{
				ID:           "abc123",
				Severity:     diag.Error,
				RuleID:       diag.RuleStackOverflow,
				Location:     diag.Location{Line: 10, Column: 2},
				FunctionName: "g",
				Message:      "stack usage exceeds limit",
			},
		},
	}
}

func TestWriteJSON_SingleFileUsesInputFile(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, []*ctrace.AnalysisResult{sampleResult()}, []string{"a.c"}, 42); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var out jsonReport
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Meta.InputFile != "a.c" {
		t.Errorf("meta.inputFile = %q, want a.c", out.Meta.InputFile)
	}
	if out.Meta.InputFiles != nil {
		t.Errorf("meta.inputFiles should be unset for a single file, got %v", out.Meta.InputFiles)
	}
	if out.Meta.Mode != "IR" {
		t.Errorf("meta.mode = %q, want IR", out.Meta.Mode)
	}
	if len(out.Functions) != 2 || len(out.Diagnostics) != 1 {
		t.Fatalf("unexpected function/diagnostic counts: %d/%d", len(out.Functions), len(out.Diagnostics))
	}

	// function g has no FilePath, so it falls back to the input file.
	var g jsonFunction
	for _, f := range out.Functions {
		if f.Name == "g" {
			g = f
		}
	}
	if g.File != "a.c" {
		t.Errorf("g.file = %q, want fallback a.c", g.File)
	}
	if g.MaxStackLowerBound == nil || *g.MaxStackLowerBound != 48 {
		t.Errorf("g.maxStackLowerBound = %v, want pointer to 48", g.MaxStackLowerBound)
	}

	// function f has a known MaxStack, so no lower-bound field should surface.
	var f jsonFunction
	for _, fn := range out.Functions {
		if fn.Name == "f" {
			f = fn
		}
	}
	if f.MaxStackLowerBound != nil {
		t.Errorf("f.maxStackLowerBound should be nil, got %v", f.MaxStackLowerBound)
	}

	if out.Diagnostics[0].Location.File != "a.c" {
		t.Errorf("diagnostic file = %q, want fallback a.c", out.Diagnostics[0].Location.File)
	}
}

func TestWriteJSON_MultiFileUsesInputFiles(t *testing.T) {
	var buf bytes.Buffer
	results := []*ctrace.AnalysisResult{sampleResult(), sampleResult()}
	if err := WriteJSON(&buf, results, []string{"a.c", "b.c"}, 7); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var out jsonReport
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Meta.InputFile != "" {
		t.Errorf("meta.inputFile should be empty for multi-file reports, got %q", out.Meta.InputFile)
	}
	if len(out.Meta.InputFiles) != 2 {
		t.Errorf("meta.inputFiles = %v, want 2 entries", out.Meta.InputFiles)
	}
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSARIF(&buf, []*ctrace.AnalysisResult{sampleResult()}, []string{"a.c"}); err != nil {
		t.Fatalf("WriteSARIF: %v", err)
	}
	var out sarifLog
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Version != "2.1.0" {
		t.Errorf("version = %q, want 2.1.0", out.Version)
	}
	if len(out.Runs) != 1 || len(out.Runs[0].Results) != 1 {
		t.Fatalf("expected 1 run with 1 result")
	}
	res := out.Runs[0].Results[0]
	if res.RuleID != string(diag.RuleStackOverflow) {
		t.Errorf("ruleId = %q, want %q", res.RuleID, diag.RuleStackOverflow)
	}
	if res.Level != "error" {
		t.Errorf("level = %q, want error", res.Level)
	}
	if len(out.Runs[0].Tool.Driver.Rules) != 1 {
		t.Errorf("expected exactly one deduplicated rule entry")
	}
}

func TestSARIFLevel_InfoMapsToNote(t *testing.T) {
	if got := sarifLevel(diag.Info); got != "note" {
		t.Errorf("sarifLevel(Info) = %q, want note", got)
	}
	if got := sarifLevel(diag.Warning); got != "warning" {
		t.Errorf("sarifLevel(Warning) = %q, want warning", got)
	}
}
