package ctrace

import (
	"testing"
	"time"

	"ctrace/internal/config"
	"ctrace/internal/diag"
	"ctrace/internal/irtext"
)

const smallFnIR = `
define i32 @add(i32 %a, i32 %b) !dbg (1,1) {
entry:
  %sum = add i32 %a, %b !dbg (2,3)
  ret i32 %sum !dbg (3,3)
}
`

func TestAnalyzeModule_NoDiagnosticsUnderLimit(t *testing.T) {
	m, err := irtext.Parse("t.c", smallFnIR)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.Default().Finalize()
	res := AnalyzeModule(m, cfg, time.Now())

	if len(res.Functions) != 1 {
		t.Fatalf("expected 1 function result, got %d", len(res.Functions))
	}
	for _, d := range res.Diagnostics {
		if d.RuleID == diag.RuleStackOverflow {
			t.Errorf("unexpected stack overflow diagnostic for a tiny function: %+v", d)
		}
	}
}

func TestAnalyzeModule_OversizedLocalTriggersStackOverflow(t *testing.T) {
	src := `
define i32 @big(i32 %n) !dbg (1,1) {
entry:
  %buf = alloca [4096 x i8], name "buf" !dbg (2,3)
  ret i32 %n !dbg (3,3)
}
`
	m, err := irtext.Parse("t.c", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.Default()
	cfg.StackLimit = 128
	cfg.Finalize()
	res := AnalyzeModule(m, cfg, time.Now())

	found := false
	for _, d := range res.Diagnostics {
		if d.RuleID == diag.RuleStackOverflow && d.FunctionName == "big" {
			found = true
			if d.Severity != diag.Error {
				t.Errorf("stack overflow severity = %v, want Error", d.Severity)
			}
		}
	}
	if !found {
		t.Fatal("expected a StackOverflow diagnostic for the oversized local buffer")
	}
}

func TestAnalyzeModule_FilterExcludesFunction(t *testing.T) {
	m, err := irtext.Parse("t.c", smallFnIR)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.Default()
	cfg.OnlyFunctionsList = []string{"nonexistent"}
	cfg.Finalize()
	res := AnalyzeModule(m, cfg, time.Now())

	if len(res.Functions) != 0 {
		t.Errorf("expected the only-functions filter to exclude everything, got %d results", len(res.Functions))
	}
}

func TestAnalyzeModule_DiagnosticsAreSortedAndIDAssigned(t *testing.T) {
	m, err := irtext.Parse("t.c", smallFnIR)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := config.Default().Finalize()
	res := AnalyzeModule(m, cfg, time.Now())

	for _, d := range res.Diagnostics {
		if d.ID == "" {
			t.Error("expected every diagnostic to have an assigned ID")
		}
	}
	for i := 1; i < len(res.Diagnostics); i++ {
		a, b := res.Diagnostics[i-1], res.Diagnostics[i]
		if a.FunctionName > b.FunctionName {
			t.Errorf("diagnostics not sorted by function name: %q before %q", a.FunctionName, b.FunctionName)
		}
	}
}
