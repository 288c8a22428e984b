// Package ctrace is the aggregator (spec §4.15): it wires the
// foundation passes, the function filter, and every defect detector
// into one AnalysisResult, the way the teacher's internal/semantic
// Analyzer drives its own battery of passes into one error list.
package ctrace

import (
	"fmt"
	"sort"
	"time"

	"ctrace/internal/analysis/allocausage"
	"ctrace/internal/analysis/basereconstruction"
	"ctrace/internal/analysis/constparam"
	"ctrace/internal/analysis/dynamicalloca"
	"ctrace/internal/analysis/escape"
	"ctrace/internal/analysis/memintrinsic"
	"ctrace/internal/analysis/sizeminusk"
	"ctrace/internal/analysis/stackbuffer"
	"ctrace/internal/callgraph"
	"ctrace/internal/config"
	"ctrace/internal/diag"
	"ctrace/internal/dupcond"
	"ctrace/internal/filter"
	"ctrace/internal/funcattrs"
	"ctrace/internal/ir"
)

// AnalysisResult is the top-level output of one analyzeModule call: a
// copy of the config that produced it, the per-function summaries, and
// the ordered diagnostic list.
type AnalysisResult struct {
	Config      config.Config
	Functions   []diag.FunctionResult
	Diagnostics []diag.Diagnostic
	ElapsedMs   int64
}

// AnalyzeModule runs the full pipeline (pre-pass, filter, foundation
// passes, transitive stack usage, every detector, aggregation) over an
// already-acquired module. IR acquisition (parsing a .ll file or
// shelling out to a compiler) is the caller's job, per spec §1/§4.1.
func AnalyzeModule(m *ir.Module, cfg *config.Config, start time.Time) *AnalysisResult {
	funcattrs.Infer(m)

	flt := filter.New(cfg)
	shouldAnalyze := func(f *ir.Function) bool { return flt.ShouldAnalyze(f, m.SourceFile) }

	dl := m.DataLayout
	graph := callgraph.Build(m)
	locals := map[*ir.Function]callgraph.LocalFrame{}
	for _, f := range m.Functions {
		if !f.IsDecl {
			locals[f] = callgraph.ComputeLocalFrame(f, dl, cfg.Mode)
		}
	}
	usage := callgraph.ComputeGlobalStackUsage(graph, locals)

	infinite := map[*ir.Function]bool{}
	for _, f := range m.Functions {
		if f.IsDecl {
			continue
		}
		ir.BuildDominatorTree(f)
		if usage.Recursive[f] {
			infinite[f] = callgraph.DetectInfiniteSelfRecursion(f)
		}
	}

	sum := sizeminusk.BuildSummaries(m)
	lineCache := dupcond.NewLineCache()

	var diags []diag.Diagnostic

	diags = append(diags, stackOverflowDiagnostics(m, cfg, usage, infinite, shouldAnalyze)...)
	diags = append(diags, allocaDiagnostics(m, dl, usage.Recursive, infinite, shouldAnalyze)...)
	diags = append(diags, dynamicAllocaDiagnostics(m, shouldAnalyze)...)
	diags = append(diags, stackBufferDiagnostics(m, dl, shouldAnalyze)...)
	diags = append(diags, baseReconstructionDiagnostics(m, dl, shouldAnalyze)...)
	diags = append(diags, memIntrinsicDiagnostics(m, dl, shouldAnalyze)...)
	diags = append(diags, sizeMinusKDiagnostics(m, shouldAnalyze, sum)...)
	diags = append(diags, escapeDiagnostics(m, dl, shouldAnalyze)...)
	diags = append(diags, constParamDiagnostics(m, shouldAnalyze)...)
	diags = append(diags, dupCondDiagnostics(m, lineCache, shouldAnalyze)...)

	for i := range diags {
		diag.AssignID(&diags[i])
	}
	sortDiagnostics(diags)

	functions := buildFunctionResults(m, cfg, usage, infinite, shouldAnalyze)

	return &AnalysisResult{
		Config:      *cfg,
		Functions:   functions,
		Diagnostics: diags,
		ElapsedMs:   time.Since(start).Milliseconds(),
	}
}

// sortDiagnostics orders by (function, source line, rule id, message),
// the deterministic merge order spec §5 requires of any parallel
// implementation.
func sortDiagnostics(ds []diag.Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.FunctionName != b.FunctionName {
			return a.FunctionName < b.FunctionName
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Message < b.Message
	})
}

func locOf(f *ir.Function, inst ir.Instruction) diag.Location {
	loc := inst.Loc()
	if !loc.Valid() {
		loc = f.FirstDebugLine()
	}
	col := loc.Col
	if col == 0 {
		col = 1
	}
	file := loc.File
	if file == "" {
		file = f.DebugFile
	}
	return diag.Location{File: file, Line: loc.Line, Column: col, EndLine: loc.Line, EndColumn: col}
}

func funcLoc(f *ir.Function) diag.Location {
	loc := f.FirstDebugLine()
	col := loc.Col
	if col == 0 {
		col = 1
	}
	return diag.Location{File: loc.File, Line: loc.Line, Column: col, EndLine: loc.Line, EndColumn: col}
}

func buildFunctionResults(m *ir.Module, cfg *config.Config, usage callgraph.GlobalUsage, infinite map[*ir.Function]bool, shouldAnalyze func(*ir.Function) bool) []diag.FunctionResult {
	var out []diag.FunctionResult
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		est := usage.Total[f]
		loc := f.FirstDebugLine()
		col := loc.Col
		if col == 0 {
			col = 1
		}
		filePath := f.DebugFile
		if filePath == "" {
			filePath = m.SourceFile
		}
		localFrame := callgraph.ComputeLocalFrame(f, m.DataLayout, cfg.Mode)
		out = append(out, diag.FunctionResult{
			Name:                     f.Name,
			FilePath:                 filePath,
			Line:                     loc.Line,
			Column:                   col,
			LocalStack:               localFrame.Bytes,
			LocalStackUnknown:        localFrame.Unknown,
			MaxStack:                 est.Bytes,
			MaxStackUnknown:          est.Unknown,
			HasDynamicAlloca:         localFrame.HasDynamicAlloca,
			IsRecursive:              usage.Recursive[f],
			HasInfiniteSelfRecursion: infinite[f],
			ExceedsLimit:             !est.Unknown && est.Bytes > cfg.StackLimit,
		})
	}
	return out
}

func stackOverflowDiagnostics(m *ir.Module, cfg *config.Config, usage callgraph.GlobalUsage, infinite map[*ir.Function]bool, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range m.Functions {
		if f.IsDecl || !shouldAnalyze(f) {
			continue
		}
		est := usage.Total[f]
		if usage.Recursive[f] {
			out = append(out, diag.Diagnostic{
				Severity:     diag.Warning,
				RuleID:       diag.RuleRecursiveFunction,
				Location:     funcLoc(f),
				FunctionName: f.Name,
				Message:      fmt.Sprintf("%s participates in a call-graph recursion cycle", f.Name),
			})
		}
		if infinite[f] {
			out = append(out, diag.Diagnostic{
				Severity:     diag.Error,
				RuleID:       diag.RuleInfiniteRecursion,
				Location:     funcLoc(f),
				FunctionName: f.Name,
				Message:      fmt.Sprintf("%s recurses on itself with no base case that can terminate it", f.Name),
			})
		}
		if !est.Unknown && est.Bytes > cfg.StackLimit {
			out = append(out, diag.Diagnostic{
				Severity:     diag.Error,
				RuleID:       diag.RuleStackOverflow,
				Location:     funcLoc(f),
				FunctionName: f.Name,
				Message:      fmt.Sprintf("%s's transitive stack usage of %d bytes exceeds the %d byte limit", f.Name, est.Bytes, cfg.StackLimit),
			})
		}
	}
	return out
}

func allocaDiagnostics(m *ir.Module, dl *ir.DataLayout, recursive, infinite map[*ir.Function]bool, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	threshold := callgraph.LargeAllocThreshold(config.DefaultStackLimit)
	for _, issue := range allocausage.Analyze(m, dl, recursive, infinite, shouldAnalyze) {
		f := m.FindFunction(issue.FuncName)
		loc := locOf(f, issue.Inst)

		if issue.SizeIsConst && issue.SizeBytes > threshold {
			out = append(out, diag.Diagnostic{
				Severity: diag.Warning, RuleID: diag.RuleAllocaOversizedConstant, Location: loc,
				FunctionName: issue.FuncName,
				Message:      fmt.Sprintf("local array %q is %d bytes, over the large-allocation threshold of %d", issue.VarName, issue.SizeBytes, threshold),
				AliasPath:    []string{issue.VarName},
			})
		}
		if issue.UserControlled {
			out = append(out, diag.Diagnostic{
				Severity: diag.Warning, RuleID: diag.RuleAllocaUserControlled, Location: loc,
				FunctionName: issue.FuncName,
				Message:      fmt.Sprintf("size of local array %q is derived from a user-controlled value", issue.VarName),
				AliasPath:    []string{issue.VarName},
			})
			if issue.IsRecursive {
				out = append(out, diag.Diagnostic{
					Severity: diag.Warning, RuleID: diag.RuleAllocaRecursiveControlled, Location: loc,
					FunctionName: issue.FuncName,
					Message:      fmt.Sprintf("user-controlled allocation %q occurs in recursive function %s", issue.VarName, issue.FuncName),
					AliasPath:    []string{issue.VarName},
				})
			}
			if issue.IsInfiniteRecursive {
				out = append(out, diag.Diagnostic{
					Severity: diag.Error, RuleID: diag.RuleAllocaInfiniteRecursive, Location: loc,
					FunctionName: issue.FuncName,
					Message:      fmt.Sprintf("user-controlled allocation %q occurs in infinitely self-recursive function %s", issue.VarName, issue.FuncName),
					AliasPath:    []string{issue.VarName},
				})
			}
		}
	}
	return out
}

func dynamicAllocaDiagnostics(m *ir.Module, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range dynamicalloca.Analyze(m, shouldAnalyze) {
		fn := m.FindFunction(f.FuncName)
		out = append(out, diag.Diagnostic{
			Severity: diag.Info, RuleID: diag.RuleDynamicAlloca, Location: locOf(fn, f.Inst),
			FunctionName: f.FuncName,
			Message:      fmt.Sprintf("allocation of %q (%s) has a non-constant element count", f.VarName, f.ElemTypeStr),
			AliasPath:    []string{f.VarName},
		})
	}
	return out
}

func stackBufferDiagnostics(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	overflows, multi := stackbuffer.Analyze(m, dl, shouldAnalyze)
	for _, o := range overflows {
		fn := m.FindFunction(o.FuncName)
		rule := diag.RuleStackBufferOverflowUpper
		var msg string
		switch o.Kind {
		case stackbuffer.KindConstant:
			rule = diag.RuleStackBufferOverflowConstant
			msg = fmt.Sprintf("constant index %d is out of bounds for %q (size %d)", o.Index, o.AllocaVarName, o.ArraySize)
		case stackbuffer.KindLower:
			rule = diag.RuleStackBufferOverflowLower
			msg = fmt.Sprintf("index into %q may be negative", o.AllocaVarName)
		default:
			rule = diag.RuleStackBufferOverflowUpper
			msg = fmt.Sprintf("index into %q may reach or exceed its size of %d", o.AllocaVarName, o.ArraySize)
		}
		if o.IsWrite {
			msg += " (write)"
		}
		out = append(out, diag.Diagnostic{
			Severity: severityFor(o.Kind), RuleID: rule, Location: locOf(fn, o.Inst),
			FunctionName: o.FuncName, Message: msg, AliasPath: o.AliasPath,
		})
	}
	for _, ms := range multi {
		fn := m.FindFunction(ms.FuncName)
		out = append(out, diag.Diagnostic{
			Severity: diag.Info, RuleID: diag.RuleMultipleStoresInfo, Location: locOf(fn, ms.Alloca),
			FunctionName: ms.FuncName,
			Message:      fmt.Sprintf("%q is written through %d distinct store sites (%d distinct index expressions)", ms.AllocaVarName, ms.StoreCount, ms.IndexExprs),
			AliasPath:    []string{ms.AllocaVarName},
		})
	}
	return out
}

func severityFor(k stackbuffer.Kind) diag.Severity {
	if k == stackbuffer.KindConstant {
		return diag.Error
	}
	return diag.Warning
}

func baseReconstructionDiagnostics(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, fnd := range basereconstruction.Analyze(m, dl, shouldAnalyze) {
		fn := m.FindFunction(fnd.FuncName)
		rule := diag.RuleInvalidBaseReconstructionWarning
		sev := diag.Warning
		verb := "could not be verified"
		if fnd.Severity == basereconstruction.SeverityError {
			rule = diag.RuleInvalidBaseReconstructionError
			sev = diag.Error
			verb = "is out of bounds"
		}
		out = append(out, diag.Diagnostic{
			Severity: sev, RuleID: rule, Location: locOf(fn, fnd.Deref),
			FunctionName: fnd.FuncName,
			Message:      fmt.Sprintf("reconstructed base of %q at offset %d %s (allocation is %d bytes)", fnd.AllocaVarName, fnd.AppliedOffset, verb, fnd.AllocaSize),
			AliasPath:    []string{fnd.AllocaVarName},
		})
	}
	return out
}

func memIntrinsicDiagnostics(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range memintrinsic.Analyze(m, dl, shouldAnalyze) {
		fn := m.FindFunction(f.FuncName)
		out = append(out, diag.Diagnostic{
			Severity: diag.Error, RuleID: diag.RuleMemIntrinsicOverflow, Location: locOf(fn, f.Call),
			FunctionName: f.FuncName,
			Message:      fmt.Sprintf("%s writes %d bytes into %q, which is only %d bytes", f.Call.CalleeName(), f.RequestedLen, f.AllocaVarName, f.AllocaSize),
			AliasPath:    []string{f.AllocaVarName},
		})
	}
	return out
}

func sizeMinusKDiagnostics(m *ir.Module, shouldAnalyze func(*ir.Function) bool, sum sizeminusk.Summaries) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range sizeminusk.Analyze(m, shouldAnalyze, sum) {
		fn := m.FindFunction(f.FuncName)
		out = append(out, diag.Diagnostic{
			Severity: diag.Warning, RuleID: diag.RuleSizeMinusKWrite, Location: locOf(fn, f.Inst),
			FunctionName: f.FuncName,
			Message:      fmt.Sprintf("write length has the form size-%d; neither the pointer non-null-ness nor the bound could be proven (ptrNonNull=%v, sizeAboveK=%v)", f.K, f.PtrNonNull, f.SizeAboveK),
		})
	}
	return out
}

func escapeDiagnostics(m *ir.Module, dl *ir.DataLayout, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	rules := map[escape.Kind]diag.RuleID{
		escape.KindReturn:        diag.RuleStackPointerEscapeReturn,
		escape.KindStoreGlobal:   diag.RuleStackPointerEscapeStoreGlobal,
		escape.KindStoreUnknown:  diag.RuleStackPointerEscapeStoreUnknown,
		escape.KindCallArg:       diag.RuleStackPointerEscapeCallArg,
		escape.KindCallCallback:  diag.RuleStackPointerEscapeCallCallback,
	}
	for _, f := range escape.Analyze(m, dl, shouldAnalyze) {
		fn := m.FindFunction(f.FuncName)
		var msg string
		switch f.Kind {
		case escape.KindReturn:
			msg = fmt.Sprintf("address of local %q is returned", f.AllocaVarName)
		case escape.KindStoreGlobal:
			msg = fmt.Sprintf("address of local %q is stored into global %q", f.AllocaVarName, f.Target)
		case escape.KindStoreUnknown:
			msg = fmt.Sprintf("address of local %q is stored through an unidentified pointer", f.AllocaVarName)
		case escape.KindCallArg:
			msg = fmt.Sprintf("address of local %q is passed to capturing call %q", f.AllocaVarName, f.Target)
		case escape.KindCallCallback:
			msg = fmt.Sprintf("address of local %q is passed to an indirect call", f.AllocaVarName)
		}
		out = append(out, diag.Diagnostic{
			Severity: diag.Warning, RuleID: rules[f.Kind], Location: locOf(fn, f.Inst),
			FunctionName: f.FuncName, Message: msg, AliasPath: []string{f.AllocaVarName},
		})
	}
	return out
}

func constParamDiagnostics(m *ir.Module, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range constparam.Analyze(m, shouldAnalyze) {
		fn := m.FindFunction(f.FuncName)
		rule := diag.RuleConstParameterNotModifiedPointer
		msg := fmt.Sprintf("parameter %q (%s) is never written through; consider %s", f.ParamName, f.CurrentType, f.SuggestedType)
		switch f.Kind {
		case ir.ReferenceKind:
			rule = diag.RuleConstParameterNotModifiedReference
		case ir.RvalueReferenceKind:
			rule = diag.RuleConstParameterNotModifiedReferenceRvalue
			if f.AltSuggestion != "" {
				rule = diag.RuleConstParameterNotModifiedReferenceRvaluePreferValue
				msg += "; alternatively " + f.AltSuggestion
			}
		}
		if f.PointerOnlyConst {
			rule = diag.RuleConstParameterNotModifiedPointerConstOnly
		}
		out = append(out, diag.Diagnostic{
			Severity: diag.Info, RuleID: rule, Location: funcLoc(fn),
			FunctionName: f.FuncName, Message: msg,
		})
	}
	return out
}

func dupCondDiagnostics(m *ir.Module, cache *dupcond.LineCache, shouldAnalyze func(*ir.Function) bool) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, f := range dupcond.Analyze(m, cache, shouldAnalyze) {
		fn := m.FindFunction(f.FuncName)
		out = append(out, diag.Diagnostic{
			Severity: diag.Warning, RuleID: diag.RuleDuplicateIfCondition, Location: locOf(fn, f.Branch),
			FunctionName: f.FuncName,
			Message:      fmt.Sprintf("branch condition duplicates the dominating else-if condition at line %d", f.Dup.Loc().Line),
		})
	}
	return out
}
