// Package report serializes one or more AnalysisResults into the two
// output shapes spec §6 defines: a JSON report and a SARIF 2.1.0 log.
// Both are clerical by design (spec §1 lists report serializers as
// "out of scope" for the analysis engine itself) but still live here so
// cmd/ctrace-scan has somewhere to hand its results.
package report

import (
	"encoding/json"
	"io"

	"github.com/iancoleman/strcase"

	"ctrace/internal/ctrace"
	"ctrace/internal/diag"
)

// Meta is the JSON report's top-level `meta` block (spec §6).
type Meta struct {
	Tool           string   `json:"tool"`
	InputFile      string   `json:"inputFile,omitempty"`
	InputFiles     []string `json:"inputFiles,omitempty"`
	Mode           string   `json:"mode"`
	StackLimit     uint64   `json:"stackLimit"`
	AnalysisTimeMs int64    `json:"analysisTimeMs"`
}

type jsonLocation struct {
	File       string `json:"file"`
	Function   string `json:"function"`
	StartLine  int    `json:"startLine"`
	StartCol   int    `json:"startColumn"`
	EndLine    int    `json:"endLine"`
	EndCol     int    `json:"endColumn"`
}

type jsonDetails struct {
	Message         string   `json:"message"`
	VariableAliasing []string `json:"variableAliasing"`
}

type jsonDiagnostic struct {
	ID       string       `json:"id"`
	Severity string       `json:"severity"`
	RuleID   string       `json:"ruleId"`
	Location jsonLocation `json:"location"`
	Details  jsonDetails  `json:"details"`
}

type jsonFunction struct {
	Name                     string  `json:"name"`
	File                     string  `json:"file"`
	Line                     int     `json:"line"`
	Column                   int     `json:"column"`
	LocalStack               uint64  `json:"localStack"`
	LocalStackUnknown        bool    `json:"localStackUnknown"`
	LocalStackLowerBound     *uint64 `json:"localStackLowerBound,omitempty"`
	MaxStack                 uint64  `json:"maxStack"`
	MaxStackUnknown          bool    `json:"maxStackUnknown"`
	MaxStackLowerBound       *uint64 `json:"maxStackLowerBound,omitempty"`
	HasDynamicAlloca         bool    `json:"hasDynamicAlloca"`
	IsRecursive              bool    `json:"isRecursive"`
	HasInfiniteSelfRecursion bool    `json:"hasInfiniteSelfRecursion"`
	ExceedsLimit             bool    `json:"exceedsLimit"`
}

type jsonReport struct {
	Meta        Meta             `json:"meta"`
	Functions   []jsonFunction   `json:"functions"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

// WriteJSON renders one or more per-file results into a single JSON
// report (spec §6's multi-file mode folds every file's functions and
// diagnostics into one array, with `meta.inputFiles` replacing the
// singular `inputFile` once more than one file is analyzed).
func WriteJSON(w io.Writer, results []*ctrace.AnalysisResult, inputFiles []string, analysisTimeMs int64) error {
	out := jsonReport{Meta: buildMeta(results, inputFiles, analysisTimeMs)}
	for i, r := range results {
		input := ""
		if i < len(inputFiles) {
			input = inputFiles[i]
		}
		for _, fr := range r.Functions {
			jf := toJSONFunction(fr)
			jf.File = fallbackFile(jf.File, input)
			out.Functions = append(out.Functions, jf)
		}
		for _, d := range r.Diagnostics {
			jd := toJSONDiagnostic(d)
			jd.Location.File = fallbackFile(jd.Location.File, input)
			out.Diagnostics = append(out.Diagnostics, jd)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func buildMeta(results []*ctrace.AnalysisResult, inputFiles []string, analysisTimeMs int64) Meta {
	m := Meta{Tool: "ctrace-scan", AnalysisTimeMs: analysisTimeMs}
	if len(results) > 0 {
		m.Mode = results[0].Config.Mode.String()
		m.StackLimit = results[0].Config.StackLimit
	}
	if len(inputFiles) == 1 {
		m.InputFile = inputFiles[0]
	} else {
		m.InputFiles = inputFiles
	}
	return m
}

func toJSONFunction(fr diag.FunctionResult) jsonFunction {
	out := jsonFunction{
		Name:                     fr.Name,
		File:                     fr.FilePath,
		Line:                     fr.Line,
		Column:                   fr.Column,
		LocalStack:               fr.LocalStack,
		LocalStackUnknown:        fr.LocalStackUnknown,
		MaxStack:                 fr.MaxStack,
		MaxStackUnknown:          fr.MaxStackUnknown,
		HasDynamicAlloca:         fr.HasDynamicAlloca,
		IsRecursive:              fr.IsRecursive,
		HasInfiniteSelfRecursion: fr.HasInfiniteSelfRecursion,
		ExceedsLimit:             fr.ExceedsLimit,
	}
	if v, ok := fr.LocalStackLowerBound(); ok {
		out.LocalStackLowerBound = &v
	}
	if v, ok := fr.MaxStackLowerBound(); ok {
		out.MaxStackLowerBound = &v
	}
	return out
}

func toJSONDiagnostic(d diag.Diagnostic) jsonDiagnostic {
	aliases := d.AliasPath
	if aliases == nil {
		aliases = []string{}
	}
	return jsonDiagnostic{
		ID:       d.ID,
		Severity: string(d.Severity),
		RuleID:   string(d.RuleID),
		Location: jsonLocation{
			File:      d.Location.File,
			Function:  d.FunctionName,
			StartLine: d.Location.Line,
			StartCol:  d.Location.Column,
			EndLine:   d.Location.EndLine,
			EndCol:    d.Location.EndColumn,
		},
		Details: jsonDetails{Message: d.Message, VariableAliasing: aliases},
	}
}

// fallbackFile mirrors the original serializer: a function/diagnostic
// with no per-entry path falls back to the single input file.
func fallbackFile(file, input string) string {
	if file != "" {
		return file
	}
	return input
}

// sarifPropertyKey demonstrates the one concrete job strcase plays in
// this package: SARIF's result.properties bag uses snake_case keys,
// converted from our camelCase Go-side names rather than hand-duplicated.
func sarifPropertyKey(name string) string {
	return strcase.ToSnake(name)
}
