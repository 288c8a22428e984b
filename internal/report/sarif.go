package report

import (
	"encoding/json"
	"io"

	"ctrace/internal/ctrace"
	"ctrace/internal/diag"
)

// sarifLog is the minimal SARIF 2.1.0 shape spec §6 asks for: one run,
// one tool driver, one result per diagnostic, each with a single
// physicalLocation.
type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string               `json:"id"`
	ShortDescription sarifMessage         `json:"shortDescription"`
}

type sarifResult struct {
	RuleID    string                 `json:"ruleId"`
	Level     string                 `json:"level"`
	Message   sarifMessage           `json:"message"`
	Locations []sarifResultLocation  `json:"locations"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifResultLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           sarifRegion           `json:"region"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

// WriteSARIF renders the same result set as one SARIF log.
func WriteSARIF(w io.Writer, results []*ctrace.AnalysisResult, inputFiles []string) error {
	run := sarifRun{Tool: sarifTool{Driver: sarifDriver{Name: "ctrace-scan"}}}
	seenRules := map[string]bool{}

	for i, r := range results {
		input := ""
		if i < len(inputFiles) {
			input = inputFiles[i]
		}
		for _, d := range r.Diagnostics {
			if !seenRules[string(d.RuleID)] {
				seenRules[string(d.RuleID)] = true
				run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
					ID:               string(d.RuleID),
					ShortDescription: sarifMessage{Text: diag.Describe(d.RuleID)},
				})
			}
			run.Results = append(run.Results, toSARIFResult(d, input))
		}
	}

	out := sarifLog{Schema: "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json", Version: "2.1.0", Runs: []sarifRun{run}}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func toSARIFResult(d diag.Diagnostic, inputFallback string) sarifResult {
	file := fallbackFile(d.Location.File, inputFallback)
	res := sarifResult{
		RuleID:  string(d.RuleID),
		Level:   sarifLevel(d.Severity),
		Message: sarifMessage{Text: d.Message},
		Locations: []sarifResultLocation{{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: file},
				Region:           sarifRegion{StartLine: d.Location.Line, StartColumn: d.Location.Column},
			},
		}},
	}
	if len(d.AliasPath) > 0 {
		res.Properties = map[string]interface{}{
			sarifPropertyKey("AliasPath"): d.AliasPath,
		}
	}
	return res
}

// sarifLevel maps severity to a SARIF level: Info becomes "note",
// Warning/Error pass through as themselves (ReportSerialization.cpp's
// severityToSarifLevel, carried into SPEC_FULL.md).
func sarifLevel(s diag.Severity) string {
	if s == diag.Info {
		return "note"
	}
	return string(s)
}
