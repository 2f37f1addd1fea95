// Package report renders build outcomes in machine-readable formats.
package report

import (
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"sort"

	coreapp "straits/internal/core/app"
	"straits/internal/core/errors"
	"straits/internal/engine/host"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

type sarifReport struct {
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
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

type ruleInfo struct {
	id, name, description string
}

var rulesByCode = map[errors.ErrorCode]ruleInfo{
	errors.CodeSyntax:      {"STR001", "SyntaxError", "The source could not be parsed."},
	errors.CodeDeclaration: {"STR002", "MisplacedDeclaration", "A `use traits` declaration is misplaced or has no expression."},
	errors.CodeScope:       {"STR003", "UndeclaredTraitAccess", "A `.*` access appears outside any declared scope."},
	errors.CodeMalformed:   {"STR004", "MalformedTraitAccess", "A `.*` access is not followed by a member name."},
}

var fallbackRule = ruleInfo{"STR000", "BuildFailure", "The unit could not be built."}

// GenerateSARIF builds a SARIF document with one result per failed unit.
// File URIs are relative to projectRoot.
func GenerateSARIF(projectRoot, toolVersion string, results []coreapp.FileResult) ([]byte, error) {
	used := make(map[string]ruleInfo)
	out := make([]sarifResult, 0)

	for _, res := range results {
		if res.Err == nil {
			continue
		}
		rule, message, line, column := classify(res.Err)
		used[rule.id] = rule

		loc := sarifLocation{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{
					URI:       relativeURI(projectRoot, res.Source),
					URIBaseID: "%SRCROOT%",
				},
			},
		}
		if line > 0 {
			loc.PhysicalLocation.Region = &sarifRegion{StartLine: line, StartColumn: column}
		}
		out = append(out, sarifResult{
			RuleID:    rule.id,
			Level:     "error",
			Message:   sarifMessage{Text: message},
			Locations: []sarifLocation{loc},
		})
	}

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	rules := make([]sarifRule, 0, len(ids))
	for _, id := range ids {
		info := used[id]
		rules = append(rules, sarifRule{
			ID:               info.id,
			Name:             info.name,
			ShortDescription: sarifMessage{Text: info.description},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		})
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "straits",
						Version: toolVersion,
						Rules:   rules,
					},
				},
				Results: out,
			},
		},
	}
	return json.MarshalIndent(report, "", "  ")
}

func classify(err error) (ruleInfo, string, int, int) {
	var rtErr *host.RuntimeError
	if stderrors.As(err, &rtErr) {
		return fallbackRule, rtErr.Error(), 0, 0
	}
	var domainErr *errors.DomainError
	if !stderrors.As(err, &domainErr) {
		return fallbackRule, err.Error(), 0, 0
	}
	rule, ok := rulesByCode[domainErr.Code]
	if !ok {
		rule = fallbackRule
	}
	_, line, column, _ := domainErr.Location()
	message := domainErr.Message
	if domainErr.Err != nil {
		message += ": " + domainErr.Err.Error()
	}
	return rule, message, line, column
}

// relativeURI converts an absolute file path to a forward-slash URI relative
// to projectRoot.
func relativeURI(projectRoot, filePath string) string {
	if projectRoot != "" && filepath.IsAbs(filePath) {
		if rel, err := filepath.Rel(projectRoot, filePath); err == nil {
			filePath = rel
		}
	}
	return filepath.ToSlash(filePath)
}
