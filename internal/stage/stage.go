// Package stage defines the ordered steps of a per-video job and runs them
// with consistent logging, progress and cancellation handling.
package stage

import (
	"strings"
	"unicode"
)

// Name identifies a stage of the per-video job.
type Name string

const (
	Validate Name = "validate"
	Extract  Name = "extract"
	Analyze  Name = "analyze"
	Schedule Name = "schedule"
	Compose  Name = "compose"
	Export   Name = "export"
)

// Step is a stage and its share of overall job progress.
type Step struct {
	Name   Name
	Weight float64
}

// Plan is the ordered list of steps a job runs.
type Plan []Step

// AnalysisPlan covers the analyze command, which stops after detection.
func AnalysisPlan() Plan {
	return Plan{
		{Name: Validate, Weight: 5},
		{Name: Extract, Weight: 15},
		{Name: Analyze, Weight: 80},
	}
}

// ProcessPlan covers a full job.
func ProcessPlan() Plan {
	return Plan{
		{Name: Validate, Weight: 2},
		{Name: Extract, Weight: 8},
		{Name: Analyze, Weight: 35},
		{Name: Schedule, Weight: 25},
		{Name: Compose, Weight: 20},
		{Name: Export, Weight: 10},
	}
}

// Percent maps a fraction of work inside the named stage onto 0..100 for the
// whole plan. Unknown stages report 0.
func (p Plan) Percent(name Name, fraction float64) float64 {
	fraction = min(max(fraction, 0), 1)
	total := 0.0
	for _, step := range p {
		total += step.Weight
	}
	if total <= 0 {
		return 0
	}
	done := 0.0
	for _, step := range p {
		if step.Name == name {
			return (done + step.Weight*fraction) / total * 100
		}
		done += step.Weight
	}
	return 0
}

// Label turns a stage name into the title-cased text shown as current_step.
func Label(name Name) string {
	parts := strings.Fields(strings.ReplaceAll(string(name), "_", " "))
	for i, part := range parts {
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
