// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, pages, logs and docs.
// Keep raw codes for JSON fields, map keys and equality comparisons.
package display

import "strings"

// --- Question types ---

var questionTypes = map[string]string{
	"label_selection":       "Single label",
	"multi_label_selection": "Multiple labels",
	"rating":                "Rating",
	"ranking":               "Ranking",
	"span":                  "Text spans",
	"text":                  "Free text",
}

var questionPrompts = map[string]string{
	"label_selection":       "Choose one label",
	"multi_label_selection": "Choose every label that applies",
	"rating":                "Pick a rating",
	"ranking":               "Order the options, best first",
	"span":                  "Mark spans as LABEL:start-end",
	"text":                  "Write your answer",
}

// QuestionType returns the human-readable name for a question type code.
// Unknown codes are returned as-is.
func QuestionType(code string) string {
	if name, ok := questionTypes[code]; ok {
		return name
	}
	return code
}

// QuestionTypeWithCode returns "Single label (label_selection)" format.
func QuestionTypeWithCode(code string) string {
	if name, ok := questionTypes[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// Prompt returns the instruction shown above the answer widget.
func Prompt(code string) string {
	if p, ok := questionPrompts[code]; ok {
		return p
	}
	return "Annotate this record"
}

// --- Upload stages ---

var uploadStages = map[string]string{
	"config":    "Configuration",
	"auth":      "Authentication",
	"workspace": "Workspace lookup",
	"dataset":   "Dataset setup",
	"records":   "Record upload",
}

// UploadStage returns the human-readable name for an upload stage.
func UploadStage(stage string) string {
	if name, ok := uploadStages[stage]; ok {
		return name
	}
	return stage
}

// --- Review state ---

// ReviewState returns "Reviewing" or "Complete" for the state codes, and
// title-cases anything else.
func ReviewState(code string) string {
	switch code {
	case "reviewing":
		return "Reviewing"
	case "complete":
		return "Complete"
	case "":
		return ""
	default:
		return strings.ToUpper(code[:1]) + code[1:]
	}
}

// LabelList joins labels for one-line display: "pos, neg, neutral".
// An empty list reads "(none)".
func LabelList(labels []string) string {
	if len(labels) == 0 {
		return "(none)"
	}
	return strings.Join(labels, ", ")
}
