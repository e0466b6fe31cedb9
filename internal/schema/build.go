package schema

import (
	"fmt"
	"strings"
)

// DefaultGuidelines is shown when the user leaves the guidelines empty.
const DefaultGuidelines = "Provide appropriate labels for the given data."

// Default rating range.
const (
	DefaultRatingMin = 1
	DefaultRatingMax = 5
)

// Config is the user-entered question configuration.
type Config struct {
	Type         QuestionType
	Labels       []string
	RatingMin    int
	RatingMax    int
	AllowOverlap bool
	Guidelines   string
}

// Build validates cfg and produces the session Descriptor.
// Labels are trimmed and deduplicated in order before validation.
func Build(cfg Config) (Descriptor, error) {
	labels := normalizeLabels(cfg.Labels)
	guidelines := strings.TrimSpace(cfg.Guidelines)
	if guidelines == "" {
		guidelines = DefaultGuidelines
	}

	var q Question
	switch cfg.Type {
	case TypeLabel:
		if len(labels) == 0 {
			return Descriptor{}, &ConfigurationError{Field: "labels", Reason: "a label question needs at least one label"}
		}
		q = LabelQuestion{Labels: labels}
	case TypeMultiLabel:
		if len(labels) == 0 {
			return Descriptor{}, &ConfigurationError{Field: "labels", Reason: "a multi-label question needs at least one label"}
		}
		q = MultiLabelQuestion{Labels: labels}
	case TypeRating:
		lo, hi := cfg.RatingMin, cfg.RatingMax
		if lo == 0 && hi == 0 {
			lo, hi = DefaultRatingMin, DefaultRatingMax
		}
		if lo < 0 || hi > 10 || lo >= hi {
			return Descriptor{}, &ConfigurationError{Field: "rating", Reason: fmt.Sprintf("range %d..%d must satisfy 0 <= min < max <= 10", lo, hi)}
		}
		q = RatingQuestion{Min: lo, Max: hi}
	case TypeRanking:
		if len(labels) < 2 {
			return Descriptor{}, &ConfigurationError{Field: "labels", Reason: "a ranking question needs at least two options"}
		}
		q = RankingQuestion{Labels: labels}
	case TypeSpan:
		if len(labels) == 0 {
			return Descriptor{}, &ConfigurationError{Field: "labels", Reason: "a span question needs at least one label"}
		}
		q = SpanQuestion{Labels: labels, AllowOverlap: cfg.AllowOverlap}
	case TypeText:
		q = TextQuestion{}
	case "":
		return Descriptor{}, &ConfigurationError{Field: "type", Reason: "question type is required"}
	default:
		return Descriptor{}, &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown question type %q", cfg.Type)}
	}
	return Descriptor{Question: q, Guidelines: guidelines}, nil
}

// SplitLabels splits a comma- or newline-separated label list.
func SplitLabels(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	return normalizeLabels(parts)
}

func normalizeLabels(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// ConfigOf reverses Build, for persisting a descriptor.
func ConfigOf(d Descriptor) Config {
	cfg := Config{Type: d.Type(), Labels: d.Labels(), Guidelines: d.Guidelines}
	switch q := d.Question.(type) {
	case RatingQuestion:
		cfg.RatingMin, cfg.RatingMax = q.Min, q.Max
	case SpanQuestion:
		cfg.AllowOverlap = q.AllowOverlap
	}
	return cfg
}
