// Package schema describes what a reviewer is asked about each record.
//
// A Descriptor wraps exactly one Question variant. Each variant has a
// matching Value variant; Validate checks a Value against its Question.
// Both are closed sets: the unexported marker methods keep other packages
// from adding variants, so a type switch over the six cases is complete.
package schema

import (
	"fmt"
	"strings"
)

// QuestionType names a question variant. The values match Argilla's
// question setting types so they can travel to the server unchanged.
type QuestionType string

const (
	TypeLabel      QuestionType = "label_selection"
	TypeMultiLabel QuestionType = "multi_label_selection"
	TypeRating     QuestionType = "rating"
	TypeRanking    QuestionType = "ranking"
	TypeSpan       QuestionType = "span"
	TypeText       QuestionType = "text"
)

// AllTypes lists every question type in presentation order.
var AllTypes = []QuestionType{TypeLabel, TypeMultiLabel, TypeRating, TypeRanking, TypeSpan, TypeText}

// ParseQuestionType accepts the canonical names plus a few short aliases.
func ParseQuestionType(s string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "label_selection", "label", "single_label":
		return TypeLabel, nil
	case "multi_label_selection", "multi_label", "multilabel", "multi-label":
		return TypeMultiLabel, nil
	case "rating":
		return TypeRating, nil
	case "ranking":
		return TypeRanking, nil
	case "span":
		return TypeSpan, nil
	case "text":
		return TypeText, nil
	default:
		return "", &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown question type %q", s)}
	}
}

// Question is one of LabelQuestion, MultiLabelQuestion, RatingQuestion,
// RankingQuestion, SpanQuestion or TextQuestion.
type Question interface {
	Type() QuestionType
	// Validate reports whether v is a well-formed answer to this question.
	Validate(v Value) error
	isQuestion()
}

// LabelQuestion asks for exactly one label.
type LabelQuestion struct {
	Labels []string
}

// MultiLabelQuestion asks for one or more labels.
type MultiLabelQuestion struct {
	Labels []string
}

// RatingQuestion asks for an integer in [Min, Max].
type RatingQuestion struct {
	Min int
	Max int
}

// RankingQuestion asks for an ordering of (a subset of) Labels.
type RankingQuestion struct {
	Labels []string
}

// SpanQuestion asks for labelled character ranges of the record text.
type SpanQuestion struct {
	Labels       []string
	AllowOverlap bool
}

// TextQuestion asks for free text.
type TextQuestion struct {
	UseMarkdown bool
}

func (LabelQuestion) Type() QuestionType      { return TypeLabel }
func (MultiLabelQuestion) Type() QuestionType { return TypeMultiLabel }
func (RatingQuestion) Type() QuestionType     { return TypeRating }
func (RankingQuestion) Type() QuestionType    { return TypeRanking }
func (SpanQuestion) Type() QuestionType       { return TypeSpan }
func (TextQuestion) Type() QuestionType       { return TypeText }

func (LabelQuestion) isQuestion()      {}
func (MultiLabelQuestion) isQuestion() {}
func (RatingQuestion) isQuestion()     {}
func (RankingQuestion) isQuestion()    {}
func (SpanQuestion) isQuestion()       {}
func (TextQuestion) isQuestion()       {}

// RatingOptions returns Min..Max inclusive.
func (q RatingQuestion) RatingOptions() []int {
	out := make([]int, 0, q.Max-q.Min+1)
	for v := q.Min; v <= q.Max; v++ {
		out = append(out, v)
	}
	return out
}

// Descriptor is the question plus guidelines agreed for a whole session.
// It is immutable once the review loop starts.
type Descriptor struct {
	Question   Question
	Guidelines string
}

// Type returns the question type, or "" for a zero Descriptor.
func (d Descriptor) Type() QuestionType {
	if d.Question == nil {
		return ""
	}
	return d.Question.Type()
}

// Labels returns the label set of label-based questions, nil otherwise.
func (d Descriptor) Labels() []string {
	switch q := d.Question.(type) {
	case LabelQuestion:
		return q.Labels
	case MultiLabelQuestion:
		return q.Labels
	case RankingQuestion:
		return q.Labels
	case SpanQuestion:
		return q.Labels
	default:
		return nil
	}
}

// Validate checks v against the descriptor's question.
func (d Descriptor) Validate(v Value) error {
	if d.Question == nil {
		return &ConfigurationError{Field: "type", Reason: "no question configured"}
	}
	return d.Question.Validate(v)
}
