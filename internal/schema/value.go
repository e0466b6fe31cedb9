package schema

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// Value is one of LabelValue, MultiLabelValue, RatingValue, RankingValue,
// SpanValue or TextValue.
type Value interface {
	Type() QuestionType
	isValue()
}

// LabelValue is a single chosen label.
type LabelValue string

// MultiLabelValue is a set of chosen labels. Order carries no meaning.
type MultiLabelValue []string

// RatingValue is a numeric rating.
type RatingValue int

// RankingValue is an ordering of option values, best first.
type RankingValue []string

// Span is a labelled half-open character range [Start, End) of the text.
type Span struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SpanValue is a list of labelled spans.
type SpanValue []Span

// TextValue is free text.
type TextValue string

func (LabelValue) Type() QuestionType      { return TypeLabel }
func (MultiLabelValue) Type() QuestionType { return TypeMultiLabel }
func (RatingValue) Type() QuestionType     { return TypeRating }
func (RankingValue) Type() QuestionType    { return TypeRanking }
func (SpanValue) Type() QuestionType       { return TypeSpan }
func (TextValue) Type() QuestionType       { return TypeText }

func (LabelValue) isValue()      {}
func (MultiLabelValue) isValue() {}
func (RatingValue) isValue()     {}
func (RankingValue) isValue()    {}
func (SpanValue) isValue()       {}
func (TextValue) isValue()       {}

// Sorted returns the labels in lexical order, for stable output.
func (m MultiLabelValue) Sorted() []string {
	out := append([]string(nil), m...)
	sort.Strings(out)
	return out
}

func wrongVariant(want QuestionType, v Value) error {
	if v == nil {
		return fmt.Errorf("%w: got no value, want %s", ErrWrongVariant, want)
	}
	return fmt.Errorf("%w: got %s, want %s", ErrWrongVariant, v.Type(), want)
}

func indexOf(labels []string) map[string]struct{} {
	m := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		m[l] = struct{}{}
	}
	return m
}

func (q LabelQuestion) Validate(v Value) error {
	lv, ok := v.(LabelValue)
	if !ok {
		return wrongVariant(TypeLabel, v)
	}
	if _, known := indexOf(q.Labels)[string(lv)]; !known {
		return valueErr(TypeLabel, "unknown label %q", string(lv))
	}
	return nil
}

func (q MultiLabelQuestion) Validate(v Value) error {
	mv, ok := v.(MultiLabelValue)
	if !ok {
		return wrongVariant(TypeMultiLabel, v)
	}
	if len(mv) == 0 {
		return valueErr(TypeMultiLabel, "no labels chosen")
	}
	return checkLabelList(TypeMultiLabel, q.Labels, mv)
}

func (q RatingQuestion) Validate(v Value) error {
	rv, ok := v.(RatingValue)
	if !ok {
		return wrongVariant(TypeRating, v)
	}
	if int(rv) < q.Min || int(rv) > q.Max {
		return valueErr(TypeRating, "%d outside %d..%d", int(rv), q.Min, q.Max)
	}
	return nil
}

func (q RankingQuestion) Validate(v Value) error {
	rv, ok := v.(RankingValue)
	if !ok {
		return wrongVariant(TypeRanking, v)
	}
	if len(rv) == 0 {
		return valueErr(TypeRanking, "empty ranking")
	}
	return checkLabelList(TypeRanking, q.Labels, rv)
}

func (q SpanQuestion) Validate(v Value) error {
	sv, ok := v.(SpanValue)
	if !ok {
		return wrongVariant(TypeSpan, v)
	}
	known := indexOf(q.Labels)
	for _, s := range sv {
		if _, ok := known[s.Label]; !ok {
			return valueErr(TypeSpan, "unknown label %q", s.Label)
		}
		if s.Start < 0 || s.End <= s.Start {
			return valueErr(TypeSpan, "bad range %d-%d", s.Start, s.End)
		}
	}
	if q.AllowOverlap {
		return nil
	}
	sorted := append(SpanValue(nil), sv...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return valueErr(TypeSpan, "spans %d-%d and %d-%d overlap",
				sorted[i-1].Start, sorted[i-1].End, sorted[i].Start, sorted[i].End)
		}
	}
	return nil
}

// CheckSpanBounds rejects spans of v that end past the last character of
// text. Values of other variants always pass.
func CheckSpanBounds(v Value, text string) error {
	sv, ok := v.(SpanValue)
	if !ok {
		return nil
	}
	n := utf8.RuneCountInString(text)
	for _, s := range sv {
		if s.End > n {
			return valueErr(TypeSpan, "span %s:%d-%d ends past the text (%d characters)", s.Label, s.Start, s.End, n)
		}
	}
	return nil
}

func (q TextQuestion) Validate(v Value) error {
	if _, ok := v.(TextValue); !ok {
		return wrongVariant(TypeText, v)
	}
	return nil
}

func checkLabelList(t QuestionType, labels, chosen []string) error {
	known := indexOf(labels)
	seen := make(map[string]struct{}, len(chosen))
	for _, l := range chosen {
		if _, ok := known[l]; !ok {
			return valueErr(t, "unknown label %q", l)
		}
		if _, dup := seen[l]; dup {
			return valueErr(t, "label %q repeated", l)
		}
		seen[l] = struct{}{}
	}
	return nil
}
