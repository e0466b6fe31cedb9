package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValue turns raw form input into a Value for q and validates it.
// raw holds the submitted strings: one radio/number/text entry, or one
// entry per checked box.
func ParseValue(q Question, raw []string) (Value, error) {
	if q == nil {
		return nil, &ConfigurationError{Field: "type", Reason: "no question configured"}
	}
	var (
		v   Value
		err error
	)
	switch q.(type) {
	case LabelQuestion:
		s := first(raw)
		if s == "" {
			return nil, valueErr(TypeLabel, "no label chosen")
		}
		v = LabelValue(s)
	case MultiLabelQuestion:
		v = MultiLabelValue(splitEntries(raw, ","))
	case RatingQuestion:
		s := first(raw)
		n, convErr := strconv.Atoi(s)
		if convErr != nil {
			return nil, valueErr(TypeRating, "%q is not a whole number", s)
		}
		v = RatingValue(n)
	case RankingQuestion:
		if len(raw) == 1 {
			v = ParseRanking(raw[0])
		} else {
			v = RankingValue(splitEntries(raw, ""))
		}
	case SpanQuestion:
		v, err = ParseSpans(strings.Join(raw, ";"))
		if err != nil {
			return nil, err
		}
	case TextQuestion:
		if len(raw) > 0 {
			v = TextValue(raw[0])
		} else {
			v = TextValue("")
		}
	default:
		return nil, fmt.Errorf("schema: unsupported question %T", q)
	}
	if err := q.Validate(v); err != nil {
		return nil, err
	}
	return v, nil
}

// ParseRanking reads "a > b > c" or "a, b, c" into a ranking, best first.
func ParseRanking(s string) RankingValue {
	sep := ","
	if strings.Contains(s, ">") {
		sep = ">"
	}
	var out RankingValue
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseSpans reads "LABEL:start-end" entries separated by ';' or ','.
func ParseSpans(s string) (SpanValue, error) {
	entries := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' || r == '\n' })
	out := SpanValue{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		colon := strings.LastIndex(e, ":")
		if colon <= 0 {
			return nil, valueErr(TypeSpan, "%q is not LABEL:start-end", e)
		}
		label := strings.TrimSpace(e[:colon])
		bounds := strings.SplitN(strings.TrimSpace(e[colon+1:]), "-", 2)
		if len(bounds) != 2 {
			return nil, valueErr(TypeSpan, "%q is not LABEL:start-end", e)
		}
		start, err1 := strconv.Atoi(strings.TrimSpace(bounds[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(bounds[1]))
		if err1 != nil || err2 != nil {
			return nil, valueErr(TypeSpan, "%q has non-numeric bounds", e)
		}
		out = append(out, Span{Label: label, Start: start, End: end})
	}
	return out, nil
}

func first(raw []string) string {
	if len(raw) == 0 {
		return ""
	}
	return strings.TrimSpace(raw[0])
}

// splitEntries trims raw entries, optionally splitting each on sep, and
// drops empties.
func splitEntries(raw []string, sep string) []string {
	var out []string
	for _, r := range raw {
		parts := []string{r}
		if sep != "" {
			parts = strings.Split(r, sep)
		}
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// InputString renders v the way ParseValue reads it back: rankings as
// "a > b", spans as "LABEL:start-end; ...". Nil renders as "".
func InputString(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case RankingValue:
		return strings.Join(x, " > ")
	case SpanValue:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = fmt.Sprintf("%s:%d-%d", s.Label, s.Start, s.End)
		}
		return strings.Join(parts, "; ")
	case MultiLabelValue:
		return strings.Join(x, ", ")
	default:
		return FlatString(v)
	}
}
