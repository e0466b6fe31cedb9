package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MarshalValue encodes v in the structural form used by every export and
// by the journal store:
//
//	label, text       JSON string
//	multi-label       JSON array of strings, sorted
//	ranking           JSON array of strings, best first
//	rating            JSON integer
//	span              JSON array of {"label","start","end"}
func MarshalValue(v Value) ([]byte, error) {
	switch x := v.(type) {
	case LabelValue:
		return json.Marshal(string(x))
	case MultiLabelValue:
		return json.Marshal(x.Sorted())
	case RatingValue:
		return json.Marshal(int(x))
	case RankingValue:
		return json.Marshal([]string(x))
	case SpanValue:
		if x == nil {
			x = SpanValue{}
		}
		return json.Marshal([]Span(x))
	case TextValue:
		return json.Marshal(string(x))
	case nil:
		return nil, fmt.Errorf("schema: marshal: nil value")
	default:
		return nil, fmt.Errorf("schema: marshal: unsupported value %T", v)
	}
}

// UnmarshalValue decodes data produced by MarshalValue for question type t.
func UnmarshalValue(t QuestionType, data []byte) (Value, error) {
	switch t {
	case TypeLabel:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		return LabelValue(s), nil
	case TypeMultiLabel:
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		return MultiLabelValue(ss), nil
	case TypeRating:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		return RatingValue(n), nil
	case TypeRanking:
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		return RankingValue(ss), nil
	case TypeSpan:
		var spans []Span
		if err := json.Unmarshal(data, &spans); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		if spans == nil {
			spans = []Span{}
		}
		return SpanValue(spans), nil
	case TypeText:
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("schema: unmarshal %s: %w", t, err)
		}
		return TextValue(s), nil
	default:
		return nil, fmt.Errorf("schema: unmarshal: unknown question type %q", t)
	}
}

// FlatString renders v as a single cell: labels verbatim, lists joined
// with "|", spans as LABEL:start-end joined with ";".
func FlatString(v Value) string {
	switch x := v.(type) {
	case LabelValue:
		return string(x)
	case MultiLabelValue:
		return strings.Join(x.Sorted(), "|")
	case RatingValue:
		return strconv.Itoa(int(x))
	case RankingValue:
		return strings.Join(x, "|")
	case SpanValue:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = fmt.Sprintf("%s:%d-%d", s.Label, s.Start, s.End)
		}
		return strings.Join(parts, ";")
	case TextValue:
		return string(x)
	default:
		return ""
	}
}
