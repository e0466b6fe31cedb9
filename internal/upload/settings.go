package upload

import (
	"encoding/json"
	"fmt"

	"tally/internal/argilla"
	"tally/internal/schema"
)

// Remote names of the single field and question every dataset gets.
const (
	TextFieldName  = "text"
	TextFieldTitle = "Text from the dataset"
	QuestionName   = "label"
)

// TextField is the field definition created on new datasets.
func TextField() argilla.Field {
	return argilla.Field{
		Name:     TextFieldName,
		Title:    TextFieldTitle,
		Required: true,
		Settings: argilla.FieldSettings{Type: "text"},
	}
}

// SettingsFor builds the remote question for a descriptor.
func SettingsFor(d schema.Descriptor) (argilla.Question, error) {
	q := argilla.Question{
		Name:        QuestionName,
		Title:       "Label",
		Description: d.Guidelines,
		Required:    true,
	}
	switch sq := d.Question.(type) {
	case schema.LabelQuestion:
		q.Settings = argilla.QuestionSettings{Type: string(schema.TypeLabel), Options: labelOptions(sq.Labels)}
	case schema.MultiLabelQuestion:
		q.Settings = argilla.QuestionSettings{Type: string(schema.TypeMultiLabel), Options: labelOptions(sq.Labels)}
	case schema.RatingQuestion:
		opts := make([]argilla.QuestionOption, 0, sq.Max-sq.Min+1)
		for _, v := range sq.RatingOptions() {
			opts = append(opts, argilla.QuestionOption{Value: v})
		}
		q.Title = "Rating"
		q.Settings = argilla.QuestionSettings{Type: string(schema.TypeRating), Options: opts}
	case schema.RankingQuestion:
		q.Title = "Ranking"
		q.Settings = argilla.QuestionSettings{Type: string(schema.TypeRanking), Options: labelOptions(sq.Labels)}
	case schema.SpanQuestion:
		overlap := sq.AllowOverlap
		q.Title = "Spans"
		q.Required = false
		q.Settings = argilla.QuestionSettings{
			Type:             string(schema.TypeSpan),
			Field:            TextFieldName,
			Options:          labelOptions(sq.Labels),
			AllowOverlapping: &overlap,
		}
	case schema.TextQuestion:
		md := sq.UseMarkdown
		q.Title = "Answer"
		q.Settings = argilla.QuestionSettings{Type: string(schema.TypeText), UseMarkdown: &md}
	default:
		return argilla.Question{}, fmt.Errorf("upload: unsupported question %T", d.Question)
	}
	return q, nil
}

func labelOptions(labels []string) []argilla.QuestionOption {
	out := make([]argilla.QuestionOption, len(labels))
	for i, l := range labels {
		out[i] = argilla.QuestionOption{Value: l, Text: l}
	}
	return out
}

type rankEntry struct {
	Value string `json:"value"`
	Rank  int    `json:"rank"`
}

// ResponseValue encodes v the way Argilla expects it in a response or
// suggestion. Rankings become [{"value","rank"}] with rank starting at 1.
func ResponseValue(v schema.Value) (json.RawMessage, error) {
	if r, ok := v.(schema.RankingValue); ok {
		entries := make([]rankEntry, len(r))
		for i, val := range r {
			entries[i] = rankEntry{Value: val, Rank: i + 1}
		}
		return json.Marshal(entries)
	}
	return schema.MarshalValue(v)
}
