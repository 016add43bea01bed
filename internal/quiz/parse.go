package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	TypeQuestion = "question"
	TypeFinal    = "final"
)

type Question struct {
	Number      int               `json:"question_number"`
	Total       int               `json:"total"`
	Text        string            `json:"question"`
	Options     map[string]string `json:"options"`
	Correct     string            `json:"correct"`
	Explanation string            `json:"explanation"`
}

// OptionKeys returns the option letters in order.
func (q Question) OptionKeys() []string {
	keys := make([]string, 0, len(q.Options))
	for key := range q.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type Final struct {
	Score   int    `json:"score"`
	Total   int    `json:"total"`
	Comment string `json:"comment"`
}

// Item is one parsed reply object. Exactly one field is set.
type Item struct {
	Question *Question
	Final    *Final
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Parse extracts quiz objects from a model reply. The reply may be a single object,
// an array, several objects back to back, or any of those inside a markdown fence.
func Parse(raw string) ([]Item, error) {
	text := strings.TrimSpace(raw)
	if match := fencedBlock.FindStringSubmatch(text); match != nil {
		text = strings.TrimSpace(match[1])
	}

	values, err := splitValues(text)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(values))
	for _, value := range values {
		item, err := decodeItem(value)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, errors.New("reply contains no quiz objects")
	}

	return items, nil
}

func splitValues(text string) ([]json.RawMessage, error) {
	decoder := json.NewDecoder(strings.NewReader(text))

	var values []json.RawMessage
	for {
		var value json.RawMessage
		if err := decoder.Decode(&value); err != nil {
			if errors.Is(err, io.EOF) {
				return values, nil
			}
			return nil, fmt.Errorf("reply is not quiz JSON: %w", err)
		}

		if bytes.HasPrefix(bytes.TrimSpace(value), []byte("[")) {
			var elements []json.RawMessage
			if err := json.Unmarshal(value, &elements); err != nil {
				return nil, fmt.Errorf("reply is not quiz JSON: %w", err)
			}
			values = append(values, elements...)
			continue
		}

		values = append(values, value)
	}
}

func decodeItem(value json.RawMessage) (Item, error) {
	kind := gjson.GetBytes(value, "type").String()

	switch kind {
	case TypeQuestion:
		var question Question
		if err := json.Unmarshal(value, &question); err != nil {
			return Item{}, fmt.Errorf("decode question: %w", err)
		}
		if question.Text == "" || len(question.Options) == 0 {
			return Item{}, errors.New("question has no text or options")
		}
		if _, ok := question.Options[question.Correct]; !ok {
			return Item{}, fmt.Errorf("question %d: correct option %q is not offered", question.Number, question.Correct)
		}
		return Item{Question: &question}, nil

	case TypeFinal:
		var final Final
		if err := json.Unmarshal(value, &final); err != nil {
			return Item{}, fmt.Errorf("decode final: %w", err)
		}
		return Item{Final: &final}, nil

	default:
		return Item{}, fmt.Errorf("unknown quiz object type %q", kind)
	}
}
