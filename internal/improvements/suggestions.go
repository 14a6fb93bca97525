package improvements

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformed is returned when suggestions are present but unusable.
var ErrMalformed = errors.New("failed to parse improvement suggestions")

//go:embed suggestions.schema.json
var schemaJSON []byte

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("suggestions.json", bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to load suggestions schema: %w", err)
	}
	schema, err := compiler.Compile("suggestions.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile suggestions schema: %w", err)
	}
	return schema, nil
})

// Suggestions are the normalized writing-coach suggestions.
type Suggestions struct {
	Style      []string     `json:"style_improvements"`
	Vocabulary []Vocabulary `json:"vocabulary_enhancements"`
	Structure  []string     `json:"structure_suggestions"`
	Strengths  []string     `json:"strengths"`
}

// Vocabulary is a word with more precise alternatives.
type Vocabulary struct {
	Original    string   `json:"original"`
	Suggestions []string `json:"suggestions"`
}

// ParseSuggestions decodes improvement_suggestions, which the backend sends
// either as a JSON object or as a string holding one. Lists may arrive as a
// single string, and vocabulary_enhancements either as a list of
// {original, suggestions} or as a word → alternatives object.
// An absent or null value yields (nil, nil).
func ParseSuggestions(raw json.RawMessage) (*Suggestions, error) {
	doc, err := unwrap(raw)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	s := &Suggestions{}
	if s.Style, err = textList(fields["style_improvements"]); err != nil {
		return nil, err
	}
	if s.Structure, err = textList(fields["structure_suggestions"]); err != nil {
		return nil, err
	}
	if s.Strengths, err = textList(fields["strengths"]); err != nil {
		return nil, err
	}
	if s.Vocabulary, err = vocabulary(fields["vocabulary_enhancements"]); err != nil {
		return nil, err
	}
	return s, nil
}

// unwrap returns the suggestions document, decoding one level of string
// encoding if needed.
func unwrap(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '"' {
		return trimmed, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	inner := bytes.TrimSpace([]byte(s))
	if len(inner) == 0 {
		return nil, nil
	}
	return inner, nil
}

func textList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, text(item))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unexpected list value %T", ErrMalformed, v)
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func vocabulary(raw json.RawMessage) ([]Vocabulary, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var entries []struct {
			Original    string          `json:"original"`
			Suggestions json.RawMessage `json:"suggestions"`
		}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		out := make([]Vocabulary, 0, len(entries))
		for _, e := range entries {
			alts, err := textList(e.Suggestions)
			if err != nil {
				return nil, err
			}
			out = append(out, Vocabulary{Original: e.Original, Suggestions: alts})
		}
		return out, nil
	}

	// Object form. Keys are read in document order.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var out []Vocabulary
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		word, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		alts, err := textList(value)
		if err != nil {
			return nil, err
		}
		out = append(out, Vocabulary{Original: word, Suggestions: alts})
	}
	return out, nil
}
