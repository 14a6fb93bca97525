package improvements

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSuggestions = `{
  "style_improvements": ["Use shorter sentences", "Avoid passive voice"],
  "vocabulary_enhancements": [{"original": "good", "suggestions": ["excellent", "superb"]}],
  "structure_suggestions": ["Add a conclusion"],
  "strengths": ["Clear topic"]
}`

func TestParseSuggestions(t *testing.T) {
	t.Run("object form", func(t *testing.T) {
		s, err := ParseSuggestions(json.RawMessage(sampleSuggestions))
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, []string{"Use shorter sentences", "Avoid passive voice"}, s.Style)
		assert.Equal(t, []Vocabulary{{Original: "good", Suggestions: []string{"excellent", "superb"}}}, s.Vocabulary)
		assert.Equal(t, []string{"Add a conclusion"}, s.Structure)
		assert.Equal(t, []string{"Clear topic"}, s.Strengths)
	})

	t.Run("string encoded", func(t *testing.T) {
		encoded, err := json.Marshal(sampleSuggestions)
		require.NoError(t, err)

		s, err := ParseSuggestions(encoded)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Len(t, s.Style, 2)
		assert.Equal(t, "good", s.Vocabulary[0].Original)
	})

	t.Run("vocabulary map keeps document order", func(t *testing.T) {
		raw := `{"vocabulary_enhancements": {"walk": ["stroll", "amble"], "big": "enormous", "nice": []}}`
		s, err := ParseSuggestions(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Equal(t, []Vocabulary{
			{Original: "walk", Suggestions: []string{"stroll", "amble"}},
			{Original: "big", Suggestions: []string{"enormous"}},
			{Original: "nice", Suggestions: []string{}},
		}, s.Vocabulary)
	})

	t.Run("single strings become lists", func(t *testing.T) {
		raw := `{"strengths": "Good vocabulary", "style_improvements": null}`
		s, err := ParseSuggestions(json.RawMessage(raw))
		require.NoError(t, err)
		assert.Equal(t, []string{"Good vocabulary"}, s.Strengths)
		assert.Nil(t, s.Style)
		assert.Nil(t, s.Vocabulary)
	})

	t.Run("absent yields nothing", func(t *testing.T) {
		for _, raw := range []string{"", "null", `""`} {
			s, err := ParseSuggestions(json.RawMessage(raw))
			assert.NoError(t, err, raw)
			assert.Nil(t, s, raw)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := ParseSuggestions(json.RawMessage(`"{not json"`))
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := ParseSuggestions(json.RawMessage(`{"strengths": {"a": 1}}`))
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = ParseSuggestions(json.RawMessage(`{"vocabulary_enhancements": [{"suggestions": ["x"]}]}`))
		assert.ErrorIs(t, err, ErrMalformed)

		_, err = ParseSuggestions(json.RawMessage(`["not", "an", "object"]`))
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestAnalyze(t *testing.T) {
	body := `{
	  "text": "The cat sat. The cat ran.",
	  "improvements": {
	    "complexity_metrics": {
	      "word_count": 6, "sentence_count": 2,
	      "avg_words_per_sentence": 3.0, "avg_word_length": 3.2,
	      "vocabulary_diversity": 66.7,
	      "common_words": [["cat", 2]]
	    },
	    "improvement_suggestions": "{\"strengths\": [\"Concise\"]}"
	  }
	}`
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	a := Analyze(resp)
	require.NoError(t, a.ParseErr)
	assert.True(t, a.HasSuggestions())
	assert.Equal(t, 6, a.Metrics.WordCount)
	assert.Equal(t, 66.7, a.Metrics.VocabularyDiversity)
	assert.Equal(t, []WordCount{{Word: "cat", Count: 2}}, a.Metrics.CommonWords)
	assert.Equal(t, []string{"Concise"}, a.Suggestions.Strengths)

	t.Run("bad suggestions keep metrics", func(t *testing.T) {
		resp.Improvements.ImprovementSuggestions = json.RawMessage(`"oops"`)
		a := Analyze(resp)
		assert.ErrorIs(t, a.ParseErr, ErrMalformed)
		assert.False(t, a.HasSuggestions())
		assert.Equal(t, 2, a.Metrics.SentenceCount)
	})

	t.Run("pdf request passes suggestions back unchanged", func(t *testing.T) {
		raw := json.RawMessage(`"{\"strengths\": []}"`)
		resp.Improvements.ImprovementSuggestions = raw
		req := Analyze(resp).PDFRequest()

		out, err := json.Marshal(req)
		require.NoError(t, err)
		assert.Contains(t, string(out), `"improvement_suggestions":"{\"strengths\": []}"`)
		assert.Contains(t, string(out), `"common_words":[["cat",2]]`)
	})
}

func TestBlank(t *testing.T) {
	assert.True(t, Blank(""))
	assert.True(t, Blank("  \n\t"))
	assert.False(t, Blank("word"))
}
