package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []Result {
	return []Result{
		{
			ExtractedText: "Teh cat sat.",
			ErrorTable:    []ErrorEntry{{IncorrectText: "Teh", CorrectText: "The", ErrorCategory: "Spelling"}},
			Image:         "a.jpg",
		},
		{
			ExtractedText: "She go home.",
			ErrorTable:    []ErrorEntry{{IncorrectText: "go", CorrectText: "goes", ErrorCategory: "Grammar"}},
			Image:         "b.jpg",
		},
		{
			ExtractedText: "No image here.",
			Image:         "",
		},
	}
}

func TestSet_With(t *testing.T) {
	s := NewSet(sampleResults())

	next, err := s.With(1, Patch{
		ExtractedText: "She goes home.",
		ErrorTable:    nil,
	})
	require.NoError(t, err)

	t.Run("patched entry is a fresh value", func(t *testing.T) {
		assert.NotSame(t, s[1], next[1])
		assert.Equal(t, "She goes home.", next[1].ExtractedText)
		assert.Empty(t, next[1].ErrorTable)
		assert.Equal(t, "b.jpg", next[1].Image, "image reference survives a patch")
	})

	t.Run("untouched entries keep their pointers", func(t *testing.T) {
		assert.Same(t, s[0], next[0])
		assert.Same(t, s[2], next[2])
	})

	t.Run("original set is not modified", func(t *testing.T) {
		assert.Equal(t, "She go home.", s[1].ExtractedText)
		assert.Len(t, s[1].ErrorTable, 1)
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := s.With(3, Patch{})
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
		_, err = s.With(-1, Patch{})
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	})
}

func TestSet_PatchDoesNotAliasInput(t *testing.T) {
	s := NewSet(sampleResults())
	table := []ErrorEntry{{IncorrectText: "x", CorrectText: "y", ErrorCategory: "Grammar"}}

	next, err := s.With(0, Patch{ExtractedText: "x", ErrorTable: table})
	require.NoError(t, err)

	table[0].IncorrectText = "mutated"
	assert.Equal(t, "x", next[0].ErrorTable[0].IncorrectText)
}

func TestResult_HasImage(t *testing.T) {
	assert.True(t, (&Result{Image: "a.png"}).HasImage())
	assert.False(t, (&Result{Image: ""}).HasImage())
	assert.False(t, (&Result{Image: "   "}).HasImage())
}

func TestErrorEntry_IsSpelling(t *testing.T) {
	assert.True(t, ErrorEntry{ErrorCategory: "Spelling"}.IsSpelling())
	assert.True(t, ErrorEntry{ErrorCategory: "spelling mistake"}.IsSpelling())
	assert.False(t, ErrorEntry{ErrorCategory: "Grammar"}.IsSpelling())
}

func TestSet_AtAndValues(t *testing.T) {
	s := NewSet(sampleResults())
	assert.Nil(t, s.At(5))
	assert.Equal(t, "a.jpg", s.At(0).Image)

	vals := s.Values()
	vals[0].ExtractedText = "changed"
	assert.Equal(t, "Teh cat sat.", s[0].ExtractedText)
}
