package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Intent
		ok    bool
	}{
		{"exact", "question-answering", QuestionAnswering, true},
		{"padded", "  summarization\n", Summarization, true},
		{"upper case", "QUIZ-GEN", Unknown, false},
		{"mixed case", "Question-Answering", Unknown, false},
		{"quoted", "\"flashcard-gen\"", Unknown, false},
		{"trailing period", "irrelevant.", Unknown, false},
		{"unknown label", "poetry", Unknown, false},
		{"empty", "", Unknown, false},
		{"unknown is not parseable", "unknown", Unknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestAll_RoundTripsLabels(t *testing.T) {
	assert.Len(t, All(), 7)
	for _, i := range All() {
		got, ok := Parse(i.String())
		assert.True(t, ok)
		assert.Equal(t, i, got)
		assert.NotEmpty(t, i.Description())
	}
}

func TestUnknown_IsZeroValue(t *testing.T) {
	var i Intent
	assert.Equal(t, Unknown, i)
	assert.Equal(t, "unknown", i.String())
	assert.Empty(t, i.Description())
}
