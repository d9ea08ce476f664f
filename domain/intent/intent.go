// Package intent defines the closed set of query intents a chat message can carry.
package intent

import "strings"

// Intent is the category assigned to a user query.
type Intent int

// Intent values. Unknown is the zero value and never produced by a successful
// classification.
const (
	Unknown Intent = iota
	Summarization
	SpecificSummarization
	QuestionAnswering
	GeneralChat
	FlashcardGeneration
	QuizGeneration
	Irrelevant
)

// CatalogVersion identifies the label set below. Bump it whenever labels or
// descriptions change so prompt caches are invalidated.
const CatalogVersion = "1"

type definition struct {
	label       string
	description string
}

var definitions = map[Intent]definition{
	Summarization: {
		label:       "summarization",
		description: "The user requests a summary of the entire video content.",
	},
	SpecificSummarization: {
		label:       "specific-summarization",
		description: "The user asks for a summary of a specific topic or part of the video.",
	},
	QuestionAnswering: {
		label:       "question-answering",
		description: "The user asks a specific question about the video content.",
	},
	GeneralChat: {
		label:       "general-chat",
		description: "The user engages in conversation related to the video, such as greetings or opinions, without a specific content question.",
	},
	FlashcardGeneration: {
		label:       "flashcard-gen",
		description: "The user asks to create flashcards from the video content.",
	},
	QuizGeneration: {
		label:       "quiz-gen",
		description: "The user asks to create a quiz or test questions from the video content.",
	},
	Irrelevant: {
		label:       "irrelevant",
		description: "The query is unrelated to the video content.",
	},
}

// All returns every classifiable intent in catalog order.
func All() []Intent {
	return []Intent{
		Summarization,
		SpecificSummarization,
		QuestionAnswering,
		GeneralChat,
		FlashcardGeneration,
		QuizGeneration,
		Irrelevant,
	}
}

// String returns the wire label, or "unknown".
func (i Intent) String() string {
	if d, ok := definitions[i]; ok {
		return d.label
	}
	return "unknown"
}

// Description returns the human-readable definition used in prompts.
func (i Intent) Description() string {
	return definitions[i].description
}

// Parse maps a model label to an Intent. Only surrounding whitespace is
// ignored; the label must otherwise match exactly.
func Parse(label string) (Intent, bool) {
	clean := strings.TrimSpace(label)
	for _, i := range All() {
		if definitions[i].label == clean {
			return i, true
		}
	}
	return Unknown, false
}
