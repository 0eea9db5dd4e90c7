package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		reasoning string
		answer    string
	}{
		{
			name:   "empty input",
			input:  "   \n\n ",
			answer: "",
		},
		{
			name:   "plain answer passes through trimmed",
			input:  "  Claude is installed and ready.\n",
			answer: "Claude is installed and ready.",
		},
		{
			name:      "leading paragraph of commentary",
			input:     "The user wants help.\n\nHere is how to launch a tool: run /install then /run.",
			reasoning: "The user wants help.",
			answer:    "Here is how to launch a tool: run /install then /run.",
		},
		{
			name:      "single paragraph falls back to sentences",
			input:     "Let me check. The tool is now running.",
			reasoning: "Let me check.",
			answer:    "The tool is now running.",
		},
		{
			name:      "several commentary paragraphs",
			input:     "The user asked about tools.\n\nI should call list_tools first.\n\nYou have claude and aider installed.",
			reasoning: "The user asked about tools.\n\nI should call list_tools first.",
			answer:    "You have claude and aider installed.",
		},
		{
			name:      "answer content is never reclassified",
			input:     "Hmm, let me look.\n\nHere are your tools.\n\nSo, that's everything installed.",
			reasoning: "Hmm, let me look.",
			answer:    "Here are your tools.\n\nSo, that's everything installed.",
		},
		{
			name:      "commentary paragraph that ends with the answer",
			input:     "Okay, the user wants status. Everything is healthy!\n\nRun /status for details.",
			reasoning: "Okay, the user wants status.",
			answer:    "Everything is healthy!\n\nRun /status for details.",
		},
		{
			name:      "non-breaking space after an interjection",
			input:     "Okay,\u00a0the user wants status. Everything is healthy!",
			reasoning: "Okay,\u00a0the user wants status.",
			answer:    "Everything is healthy!",
		},
		{
			name:   "everything looks like commentary",
			input:  "Hmm, not sure.\n\nLet me think about it.",
			answer: "Hmm, not sure.\n\nLet me think about it.",
		},
		{
			name:      "case insensitive openers",
			input:     "ACTUALLY, I was wrong. Gemini needs an API key.",
			reasoning: "ACTUALLY, I was wrong.",
			answer:    "Gemini needs an API key.",
		},
		{
			name:   "opener must be anchored",
			input:  "Tools you asked about: the user is you.",
			answer: "Tools you asked about: the user is you.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.input)
			assert.Equal(t, tt.reasoning, got.Reasoning)
			assert.Equal(t, tt.answer, got.Answer)
		})
	}
}

func TestClassifyNeverSwallowsReply(t *testing.T) {
	inputs := []string{
		"I think so.",
		"Wait, what?",
		"The user is asking.\n\nThe user's question is unclear.",
		"Based on the docs.\n\nAccording to the docs.\n\nGiven that it works.",
		"ok",
	}
	for _, in := range inputs {
		got := Classify(in)
		require.NotEmpty(t, got.Answer, "input %q", in)
	}
}

func TestClassifyIdempotentOnAnswer(t *testing.T) {
	inputs := []string{
		"Installed tools:\n\n- claude\n- aider",
		"The user wants help.\n\nHere is how to launch a tool: run /install then /run.",
		"Let me check. The tool is now running.",
	}
	for _, in := range inputs {
		first := Classify(in)
		second := Classify(first.Answer)
		assert.Empty(t, second.Reasoning, "input %q", in)
		assert.Equal(t, first.Answer, second.Answer, "input %q", in)
	}
}

func TestSentences(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"One. Two! Three? Four", []string{"One.", "Two!", "Three?", "Four"}},
		{"Version 1.2 is out. Done.", []string{"Version 1.2 is out.", "Done."}},
		{"Trailing.   ", []string{"Trailing."}},
		{"Line one.\n\nLine two.", []string{"Line one.", "Line two."}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sentences(tt.input), "input %q", tt.input)
	}
}

func TestIsOpener(t *testing.T) {
	assert.True(t, IsOpener("  I should run it"))
	assert.True(t, IsOpener("Looking at the output"))
	assert.False(t, IsOpener("Sorry, that failed"))
	assert.False(t, IsOpener("Let me"))
	assert.True(t, IsOpener("Hmm,\u00a0right"))
	assert.True(t, IsOpener("Wait\u2009what"))
	assert.False(t, IsOpener("Hmmm"))
}
