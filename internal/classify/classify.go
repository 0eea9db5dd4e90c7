// Package classify separates a model's meta-commentary from the answer it
// gives the user.
//
// Models often open with a few lines of self-talk ("The user wants...",
// "Let me check...") before getting to the reply. Classify peels that prefix
// off with lexical heuristics so it can be shown apart from the answer.
package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// opener matches paragraphs or sentences that start with self-referential
// commentary rather than content addressed to the user. RE2's \s is ASCII
// only, so separators after interjections also accept Unicode spaces.
var opener = regexp.MustCompile(`(?i)^(the user (is|just|wants|said|asked|'s)|i (should|need to|will|can|realize|think|must|'m going|'ve)|let me \S|according to (my|the)|actually,?[\s\p{Z}]|wait,?[\s\p{Z}]|hmm,?[\s\p{Z}]|looking at (this|the)|based on|given that|this is (a|an|the)|so,?[\s\p{Z}]|ok(ay)?,?[\s\p{Z}])`)

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

// Result holds the two halves of a classified reply.
type Result struct {
	Reasoning string
	Answer    string
}

// HasReasoning reports whether any meta-commentary was split off.
func (r Result) HasReasoning() bool {
	return r.Reasoning != ""
}

// IsOpener reports whether s starts with a meta-commentary opener.
func IsOpener(s string) bool {
	return opener.MatchString(strings.TrimSpace(s))
}

// Classify splits text into reasoning and answer. It never returns an empty
// answer for non-empty input: when everything looks like commentary the
// whole text is treated as the answer.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Result{}
	}

	var reasoning, answer []string
	found := false
	for _, para := range splitParagraphs(trimmed) {
		if found {
			answer = append(answer, para)
			continue
		}
		if !opener.MatchString(para) {
			found = true
			answer = append(answer, para)
			continue
		}
		// A paragraph can open with commentary and finish with the answer.
		if r, a, ok := splitSentences(para); ok {
			reasoning = append(reasoning, r)
			answer = append(answer, a)
			found = true
			continue
		}
		reasoning = append(reasoning, para)
	}

	if len(reasoning) == 0 {
		return Result{Answer: trimmed}
	}
	if len(answer) == 0 {
		if r, a, ok := splitSentences(trimmed); ok {
			return Result{Reasoning: r, Answer: a}
		}
		return Result{Answer: trimmed}
	}
	return Result{
		Reasoning: strings.Join(reasoning, paragraphSep),
		Answer:    strings.Join(answer, paragraphSep),
	}
}

// splitSentences applies the opener rule sentence by sentence. ok is false
// unless both halves end up non-empty.
func splitSentences(text string) (reasoning, answer string, ok bool) {
	var r, a []string
	found := false
	for _, s := range Sentences(text) {
		if !found && opener.MatchString(s) {
			r = append(r, s)
			continue
		}
		found = true
		a = append(a, s)
	}
	if len(r) == 0 || len(a) == 0 {
		return "", "", false
	}
	return strings.Join(r, sentenceSep), strings.Join(a, sentenceSep), true
}

func splitParagraphs(text string) []string {
	raw := strings.Split(text, paragraphSep)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Sentences splits text after '.', '!' or '?' when followed by whitespace.
// Empty fragments are dropped.
func Sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = appendTrimmed(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = appendTrimmed(out, string(runes[start:]))
	}
	return out
}

func appendTrimmed(dst []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		dst = append(dst, s)
	}
	return dst
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
