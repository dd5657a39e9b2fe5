package conversation

import (
	"strings"
	"unicode"

	"github.com/crowdchat/parley/types"
)

// Violation tags produced by the default checker.
const (
	ViolationMinWords   = "min_words"
	ViolationAllCaps    = "all_caps"
	ViolationExactMatch = "exact_match"
	ViolationUnsafe     = "unsafe"
)

// AcceptabilityChecker screens the human side of a finished transcript for
// conversational misbehavior. The returned tags end up in the terminal
// record and, when non-empty, trigger the punitive qualification.
type AcceptabilityChecker interface {
	Check(dialog []types.Utterance) []string
}

// DefaultChecker flags too-short contributions, shouting, copy-pasted turns
// and a configurable blocked-word list.
type DefaultChecker struct {
	// MinAverageWords is the minimum average word count across the human's
	// utterances.
	MinAverageWords float64

	// BlockedWords are matched case-insensitively as whole words.
	BlockedWords []string
}

// NewDefaultChecker returns a checker with the standard thresholds.
func NewDefaultChecker() *DefaultChecker {
	return &DefaultChecker{MinAverageWords: 3}
}

// Check screens the human utterances and returns the flagged tags, in a
// stable order. An empty slice means no violations.
func (c *DefaultChecker) Check(dialog []types.Utterance) []string {
	var human []string
	for _, u := range dialog {
		if u.AgentIndex == types.HumanAgentIndex {
			human = append(human, u.Text)
		}
	}
	if len(human) == 0 {
		return nil
	}

	var violations []string
	if c.belowMinWords(human) {
		violations = append(violations, ViolationMinWords)
	}
	if anyAllCaps(human) {
		violations = append(violations, ViolationAllCaps)
	}
	if hasExactRepeats(human) {
		violations = append(violations, ViolationExactMatch)
	}
	if c.hasBlockedWords(human) {
		violations = append(violations, ViolationUnsafe)
	}
	return violations
}

func (c *DefaultChecker) belowMinWords(texts []string) bool {
	if c.MinAverageWords <= 0 {
		return false
	}
	total := 0
	for _, t := range texts {
		total += len(strings.Fields(t))
	}
	return float64(total)/float64(len(texts)) < c.MinAverageWords
}

// anyAllCaps looks for a run of three or more consecutive fully uppercase
// words. Single-word interjections are not shouting.
func anyAllCaps(texts []string) bool {
	for _, t := range texts {
		run := 0
		for _, word := range strings.Fields(t) {
			if isUpperWord(word) {
				run++
				if run >= 3 {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

func isUpperWord(word string) bool {
	hasLetter := false
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		hasLetter = true
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return hasLetter
}

func hasExactRepeats(texts []string) bool {
	seen := make(map[string]bool, len(texts))
	for _, t := range texts {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

func (c *DefaultChecker) hasBlockedWords(texts []string) bool {
	if len(c.BlockedWords) == 0 {
		return false
	}
	blocked := make(map[string]bool, len(c.BlockedWords))
	for _, w := range c.BlockedWords {
		blocked[strings.ToLower(w)] = true
	}
	for _, t := range texts {
		for _, word := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		}) {
			if blocked[word] {
				return true
			}
		}
	}
	return false
}

// NoopChecker never flags anything.
type NoopChecker struct{}

// Check always returns nil.
func (NoopChecker) Check(dialog []types.Utterance) []string { return nil }

// StaticChecker returns a fixed violation list; used by tests to force the
// punitive path.
type StaticChecker []string

// Check returns the static list.
func (s StaticChecker) Check(dialog []types.Utterance) []string { return s }
