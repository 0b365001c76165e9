// Package topic routes conversations to one of the manuals backing the
// assistant. Classification is keyword based: the assistant's own
// instructions tell users to name the tool, so a small fixed vocabulary per
// manual is enough.
package topic

import (
	"regexp"
	"strings"
)

// Topic identifies the manual a conversation is about.
type Topic string

const (
	// Unknown means no manual could be determined from the text.
	Unknown Topic = ""
	// Pensions is the ILO/PENSIONS user manual.
	Pensions Topic = "pensions"
	// Health is the ILO/HEALTH user manual.
	Health Topic = "health"
)

// All lists the known topics in classification priority order.
func All() []Topic {
	return []Topic{Pensions, Health}
}

func (t Topic) String() string {
	return string(t)
}

// Known reports whether t is a member of the closed topic set.
func (t Topic) Known() bool {
	switch t {
	case Pensions, Health:
		return true
	}
	return false
}

// Vocabulary patterns. Matched in priority order; first match wins.
var topicPatterns = []struct {
	topic   Topic
	pattern *regexp.Regexp
}{
	{Pensions, regexp.MustCompile(`(?i)\b(?:ilo[/_-])?pensions?\b`)},
	{Health, regexp.MustCompile(`(?i)\b(?:ilo[/_-])?health\b`)},
}

// Classify maps free text to a Topic, or Unknown when no vocabulary matches.
// It is pure and deterministic.
func Classify(text string) Topic {
	for _, tp := range topicPatterns {
		if tp.pattern.MatchString(text) {
			return tp.topic
		}
	}
	return Unknown
}

// A bare clarification is a short answer to a disambiguation prompt rather
// than a question in its own right: "pensions", "it's health", "the
// pensions one/tool/manual".
var clarificationPattern = regexp.MustCompile(
	`^(?:it'?s\s+|the\s+)?(?:ilo[/_-])?(?:pensions?|health)(?:\s+(?:one|tool|manual))?[.!]*$`,
)

// IsBareClarification reports whether text is one of the fixed short
// phrasings users give when answering "which tool is this about?".
func IsBareClarification(text string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	return clarificationPattern.MatchString(trimmed)
}
