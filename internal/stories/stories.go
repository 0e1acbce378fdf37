// Package stories defines the user-story representation produced by story
// generation and consumed by code-model extraction. Parsing is deliberately
// lenient: malformed lines still become stories, just with empty structured
// fields, so callers can decide whether to keep or drop them.
package stories

import (
	"regexp"
	"strings"
)

// UserStory is a single user story in the canonical
// "As a <actor>, I want <action> so that <benefit>" shape. Text always
// holds the original wording; the structured fields are empty when the
// text does not match the canonical shape.
type UserStory struct {
	Text    string `json:"text"`
	Actor   string `json:"actor,omitempty"`
	Action  string `json:"action,omitempty"`
	Benefit string `json:"benefit,omitempty"`
}

var storyPattern = regexp.MustCompile(`(?i)^as an? (.+?),\s*i want (?:to )?(.+?)(?:\s+so that (.+?))?[.!]?$`)

// Parse builds a UserStory from raw text. Text is trimmed; when it matches
// the canonical story shape, the actor, action, and benefit fields are
// populated. A non-matching line still yields a story with only Text set.
func Parse(text string) UserStory {
	trimmed := strings.TrimSpace(text)
	story := UserStory{Text: trimmed}
	match := storyPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return story
	}
	story.Actor = strings.TrimSpace(match[1])
	story.Action = strings.TrimSpace(match[2])
	story.Benefit = strings.TrimSpace(match[3])
	return story
}

// ParseAll parses each line of input, dropping empty lines.
func ParseAll(texts []string) []UserStory {
	parsed := make([]UserStory, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parsed = append(parsed, Parse(text))
	}
	return parsed
}

// WellFormed reports whether the story matched the canonical shape with a
// non-empty actor and action.
func (s UserStory) WellFormed() bool {
	return s.Actor != "" && s.Action != ""
}
