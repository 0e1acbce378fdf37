package stories_test

import (
	"testing"

	"loom/internal/stories"
)

func TestParseCanonicalStory(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		actor   string
		action  string
		benefit string
	}{
		{
			name:    "full story",
			text:    "As a user, I want to create new todo tasks so that I can track my work.",
			actor:   "user",
			action:  "create new todo tasks",
			benefit: "I can track my work",
		},
		{
			name:   "no benefit clause",
			text:   "As an admin, I want to delete tasks.",
			actor:  "admin",
			action: "delete tasks",
		},
		{
			name:   "without to",
			text:   "As a user, I want all my tasks visible",
			actor:  "user",
			action: "all my tasks visible",
		},
		{
			name:    "mixed case",
			text:    "AS A USER, I WANT TO VIEW TASKS SO THAT I STAY ORGANIZED",
			actor:   "USER",
			action:  "VIEW TASKS",
			benefit: "I STAY ORGANIZED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			story := stories.Parse(tc.text)
			if !story.WellFormed() {
				t.Fatalf("expected well-formed story, got %+v", story)
			}
			if story.Actor != tc.actor {
				t.Errorf("actor = %q, want %q", story.Actor, tc.actor)
			}
			if story.Action != tc.action {
				t.Errorf("action = %q, want %q", story.Action, tc.action)
			}
			if story.Benefit != tc.benefit {
				t.Errorf("benefit = %q, want %q", story.Benefit, tc.benefit)
			}
		})
	}
}

func TestParseMalformedKeepsText(t *testing.T) {
	story := stories.Parse("  build me a todo app please  ")
	if story.WellFormed() {
		t.Fatalf("expected malformed story, got %+v", story)
	}
	if story.Text != "build me a todo app please" {
		t.Errorf("text = %q, want trimmed original", story.Text)
	}
}

func TestParseAllDropsEmptyLines(t *testing.T) {
	parsed := stories.ParseAll([]string{
		"As a user, I want to add tasks so that nothing is forgotten.",
		"   ",
		"",
		"not a story",
	})
	if len(parsed) != 2 {
		t.Fatalf("len = %d, want 2", len(parsed))
	}
	if !parsed[0].WellFormed() {
		t.Errorf("first story should be well formed")
	}
	if parsed[1].WellFormed() {
		t.Errorf("second story should be malformed")
	}
}
