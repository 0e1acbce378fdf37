package main

import (
	"errors"
	"testing"

	"loom/internal/services"
	"loom/internal/testsupport"
)

func TestBuildOrchestratorRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	cfg.LLM.APIKey = ""
	if _, err := buildOrchestrator(cfg, store, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want configuration error", err)
	}

	cfg.LLM.APIKey = "test-key"
	if _, err := buildOrchestrator(cfg, store, nil); err != nil {
		t.Fatalf("buildOrchestrator with key: %v", err)
	}
}

func TestResolveInput(t *testing.T) {
	tests := []struct {
		name      string
		flagValue string
		args      []string
		want      string
		wantErr   bool
	}{
		{name: "flag only", flagValue: "meeting.wav", want: "meeting.wav"},
		{name: "positional only", args: []string{"meeting.wav"}, want: "meeting.wav"},
		{name: "flag and matching positional", flagValue: "meeting.wav", args: []string{"meeting.wav"}, want: "meeting.wav"},
		{name: "flag and positional disagree", flagValue: "a.wav", args: []string{"b.wav"}, wantErr: true},
		{name: "neither", wantErr: true},
		{name: "blank flag", flagValue: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveInput(tt.flagValue, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("resolveInput(%q, %v) = %q, want error", tt.flagValue, tt.args, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveInput: %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveInput = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeriveProjectName(t *testing.T) {
	tests := []struct {
		input string
		flag  string
		want  string
	}{
		{input: "/tmp/Team Standup.wav", flag: "", want: "team-standup"},
		{input: "/tmp/meeting.wav", flag: "My App", want: "my-app"},
		{input: "/tmp/###.wav", flag: "", want: "project"},
	}
	for _, tt := range tests {
		if got := deriveProjectName(tt.input, tt.flag); got != tt.want {
			t.Errorf("deriveProjectName(%q, %q) = %q, want %q", tt.input, tt.flag, got, tt.want)
		}
	}
}
