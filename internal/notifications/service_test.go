package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loom/internal/config"
	"loom/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func captureServer(t *testing.T, sink *[]captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		*sink = append(*sink, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
	}))
}

func serviceFor(topic string, timeout int) notifications.Service {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	cfg.Notifications.RequestTimeout = timeout
	return notifications.NewService(&cfg)
}

func TestNewServiceWithoutTopicIsNoop(t *testing.T) {
	service := serviceFor("", 10)

	// No endpoint is configured anywhere, so these must all succeed silently.
	ctx := context.Background()
	if err := service.NotifyRunStarted(ctx, "demo"); err != nil {
		t.Errorf("NotifyRunStarted: %v", err)
	}
	if err := service.NotifyRunFailed(ctx, "demo", errors.New("boom")); err != nil {
		t.Errorf("NotifyRunFailed: %v", err)
	}
	if err := service.TestNotification(ctx); err != nil {
		t.Errorf("TestNotification: %v", err)
	}
}

func TestNotifyLifecycleEvents(t *testing.T) {
	var got []captured
	server := captureServer(t, &got)
	defer server.Close()

	service := serviceFor(server.URL, 10)
	ctx := context.Background()

	if err := service.NotifyRunStarted(ctx, "meeting-app"); err != nil {
		t.Fatalf("NotifyRunStarted: %v", err)
	}
	if err := service.NotifyRunCompleted(ctx, "meeting-app", false); err != nil {
		t.Fatalf("NotifyRunCompleted: %v", err)
	}
	if err := service.NotifyRunCompleted(ctx, "meeting-app", true); err != nil {
		t.Fatalf("NotifyRunCompleted degraded: %v", err)
	}
	if err := service.NotifyRunFailed(ctx, "meeting-app", errors.New("transcription failed")); err != nil {
		t.Fatalf("NotifyRunFailed: %v", err)
	}
	if err := service.NotifyDeployCompleted(ctx, "meeting-app", "https://f.example", "https://b.example"); err != nil {
		t.Fatalf("NotifyDeployCompleted: %v", err)
	}

	if len(got) != 5 {
		t.Fatalf("requests = %d, want 5", len(got))
	}

	if got[0].title != "Loom - Run Started" || !strings.Contains(got[0].body, "meeting-app") {
		t.Errorf("started = %+v", got[0])
	}
	if got[1].priority != "high" {
		t.Errorf("completed priority = %q", got[1].priority)
	}
	if !strings.Contains(got[2].title, "degraded") {
		t.Errorf("degraded title = %q", got[2].title)
	}
	if !strings.Contains(got[3].body, "transcription failed") || got[3].priority != "high" {
		t.Errorf("failed = %+v", got[3])
	}
	if !strings.Contains(got[4].body, "https://f.example") || !strings.Contains(got[4].body, "https://b.example") {
		t.Errorf("deploy = %+v", got[4])
	}
}

func TestSendReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer server.Close()

	service := serviceFor(server.URL, 10)
	err := service.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "403") || !strings.Contains(err.Error(), "denied") {
		t.Errorf("err = %v", err)
	}
}
