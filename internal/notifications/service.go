package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"loom/internal/config"
)

const userAgent = "Loom/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyRunStarted(ctx context.Context, projectName string) error
	NotifyRunCompleted(ctx context.Context, projectName string, degraded bool) error
	NotifyRunFailed(ctx context.Context, projectName string, err error) error
	NotifyDeployCompleted(ctx context.Context, projectName, frontendURL, backendURL string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, projectName string) error {
	data := payload{
		title:   "Loom - Run Started",
		message: fmt.Sprintf("Started pipeline run: %s", strings.TrimSpace(projectName)),
		tags:    []string{"loom", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, projectName string, degraded bool) error {
	projectName = strings.TrimSpace(projectName)
	data := payload{
		title:    "Loom - Run Complete",
		message:  fmt.Sprintf("Project generated: %s", projectName),
		tags:     []string{"loom", "run", "completed"},
		priority: "high",
	}
	if degraded {
		data.title = "Loom - Run Complete (degraded)"
		data.message = fmt.Sprintf("Project generated with failures: %s", projectName)
		data.priority = ""
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, projectName string, err error) error {
	detail := "unknown"
	if err != nil {
		detail = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    "Loom - Run Failed",
		message:  fmt.Sprintf("Run failed for %s: %s", strings.TrimSpace(projectName), detail),
		tags:     []string{"loom", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDeployCompleted(ctx context.Context, projectName, frontendURL, backendURL string) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Deployed: %s", strings.TrimSpace(projectName))
	if frontendURL != "" {
		fmt.Fprintf(&builder, "\nFrontend: %s", frontendURL)
	}
	if backendURL != "" {
		fmt.Fprintf(&builder, "\nBackend: %s", backendURL)
	}
	data := payload{
		title:   "Loom - Deployed",
		message: builder.String(),
		tags:    []string{"loom", "deploy", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Loom - Test",
		message:  "Notification system test",
		tags:     []string{"loom", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string) error          { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, bool) error  { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error    { return nil }
func (noopService) NotifyDeployCompleted(context.Context, string, string, string) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }

// Noop returns a notification service that discards everything.
func Noop() Service { return noopService{} }
