package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"vise/internal/config"
)

const userAgent = "Vise/0.1.0"

// Service defines the notification surface exposed to daemon components.
type Service interface {
	NotifyJobQueued(ctx context.Context, title string) error
	NotifyJobCompleted(ctx context.Context, title string, reductionPercent float64, outputLarger bool) error
	NotifyJobFailed(ctx context.Context, title, reason string) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
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
	dedupWindow := time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint:       topic,
		client:         client,
		sendCompleted:  cfg.Notifications.Completed,
		sendFailed:     cfg.Notifications.Failed,
		sendQueue:      cfg.Notifications.Queue,
		dedupWindow:    dedupWindow,
		recentMessages: make(map[string]time.Time),
		now:            time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	sendCompleted bool
	sendFailed    bool
	sendQueue     bool

	dedupWindow    time.Duration
	mu             sync.Mutex
	recentMessages map[string]time.Time
	now            func() time.Time
}

func (n *ntfyService) NotifyJobQueued(ctx context.Context, title string) error {
	if !n.sendQueue {
		return nil
	}
	data := payload{
		title:   "Vise - Queued",
		message: fmt.Sprintf("Queued for compression: %s", strings.TrimSpace(title)),
		tags:    []string{"vise", "queue", "added"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, title string, reductionPercent float64, outputLarger bool) error {
	if !n.sendCompleted {
		return nil
	}
	title = strings.TrimSpace(title)
	var message string
	switch {
	case outputLarger:
		message = fmt.Sprintf("✅ Compressed: %s (output larger than source, kept anyway)", title)
	case reductionPercent > 0:
		message = fmt.Sprintf("✅ Compressed: %s (saved %.1f%%)", title, reductionPercent)
	default:
		message = fmt.Sprintf("✅ Compressed: %s", title)
	}
	data := payload{
		title:   "Vise - Complete",
		message: message,
		tags:    []string{"vise", "compress", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, title, reason string) error {
	if !n.sendFailed {
		return nil
	}
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	message := fmt.Sprintf("❌ Compression failed: %s", title)
	if reason != "" {
		message = fmt.Sprintf("%s\n%s", message, reason)
	}
	data := payload{
		title:    "Vise - Failed",
		message:  message,
		tags:     []string{"vise", "compress", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	if !n.sendQueue {
		return nil
	}
	data := payload{
		title:   "Vise - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d items", count),
		tags:    []string{"vise", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	if !n.sendQueue {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Vise - Queue Complete"
		message = fmt.Sprintf("Queue drained: %d items processed in %s", processed, durationText)
	} else {
		title = "Vise - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue drained: %d succeeded, %d failed in %s", processed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"vise", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.sendFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Vise - Error",
		message:  builder.String(),
		tags:     []string{"vise", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Vise - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"vise", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.isDuplicate(data) {
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
	if data.priority != "" && data.priority != "default" {
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

// isDuplicate records the message and reports whether an identical one was
// already sent inside the dedup window.
func (n *ntfyService) isDuplicate(data payload) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	key := data.title + "\x00" + data.message
	now := n.now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if sent, ok := n.recentMessages[key]; ok && now.Sub(sent) < n.dedupWindow {
		return true
	}
	for k, sent := range n.recentMessages {
		if now.Sub(sent) >= n.dedupWindow {
			delete(n.recentMessages, k)
		}
	}
	n.recentMessages[key] = now
	return false
}

type noopService struct{}

func (noopService) NotifyJobQueued(context.Context, string) error                       { return nil }
func (noopService) NotifyJobCompleted(context.Context, string, float64, bool) error     { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error               { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
