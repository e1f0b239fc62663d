package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// retryDelays is the fixed retry ladder for push delivery, per
// SPEC_FULL.md §4.5 (1s, 5s, 15s; 4xx responses are not retried).
var retryDelays = []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}

// PushNotifier delivers alerts to pushover, ntfy, or a generic webhook via
// resty, deduplicating by alert id so a flapping condition does not spam
// the same recipient every tick. Grounded on
// original_source/core/notifiers/push.py.
type PushNotifier struct {
	cfg    config.PushNotifierConfig
	client *resty.Client
	logger *zap.Logger

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewPushNotifier builds a push notifier backed by a resty HTTP client.
func NewPushNotifier(cfg config.PushNotifierConfig, logger *zap.Logger) *PushNotifier {
	client := resty.New().SetTimeout(10 * time.Second)
	return &PushNotifier{cfg: cfg, client: client, logger: logger, sent: make(map[string]time.Time)}
}

func dedupKey(alert events.Alert) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s", alert.AlertID, alert.RuleName)))
	return hex.EncodeToString(sum[:])
}

// Notify delivers alert, honoring per-level filtering (AlertLevels) and
// alert-id dedup within a 60s window.
func (n *PushNotifier) Notify(ctx context.Context, alert events.Alert) error {
	if !n.cfg.Enabled {
		return nil
	}
	if !n.levelAllowed(alert.Level) {
		return nil
	}

	key := dedupKey(alert)
	n.mu.Lock()
	if last, ok := n.sent[key]; ok && time.Since(last) < 60*time.Second {
		n.mu.Unlock()
		return nil
	}
	n.sent[key] = time.Now()
	n.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= n.cfg.RetryCount; attempt++ {
		err := n.deliver(ctx, alert)
		if err == nil {
			return nil
		}
		lastErr = err
		if httpErr, ok := err.(*nonRetryableError); ok {
			return httpErr
		}
		if attempt < len(retryDelays) {
			select {
			case <-time.After(retryDelays[attempt]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (n *PushNotifier) levelAllowed(level events.Severity) bool {
	if len(n.cfg.AlertLevels) == 0 {
		return true
	}
	for _, l := range n.cfg.AlertLevels {
		if l == string(level) {
			return true
		}
	}
	return false
}

// pushoverPriority maps a severity to Pushover's -2..2 priority scale.
// Grounded on original_source/core/notifiers/push.py's priority_map.
func pushoverPriority(level events.Severity) string {
	switch level {
	case events.SeverityInfo:
		return "-1"
	case events.SeverityCritical:
		return "1"
	default:
		return "0"
	}
}

// ntfyPriority maps a severity to Ntfy's 1..5 priority scale.
func ntfyPriority(level events.Severity) string {
	switch level {
	case events.SeverityInfo:
		return "2"
	case events.SeverityCritical:
		return "5"
	default:
		return "3"
	}
}

// ntfyTags returns the Ntfy emoji tag string for a severity, per
// original_source/core/notifiers/push.py's _get_ntfy_tags.
func ntfyTags(level events.Severity) string {
	switch level {
	case events.SeverityInfo:
		return "information_source"
	case events.SeverityCritical:
		return "rotating_light,skull"
	default:
		return "warning"
	}
}

func (n *PushNotifier) pushoverURL() string {
	if n.cfg.PushoverURL != "" {
		return n.cfg.PushoverURL
	}
	return "https://api.pushover.net/1/messages.json"
}

type nonRetryableError struct{ status int }

func (e *nonRetryableError) Error() string { return fmt.Sprintf("non-retryable status %d", e.status) }

func (n *PushNotifier) deliver(ctx context.Context, alert events.Alert) error {
	req := n.client.R().SetContext(ctx)

	var resp *resty.Response
	var err error

	switch n.cfg.Provider {
	case "pushover":
		sound := "pushover"
		if alert.Level == events.SeverityCritical {
			sound = "siren"
		}
		resp, err = req.SetFormData(map[string]string{
			"token":    n.cfg.PushoverAPIToken,
			"user":     n.cfg.PushoverUserKey,
			"title":    "Nightwatch: " + string(alert.Level),
			"message":  alert.Message,
			"priority": pushoverPriority(alert.Level),
			"sound":    sound,
		}).Post(n.pushoverURL())

	case "ntfy":
		resp, err = req.SetBody(alert.Message).
			SetHeader("Title", "Nightwatch: "+string(alert.Level)).
			SetHeader("Priority", ntfyPriority(alert.Level)).
			SetHeader("Tags", ntfyTags(alert.Level)).
			Post(fmt.Sprintf("%s/%s", n.cfg.NtfyServer, n.cfg.NtfyTopic))

	default: // webhook
		body := map[string]interface{}{
			"alert_id": alert.AlertID,
			"rule":     alert.RuleName,
			"level":    alert.Level,
			"message":  alert.Message,
			"time":     alert.TriggeredAt,
		}
		req = req.SetBody(body)
		if n.cfg.WebhookMethod == "GET" {
			resp, err = req.Get(n.cfg.WebhookURL)
		} else {
			resp, err = req.Post(n.cfg.WebhookURL)
		}
	}

	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 && resp.StatusCode() < 500 {
		return &nonRetryableError{status: resp.StatusCode()}
	}
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("push delivery failed: status %d", resp.StatusCode())
	}
	return nil
}
