// Package notify implements the notifier: a local audio/buzzer alarm and a
// push sink (pushover/ntfy/webhook), both consulted against the pause state
// before dispatch. Grounded on original_source/core/notifiers/audio.py and
// original_source/core/notifiers/push.py, per SPEC_FULL.md §4.5.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// Player abstracts actual sound output so AudioNotifier can be exercised in
// tests without touching a real speaker or GPIO buzzer. A concrete host
// binding (ALSA/aplay subprocess, GPIO pin toggling) implements this against
// hardware; none ships here since the corpus carries no audio-output
// dependency (see DESIGN.md).
type Player interface {
	PlayTone(ctx context.Context, freqHz float64, duration time.Duration, volume int) error
	PlayBuzzer(ctx context.Context, onOff []time.Duration) error
}

// LogPlayer is the Player used when no hardware audio output is wired: it
// logs what would have played instead of touching any device, mirroring
// original_source/core/notifiers/audio.py's _play_software_beep fallback
// path for hosts without a speaker.
type LogPlayer struct {
	Logger *zap.Logger
}

func (p LogPlayer) PlayTone(ctx context.Context, freqHz float64, duration time.Duration, volume int) error {
	p.Logger.Info("alarm tone", zap.Float64("freq_hz", freqHz), zap.Duration("duration", duration), zap.Int("volume", volume))
	return nil
}

func (p LogPlayer) PlayBuzzer(ctx context.Context, onOff []time.Duration) error {
	p.Logger.Info("alarm buzzer pattern", zap.Int("segments", len(onOff)))
	return nil
}

// buzzerPattern maps severity to (on, off) duration pairs, matching
// original_source/core/notifiers/audio.py's _play_buzzer_pattern table.
var buzzerPattern = map[events.Severity][]time.Duration{
	events.SeverityCritical: {300 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond, 100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond},
	events.SeverityWarning:  {500 * time.Millisecond, 500 * time.Millisecond},
	events.SeverityInfo:     {200 * time.Millisecond, 800 * time.Millisecond},
}

var severityToneHz = map[events.Severity]float64{
	events.SeverityCritical: 1200,
	events.SeverityWarning:  800,
	events.SeverityInfo:     500,
}

// AudioNotifier plays a local alarm for firing alerts, escalating volume
// over time up to MaxDurationSeconds.
type AudioNotifier struct {
	cfg    config.AudioNotifierConfig
	player Player
	logger *zap.Logger

	mu      sync.Mutex
	stopFns map[string]func()
}

// NewAudioNotifier builds a local alarm notifier.
func NewAudioNotifier(cfg config.AudioNotifierConfig, player Player, logger *zap.Logger) *AudioNotifier {
	return &AudioNotifier{cfg: cfg, player: player, logger: logger, stopFns: make(map[string]func())}
}

// Notify starts (or restarts) the alarm loop for alert until it is stopped
// via Silence, MaxDurationSeconds elapses, or ctx is cancelled.
func (n *AudioNotifier) Notify(ctx context.Context, alert events.Alert) {
	if !n.cfg.Enabled {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	if existing, ok := n.stopFns[alert.AlertID]; ok {
		existing()
	}
	n.stopFns[alert.AlertID] = cancel
	n.mu.Unlock()

	go n.run(loopCtx, alert)
}

// Silence stops the alarm loop for the given alert id, used by the
// orchestrator's acknowledge control-inbox handler and by its notify loop
// when a resolved alert arrives.
func (n *AudioNotifier) Silence(alertID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if stop, ok := n.stopFns[alertID]; ok {
		stop()
		delete(n.stopFns, alertID)
	}
}

func (n *AudioNotifier) run(ctx context.Context, alert events.Alert) {
	deadline := time.Now().Add(time.Duration(n.cfg.MaxDurationSeconds * float64(time.Second)))
	volume := n.cfg.InitialVolume
	lastEscalation := time.Now()
	interval := time.Duration(n.cfg.EscalationIntervalSeconds * float64(time.Second))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if time.Now().After(deadline) {
			return
		}

		if err := n.playOnce(ctx, alert.Level, volume); err != nil {
			n.logger.Warn("audio notify failed", zap.Error(err))
			return
		}

		if n.cfg.EscalationEnabled && time.Since(lastEscalation) >= interval {
			volume += n.cfg.MaxVolume / 10
			if volume > n.cfg.MaxVolume {
				volume = n.cfg.MaxVolume
			}
			lastEscalation = time.Now()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (n *AudioNotifier) playOnce(ctx context.Context, level events.Severity, volume int) error {
	switch n.cfg.OutputType {
	case "buzzer":
		return n.player.PlayBuzzer(ctx, buzzerPattern[level])
	case "both":
		if err := n.player.PlayTone(ctx, severityToneHz[level], 500*time.Millisecond, volume); err != nil {
			return err
		}
		return n.player.PlayBuzzer(ctx, buzzerPattern[level])
	default:
		return n.player.PlayTone(ctx, severityToneHz[level], 500*time.Millisecond, volume)
	}
}
