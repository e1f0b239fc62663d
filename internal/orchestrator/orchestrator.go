// Package orchestrator owns process lifecycle: wiring detectors, the fusion
// engine, the alert engine, and notifiers together over the bus; health
// reporting; pause-state; and the control inbox (pause/resume/acknowledge/
// resolve/test_alert/inject_anomaly). Grounded on
// original_source/core/orchestrator.py and SPEC_FULL.md §4.6.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/alert"
	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/config"
	"github.com/buzzwordmojo/nightwatch/internal/detectors"
	"github.com/buzzwordmojo/nightwatch/internal/events"
	"github.com/buzzwordmojo/nightwatch/internal/fusion"
	"github.com/buzzwordmojo/nightwatch/internal/notify"
)

// ControlMessage is the shape of messages accepted on bus.TopicControl.
type ControlMessage struct {
	Action        string // pause | resume | acknowledge | resolve | test_alert | inject_anomaly
	RuleName      string
	AlertID       string // targets acknowledge/resolve at one specific fired alert
	PauseMinutes  int
	Severity      string
	AnomalyKind   string
	AnomalyForSec float64
}

// Anomaly injectors (e.g. the mock sensor) register themselves so the
// control inbox can route inject_anomaly requests without the orchestrator
// depending on the mock package directly.
type AnomalyInjector interface {
	InjectAnomaly(kind string, duration time.Duration)
}

// DetectorHealth is a point-in-time reporting snapshot for one detector.
type DetectorHealth struct {
	Name       string
	Status     detectors.Status
	LastUpdate time.Time
}

// SystemStatus is the single aggregate status derived from every
// component's current health, per spec.md §7: users see one of
// {online, degraded, error} plus the set of active alerts.
type SystemStatus string

const (
	SystemOnline   SystemStatus = "online"
	SystemDegraded SystemStatus = "degraded"
	SystemError    SystemStatus = "error"
)

// Orchestrator is the top-level process supervisor.
type Orchestrator struct {
	cfg    *config.Config
	bus    *bus.Bus
	logger *zap.Logger

	fusion *fusion.Engine
	alert  *alert.Engine
	audio  *notify.AudioNotifier
	push   *notify.PushNotifier

	detectors []*detectors.Base
	injector  AnomalyInjector

	mu             sync.Mutex
	pause          events.PauseState
	offlineAlerted map[string]bool // detector name -> synthetic offline alert already fired
}

// New wires every component from configuration; detectorBases are the
// already-constructed detector.Base instances for whichever sensors are
// enabled (radar/audio/bcg/mock), built by cmd/nightwatch's setup step.
func New(cfg *config.Config, b *bus.Bus, logger *zap.Logger, detectorBases []*detectors.Base, injector AnomalyInjector, audio *notify.AudioNotifier, push *notify.PushNotifier) *Orchestrator {
	return &Orchestrator{
		cfg:            cfg,
		bus:            b,
		logger:         logger,
		fusion:         fusion.New(b, cfg.Fusion),
		alert:          alert.New(b, cfg.AlertEngine),
		audio:          audio,
		push:           push,
		detectors:      detectorBases,
		injector:       injector,
		offlineAlerted: make(map[string]bool),
	}
}

// Run starts every detector, the fusion/alert evaluation loop, and the
// control-inbox handler, blocking until ctx is cancelled. Each detector is
// given its own goroutine; shutdown fans out to all of them and waits with
// the same 3s-per-detector budget Base.Run already enforces internally.
func (o *Orchestrator) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, d := range o.detectors {
		wg.Add(1)
		go func(d *detectors.Base) {
			defer wg.Done()
			if err := d.Run(ctx); err != nil {
				o.logger.Error("detector exited", zap.String("detector", d.Name), zap.Error(err))
			}
		}(d)
	}

	wg.Add(3)
	go func() { defer wg.Done(); o.eventLoop(ctx) }()
	go func() { defer wg.Done(); o.controlLoop(ctx) }()
	go func() { defer wg.Done(); o.notifyLoop(ctx) }()

	<-ctx.Done()
	wg.Wait()
	return nil
}

// eventLoop consumes raw detector events, feeds them to fusion and alert
// ingestion, and periodically evaluates both engines plus detector health.
func (o *Orchestrator) eventLoop(ctx context.Context) {
	events := o.bus.Subscribe(bus.TopicEvents)
	channels := o.bus.Subscribe(bus.TopicChannels)
	defer o.bus.Unsubscribe(events)
	defer o.bus.Unsubscribe(channels)

	ticker := time.NewTicker(time.Duration(o.cfg.AlertEngine.HealthCheckIntervalSeconds * float64(time.Second)))
	defer ticker.Stop()

	go o.drainInto(ctx, events, o.ingestEvent)
	go o.drainInto(ctx, channels, o.ingestChannel)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			o.fusion.Evaluate(now)
			o.alert.Evaluate(now)
			o.checkHealth(now)
		}
	}
}

func (o *Orchestrator) drainInto(ctx context.Context, sub *bus.Subscription, handle func(bus.Message)) {
	for {
		msg, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		handle(msg)
	}
}

// ingestEvent feeds a raw detector Event to both engines: fusion needs it
// as a source, and the alert engine needs it directly for rules whose
// condition source is "detector:<name>" rather than a fused channel.
func (o *Orchestrator) ingestEvent(msg bus.Message) {
	ev, ok := msg.Payload.(events.Event)
	if !ok {
		return
	}
	o.fusion.Ingest(ev)
	o.alert.Ingest(ev)
}

// Health reports a point-in-time status for every detector plus the
// aggregate system status, per spec.md §4.6/§7: a detector with no event
// for detector_timeout_seconds is degraded, 2x that is offline, and the
// system status is the worst of any component's.
func (o *Orchestrator) Health(now time.Time) (map[string]DetectorHealth, SystemStatus) {
	timeout := o.cfg.DetectorTimeout()
	snapshot := make(map[string]DetectorHealth, len(o.detectors))
	system := SystemOnline

	for _, d := range o.detectors {
		status := detectors.StatusOnline
		switch {
		case d.LastSeen().IsZero() || now.Sub(d.LastSeen()) > 2*timeout:
			status = detectors.StatusOffline
		case now.Sub(d.LastSeen()) > timeout:
			status = detectors.StatusDegraded
		}
		snapshot[d.Name] = DetectorHealth{Name: d.Name, Status: status, LastUpdate: d.LastSeen()}

		if status == detectors.StatusOffline {
			system = SystemError
		} else if status == detectors.StatusDegraded && system == SystemOnline {
			system = SystemDegraded
		}
	}
	return snapshot, system
}

// checkHealth evaluates detector health and fires the synthetic "Detector
// offline: <name>" warning the first time a detector crosses out of
// StatusOnline, per spec.md §4.6/§8 scenario 6. offlineAlerted dedupes the
// alert so it fires exactly once per outage instead of on every tick, and
// clears once the detector reports again so a later outage re-fires it.
func (o *Orchestrator) checkHealth(now time.Time) {
	snapshot, _ := o.Health(now)

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, d := range o.detectors {
		h, ok := snapshot[d.Name]
		if !ok || h.Status == detectors.StatusOnline {
			delete(o.offlineAlerted, d.Name)
			continue
		}
		if o.offlineAlerted[d.Name] {
			continue
		}
		o.offlineAlerted[d.Name] = true
		o.publishOfflineAlert(d.Name, now)
	}
}

func (o *Orchestrator) publishOfflineAlert(name string, now time.Time) {
	ruleName := "Detector offline: " + name
	o.logger.Warn("detector offline", zap.String("detector", name))
	o.bus.Publish(bus.TopicAlerts, "orchestrator", events.Alert{
		AlertID:     "detector-offline-" + name,
		RuleName:    ruleName,
		Level:       events.SeverityWarning,
		Source:      name,
		Message:     ruleName + " has not reported within the configured timeout",
		TriggeredAt: now,
	})
}

// notifyLoop dispatches alert.Engine.Evaluate's bus.TopicAlerts transitions
// to the local audio alarm and push sink, unless the pause state is active.
func (o *Orchestrator) notifyLoop(ctx context.Context) {
	sub := o.bus.Subscribe(bus.TopicAlerts)
	defer o.bus.Unsubscribe(sub)

	for {
		msg, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		a, ok := msg.Payload.(events.Alert)
		if !ok {
			continue
		}

		if a.Resolved {
			if o.audio != nil {
				o.audio.Silence(a.AlertID)
			}
			continue
		}
		if o.Paused(time.Now()) {
			continue
		}
		if o.audio != nil {
			o.audio.Notify(ctx, a)
		}
		if o.push != nil {
			if err := o.push.Notify(ctx, a); err != nil {
				o.logger.Warn("push notify failed", zap.String("alert_id", a.AlertID), zap.Error(err))
			}
		}
	}
}

// controlLoop handles pause/resume/acknowledge/resolve/test_alert/
// inject_anomaly requests published on bus.TopicControl.
func (o *Orchestrator) controlLoop(ctx context.Context) {
	sub := o.bus.Subscribe(bus.TopicControl)
	defer o.bus.Unsubscribe(sub)

	for {
		msg, ok := sub.Receive(ctx)
		if !ok {
			return
		}
		cm, ok := msg.Payload.(ControlMessage)
		if !ok {
			continue
		}
		o.handleControl(cm)
	}
}

func (o *Orchestrator) handleControl(cm ControlMessage) {
	now := time.Now()
	switch cm.Action {
	case "pause":
		o.mu.Lock()
		until := now.Add(time.Duration(cm.PauseMinutes) * time.Minute)
		maxUntil := now.Add(time.Duration(o.cfg.AlertEngine.MaxPauseMinutes) * time.Minute)
		if until.After(maxUntil) {
			until = maxUntil
		}
		o.pause = events.PauseState{Paused: true, PauseUntil: &until}
		o.mu.Unlock()

	case "resume":
		o.mu.Lock()
		o.pause = events.PauseState{}
		o.mu.Unlock()

	case "acknowledge":
		o.alert.Acknowledge(cm.AlertID, now)
		if o.audio != nil {
			o.audio.Silence(cm.AlertID)
		}

	case "resolve":
		o.alert.Resolve(cm.AlertID, now)

	case "test_alert":
		sev := events.Severity(cm.Severity)
		if sev == "" {
			sev = events.SeverityInfo
		}
		o.logger.Info("test alert requested", zap.String("severity", string(sev)))
		o.bus.Publish(bus.TopicAlerts, "orchestrator", events.Alert{
			AlertID:     fmt.Sprintf("test-%d", now.UnixNano()),
			RuleName:    "Test alert",
			Level:       sev,
			Source:      "test_alert",
			Message:     "this is a test notification",
			TriggeredAt: now,
		})

	case "inject_anomaly":
		if o.injector != nil {
			o.injector.InjectAnomaly(cm.AnomalyKind, time.Duration(cm.AnomalyForSec*float64(time.Second)))
		}
	}
}

// Paused reports whether notifications are currently suppressed.
func (o *Orchestrator) Paused(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pause.Active(now)
}

func (o *Orchestrator) ingestChannel(msg bus.Message) {
	if ev, ok := msg.Payload.(events.Event); ok {
		o.alert.Ingest(ev)
	}
}
