// Package detectors defines the driver/detector contract every sensor
// family implements (radar, audio, bcg, mock), and the shared lifecycle
// (connect-with-backoff, session rotation, event emission) each concrete
// detector embeds. Grounded on original_source/detectors/base.py's
// BaseDetector, re-expressed as explicit interfaces and error returns per
// SPEC_FULL.md §9 ("duck-typed detectors -> a capability set").
package detectors

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buzzwordmojo/nightwatch/internal/bus"
	"github.com/buzzwordmojo/nightwatch/internal/events"
)

// ErrorClass categorizes a driver I/O failure per SPEC_FULL.md §4.2.
type ErrorClass int

const (
	// ErrorTransient is retried with exponential backoff without tearing
	// down the connection.
	ErrorTransient ErrorClass = iota
	// ErrorFatal requires a full reconnect.
	ErrorFatal
)

// DriverError wraps an underlying I/O error with its retry classification.
type DriverError struct {
	Class ErrorClass
	Err   error
}

func (e *DriverError) Error() string { return e.Err.Error() }
func (e *DriverError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable transient error.
func Transient(err error) error { return &DriverError{Class: ErrorTransient, Err: err} }

// Fatal wraps err as a reconnect-triggering fatal error.
func Fatal(err error) error { return &DriverError{Class: ErrorFatal, Err: err} }

// ClassOf extracts the ErrorClass from err, defaulting to Fatal for errors
// that were not raised through Transient/Fatal (better safe: reconnect).
func ClassOf(err error) ErrorClass {
	var de *DriverError
	if errors.As(err, &de) {
		return de.Class
	}
	return ErrorFatal
}

// Frame is an opaque raw sample yielded by a Driver.Read call; each sensor
// family defines its own concrete frame type.
type Frame interface{}

// Driver is the uniform pull interface every hardware family implements
// (SPEC_FULL.md §4.2): connect, disconnect, read one frame, and an optional
// calibration pass returning a parameter bag.
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Read(ctx context.Context) (Frame, error)
	Calibrate(ctx context.Context) (map[string]float64, error)
}

// Status is a detector's coarse health classification, surfaced by the
// orchestrator's health report (SPEC_FULL.md §4.6).
type Status string

const (
	StatusOnline   Status = "online"
	StatusDegraded Status = "degraded"
	StatusOffline  Status = "offline"
)

// Processor turns one raw Frame into zero or one Event; detectors call it
// once per driver read. Returning ok=false means "not enough data yet",
// which the base loop turns into a periodic UNCERTAIN tick instead of
// silence.
type Processor interface {
	Process(frame Frame, now time.Time) (value map[string]events.Value, state events.State, confidence float64, ok bool)
}

// Base implements the lifecycle shared by every concrete detector:
// connect-with-backoff, session rotation on reconnect, monotonically
// increasing per-session sequence numbers, and publishing to the bus.
type Base struct {
	Name      string
	Driver    Driver
	Processor Processor
	Bus       *bus.Bus
	Logger    *zap.Logger
	TickEvery time.Duration

	sessionID string
	sequence  uint64
	lastSeen  time.Time
	status    Status
}

// NewBase wires a driver and processor into the shared lifecycle.
func NewBase(name string, driver Driver, proc Processor, b *bus.Bus, logger *zap.Logger, tick time.Duration) *Base {
	return &Base{
		Name:      name,
		Driver:    driver,
		Processor: proc,
		Bus:       b,
		Logger:    logger,
		TickEvery: tick,
		status:    StatusOffline,
	}
}

// Status returns the detector's current coarse health.
func (b *Base) Status() Status { return b.status }

// LastSeen returns the timestamp of the most recently emitted event.
func (b *Base) LastSeen() time.Time { return b.lastSeen }

// Run connects with retry/backoff and then loops read->process->emit until
// ctx is cancelled, at which point it disconnects within a 3s budget
// (SPEC_FULL.md §5 cancellation contract).
func (b *Base) Run(ctx context.Context) error {
	defer b.shutdown()

	for {
		if err := b.connectWithBackoff(ctx); err != nil {
			return err // ctx cancelled during connect retries
		}
		b.rotateSession()

		err := b.readLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			continue
		}
		if ClassOf(err) == ErrorFatal {
			b.Logger.Warn("detector fatal error, reconnecting", zap.String("detector", b.Name), zap.Error(err))
			b.status = StatusOffline
			continue
		}
		// Transient errors surface via readLoop's own retry; reaching here
		// with a transient error means the loop gave up mid-tick, so retry.
	}
}

func (b *Base) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := b.Driver.Disconnect(shutdownCtx); err != nil {
		b.Logger.Warn("disconnect error during shutdown", zap.String("detector", b.Name), zap.Error(err))
	}
}

func (b *Base) connectWithBackoff(ctx context.Context) error {
	backoff := 200 * time.Millisecond
	const cap = 5 * time.Second

	for {
		if err := b.Driver.Connect(ctx); err == nil {
			b.status = StatusDegraded // online is declared once we see a real event
			return nil
		}
		b.status = StatusOffline

		jitter := time.Duration(float64(backoff) * (0.8 + 0.4*rand.Float64()))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff *= 2
		if backoff > cap {
			backoff = cap
		}
	}
}

func (b *Base) rotateSession() {
	b.sessionID = uuid.NewString()
	b.sequence = 0
}

func (b *Base) readLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.TickEvery)
	defer ticker.Stop()
	backoff := 200 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := b.Driver.Read(ctx)
		if err != nil {
			if ClassOf(err) == ErrorFatal {
				return err
			}
			b.Logger.Debug("transient read error", zap.String("detector", b.Name), zap.Error(err))
			select {
			case <-time.After(time.Duration(float64(backoff) * (0.8 + 0.4*rand.Float64()))):
			case <-ctx.Done():
				return nil
			}
			if backoff *= 2; backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			continue
		}
		backoff = 200 * time.Millisecond

		now := time.Now()
		valueMap, state, confidence, ok := b.Processor.Process(frame, now)
		if !ok {
			valueMap = nil
			state = events.StateUncertain
			confidence = 0
		}

		b.emit(now, state, confidence, valueMap)
	}
}

func (b *Base) emit(now time.Time, state events.State, confidence float64, value map[string]events.Value) {
	b.sequence++
	if b.status != StatusOffline {
		b.status = StatusOnline
	}
	b.lastSeen = now

	ev := events.Event{
		Detector:   b.Name,
		Timestamp:  now,
		Sequence:   b.sequence,
		SessionID:  b.sessionID,
		State:      state,
		Confidence: confidence,
		Value:      value,
	}
	b.Bus.Publish(bus.TopicEvents, b.Name, ev)
}
