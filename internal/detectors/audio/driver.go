// Package audio implements the ambient-microphone detector: breathing
// sounds, silence (candidate apnea), vocalizations, and rhythmic
// seizure-sound detection, all from a single PCM stream.
//
// Grounded on original_source/detectors/audio/processing.py for the DSP
// chain and internal/detectors/radar's driver/processing/detector split for
// the Go shape.
package audio

import (
	"context"
	"errors"
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/detectors"
)

// Capture abstracts the PCM input source so the driver can be exercised in
// tests without a real microphone. A concrete host binding (ALSA capture,
// a USB audio class driver) implements this against hardware; none ships
// here since the corpus this codebase is grounded on carries no audio-input
// dependency (see DESIGN.md).
type Capture interface {
	// ReadChunk blocks until one chunk of normalized (-1..1) mono samples is
	// available, or ctx is cancelled.
	ReadChunk(ctx context.Context) ([]float64, error)
	Close() error
}

// Frame is the raw payload yielded by Driver.Read: one PCM chunk plus its
// capture timestamp.
type Frame struct {
	Samples   []float64
	Timestamp time.Time
}

// Driver adapts a Capture into detectors.Driver, grounded on
// original_source/detectors/audio/microphone.py's AudioCapture lifecycle.
type Driver struct {
	open    func() (Capture, error)
	capture Capture
}

// NewDriver builds an audio driver; open is called on each (re)connect
// attempt to acquire the underlying capture device.
func NewDriver(open func() (Capture, error)) *Driver {
	return &Driver{open: open}
}

func (d *Driver) Connect(ctx context.Context) error {
	cap, err := d.open()
	if err != nil {
		return detectors.Fatal(err)
	}
	d.capture = cap
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	if d.capture == nil {
		return nil
	}
	err := d.capture.Close()
	d.capture = nil
	return err
}

func (d *Driver) Read(ctx context.Context) (detectors.Frame, error) {
	if d.capture == nil {
		return nil, detectors.Fatal(errors.New("audio: not connected"))
	}
	samples, err := d.capture.ReadChunk(ctx)
	if err != nil {
		return nil, detectors.Fatal(err)
	}
	return Frame{Samples: samples, Timestamp: time.Now()}, nil
}

// Calibrate returns an empty parameter map: the driver holds no Processor
// state, so no noise floor or breathing-band baseline is reported, and
// audio hardware itself has no zero-point to set.
func (d *Driver) Calibrate(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}
