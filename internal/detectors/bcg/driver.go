// Package bcg implements the under-mattress ballistocardiography detector:
// J-peak heart rate, HRV, respiration from amplitude modulation, bed
// occupancy, and gross-movement detection from one ADC channel.
//
// Grounded on original_source/detectors/bcg/processing.py for the DSP
// chain and internal/detectors/radar for the Go driver/processing/detector
// split.
package bcg

import (
	"context"
	"errors"
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/detectors"
)

// ADC abstracts the analog-to-digital converter so the driver can be
// exercised in tests without real SPI/I2C hardware. A concrete host
// binding (an MCP3008 over spidev, an ADS1115 over i2c-dev) implements
// this against hardware; none ships here since the corpus this codebase is
// grounded on carries no SPI/I2C dependency (see DESIGN.md).
type ADC interface {
	// ReadChunk blocks until one chunk of normalized (-1..1) samples is
	// available, or ctx is cancelled.
	ReadChunk(ctx context.Context) ([]float64, error)
	Close() error
}

// Frame is the raw payload yielded by Driver.Read: one ADC chunk plus its
// capture timestamp.
type Frame struct {
	Samples   []float64
	Timestamp time.Time
}

// Driver adapts an ADC into detectors.Driver, grounded on
// original_source/detectors/bcg/sensor.py's PiezoSensor lifecycle.
type Driver struct {
	open func() (ADC, error)
	adc  ADC
}

// NewDriver builds a BCG driver; open is called on each (re)connect
// attempt to acquire the underlying ADC channel.
func NewDriver(open func() (ADC, error)) *Driver {
	return &Driver{open: open}
}

func (d *Driver) Connect(ctx context.Context) error {
	adc, err := d.open()
	if err != nil {
		return detectors.Fatal(err)
	}
	d.adc = adc
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	if d.adc == nil {
		return nil
	}
	err := d.adc.Close()
	d.adc = nil
	return err
}

func (d *Driver) Read(ctx context.Context) (detectors.Frame, error) {
	if d.adc == nil {
		return nil, detectors.Fatal(errors.New("bcg: not connected"))
	}
	samples, err := d.adc.ReadChunk(ctx)
	if err != nil {
		return nil, detectors.Fatal(err)
	}
	return Frame{Samples: samples, Timestamp: time.Now()}, nil
}

// Calibrate reports nothing beyond what the Processor already learns
// adaptively (occupancy/movement baselines); the sensor itself has no
// zero-point to set.
func (d *Driver) Calibrate(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{}, nil
}
