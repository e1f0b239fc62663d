package radar

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/buzzwordmojo/nightwatch/internal/detectors"
)

// Port abstracts the serial port so the driver can be exercised against a
// mock in tests without a real UART. Concrete host wiring opens a hardware
// serial port (e.g. via a platform-specific termios binding) and adapts it
// to this interface; no such binding ships in this repository since the
// corpus this codebase is grounded on carries no serial-port dependency
// (see DESIGN.md).
type Port interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// Driver is the async serial driver for the HLK-LD2450, grounded on
// original_source/detectors/radar/ld2450.py's LD2450Driver.
type Driver struct {
	open    func() (Port, error)
	port    Port
	buf     []byte
	resyncs uint64
}

// NewDriver builds a radar driver; open is called on each (re)connect
// attempt to acquire the underlying serial port.
func NewDriver(open func() (Port, error)) *Driver {
	return &Driver{open: open}
}

// Resyncs returns the number of frame resynchronizations since the driver
// was created (SPEC_FULL.md §4.2's "resync counter" health signal).
func (d *Driver) Resyncs() uint64 { return d.resyncs }

func (d *Driver) Connect(ctx context.Context) error {
	port, err := d.open()
	if err != nil {
		return detectors.Fatal(err)
	}
	d.port = port
	d.buf = d.buf[:0]
	return nil
}

func (d *Driver) Disconnect(ctx context.Context) error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

// Read pulls bytes off the port (1s deadline, per SPEC_FULL.md §5) and
// returns the next fully-parsed frame, running the resync state machine as
// needed. It may return (nil, nil) when a read timed out with no data
// (not an error condition).
func (d *Driver) Read(ctx context.Context) (detectors.Frame, error) {
	if d.port == nil {
		return nil, detectors.Fatal(errors.New("radar: not connected"))
	}

	if err := d.port.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
		return nil, detectors.Fatal(err)
	}

	chunk := make([]byte, 256)
	n, err := d.port.Read(chunk)
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, detectors.Fatal(err)
	}
	d.buf = append(d.buf, chunk[:n]...)

	for len(d.buf) >= frameLength {
		idx := findHeader(d.buf)
		if idx == -1 {
			// Keep the last few bytes in case the header straddles the boundary.
			if len(d.buf) > 3 {
				d.buf = d.buf[len(d.buf)-3:]
			}
			break
		}
		if idx > 0 {
			d.buf = d.buf[idx:]
		}
		if len(d.buf) < frameLength {
			break
		}

		frame, ok := ParseFrame(d.buf[:frameLength])
		if !ok {
			d.resyncs++
			d.buf = d.buf[4:]
			continue
		}

		d.buf = d.buf[frameLength:]
		return frame, nil
	}

	return nil, nil
}

// Calibrate returns only the driver's resync count ("resync_count"); the
// LD2450 exposes no meaningful zero-point calibration beyond configured
// min/max range, so this reports the sensor's observed resync health for
// the operator to judge signal quality. The detection-area configuration
// is not included.
func (d *Driver) Calibrate(ctx context.Context) (map[string]float64, error) {
	return map[string]float64{"resync_count": float64(d.resyncs)}, nil
}

type timeoutError interface{ Timeout() bool }

func isTimeout(err error) bool {
	var te timeoutError
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}
