// Package transport carries raw detector frames over MQTT for sensors that
// live on a separate device from the process running Nightwatch (an
// ESP32-attached radar module, say) instead of a directly-wired serial
// port. Grounded on owl-common/mqtt/client.go's paho option-building
// pattern, re-expressed as an io.ReadWriteCloser so it slots underneath
// radar.Driver unchanged (radar.Driver only needs a byte stream to
// frame-sync against; it doesn't care whether the bytes came off a UART or
// an MQTT payload).
package transport

import (
	"bytes"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/buzzwordmojo/nightwatch/internal/config"
)

// deadlineExceeded satisfies the Timeout() bool interface radar.Driver's
// isTimeout helper checks for, letting MQTTPort behave like a serial port
// whose SetReadDeadline expired with no data.
type deadlineExceeded struct{}

func (deadlineExceeded) Error() string { return "transport: read deadline exceeded" }
func (deadlineExceeded) Timeout() bool { return true }

// MQTTPort adapts an MQTT topic carrying raw radar frame bytes into an
// io.ReadWriteCloser, so it can be passed to radar.NewDriver in place of a
// real serial port when RadarConfig.Transport == "mqtt".
type MQTTPort struct {
	client mqtt.Client
	topic  string

	mu       sync.Mutex
	buf      bytes.Buffer
	notify   chan struct{}
	deadline time.Time
}

// NewRadarMQTTPort connects to cfg.MQTTBroker and subscribes to
// cfg.MQTTTopic, buffering incoming payloads for MQTTPort.Read.
func NewRadarMQTTPort(cfg config.RadarConfig) (*MQTTPort, error) {
	p := &MQTTPort{topic: cfg.MQTTTopic, notify: make(chan struct{}, 1)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		p.push(msg.Payload())
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := client.Subscribe(cfg.MQTTTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		p.push(msg.Payload())
	}); token.Wait() && token.Error() != nil {
		client.Disconnect(250)
		return nil, token.Error()
	}

	p.client = client
	return p, nil
}

func (p *MQTTPort) push(payload []byte) {
	p.mu.Lock()
	p.buf.Write(payload)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// SetReadDeadline bounds the next Read call, mirroring the serial-port
// contract radar.Driver.Read relies on.
func (p *MQTTPort) SetReadDeadline(t time.Time) error {
	p.mu.Lock()
	p.deadline = t
	p.mu.Unlock()
	return nil
}

// Read drains buffered MQTT payload bytes into b, blocking until data
// arrives or the configured deadline passes.
func (p *MQTTPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	deadline := p.deadline
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if p.buf.Len() > 0 {
			n, _ := p.buf.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()

		var wait time.Duration
		if deadline.IsZero() {
			wait = time.Second
		} else {
			wait = time.Until(deadline)
			if wait <= 0 {
				return 0, deadlineExceeded{}
			}
		}

		select {
		case <-p.notify:
		case <-time.After(wait):
			if !deadline.IsZero() {
				return 0, deadlineExceeded{}
			}
		}
	}
}

// Write is a no-op: the radar's uplink is publish-only from the remote
// bridge's perspective, and radar.Driver never writes to its Port.
func (p *MQTTPort) Write(b []byte) (int, error) { return len(b), nil }

// Close unsubscribes and disconnects the MQTT client.
func (p *MQTTPort) Close() error {
	if p.client == nil {
		return nil
	}
	if p.client.IsConnected() {
		if token := p.client.Unsubscribe(p.topic); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}
	p.client.Disconnect(250)
	return nil
}
