package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Session    string // reported in the LWT payload
	BufferSize int    // messages kept while disconnected; 0 means DefaultBufferSize
	Logger     logrus.FieldLogger
}

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are buffered and sent
// in order once it is restored.
type RealPublisher struct {
	client paho.Client
	log    logrus.FieldLogger

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // true once the first connection succeeded
}

// NewRealPublisher creates a publisher for the given broker. It does not
// wait for the connection; paho keeps retrying in the background.
func NewRealPublisher(opts Options) *RealPublisher {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("broker", opts.Broker)

	size := opts.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	p := &RealPublisher{
		log: log,
		buf: newRingBuffer(size, log),
	}

	will, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "OFFLINE",
		Reason:    "MQTT_DISCONNECT",
		Session:   opts.Session,
	})

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	p.client.Connect()
	return p
}

func newPublisherWithClient(client paho.Client, bufferSize int, log logrus.FieldLogger) *RealPublisher {
	return &RealPublisher{
		client: client,
		log:    log,
		buf:    newRingBuffer(bufferSize, log),
	}
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connected
	p.connected = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.log.Info("mqtt reconnected")
	} else {
		p.log.Info("mqtt connected")
	}

	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.WithError(err).WithField("topic", msg.topic).Warn("mqtt replay failed")
		}
	}
	if len(pending) > 0 {
		p.log.WithField("count", len(pending)).Info("mqtt replayed buffered messages")
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err := p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			p.log.WithError(err).Warn("mqtt reconnect notice failed")
		}
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.log.WithError(err).Warn("mqtt connection lost")
}

// publish sends msg, or buffers it while the connection is down.
func (p *RealPublisher) publish(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errors.New("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Publish sends a button event to the MQTT broker.
func (p *RealPublisher) Publish(event Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
