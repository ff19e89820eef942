package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/timer"
)

// DefaultOutboxSize is how many messages are kept while the broker is unreachable.
const DefaultOutboxSize = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	OutboxSize int
	// OnReconnect is called after the connection is re-established.
	OnReconnect func()
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while disconnected are queued and replayed on reconnect.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	outbox    *outbox
	connected bool
	everUp    bool
	onRecon   func()
}

// NewRealPublisher creates a publisher for the given broker. The broker
// holds a retained OFFLINE message as last will. If the first connection
// does not succeed in time the publisher is still returned and keeps
// retrying in the background.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.Broker == "" {
		return nil, fmt.Errorf("no broker configured")
	}
	if o.ClientID == "" {
		o.ClientID = "bread-timer"
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = DefaultOutboxSize
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     EventOffline,
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := &RealPublisher{
		outbox:  newOutbox(o.OutboxSize),
		onRecon: o.OnReconnect,
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warnf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnect := p.everUp
	p.everUp = true
	pending := p.outbox.take()
	p.mu.Unlock()

	logger.Infof("mqtt: connected")
	for _, m := range pending {
		if err := p.send(m); err != nil {
			logger.Warnf("mqtt: replay to %s failed: %v", m.topic, err)
		}
	}
	if len(pending) > 0 {
		logger.Infof("mqtt: replayed %d queued messages", len(pending))
	}
	if reconnect && p.onRecon != nil {
		go p.onRecon()
	}
}

func (p *RealPublisher) onConnectionLost(c paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	logger.Warnf("mqtt: connection lost: %v", err)
}

// Publish sends a timer event to the MQTT broker.
func (p *RealPublisher) Publish(event timer.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.deliver(pendingMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event or alert to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.deliver(pendingMsg{
		topic:    TopicSystem,
		payload:  payload,
		qos:      systemQoS(event),
		retained: event.Retained,
	})
}

func (p *RealPublisher) deliver(m pendingMsg) error {
	p.mu.Lock()
	if !p.connected {
		p.outbox.add(m)
		n := p.outbox.size()
		p.mu.Unlock()
		logger.Debugf("mqtt: offline, queued message for %s (%d pending)", m.topic, n)
		return nil
	}
	p.mu.Unlock()
	return p.send(m)
}

func (p *RealPublisher) send(m pendingMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
