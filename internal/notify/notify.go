// Package notify raises user-visible alerts when a step timer expires.
// Every sink is best-effort: it never blocks the caller and never reports
// an error back.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/containrrr/shoutrrr"

	"github.com/sweeney/bread-timer/internal/logger"
	"github.com/sweeney/bread-timer/internal/mqtt"
)

// Alert text.
const (
	Title         = "Mon Pain Français"
	BodyDone      = "Le minuteur est terminé !"
	BodyWhileAway = "Le temps est écoulé (pendant votre absence) !"
)

// Sink receives expiry alerts.
type Sink interface {
	NotifyExpired(stepLabel string, whileAway bool)
}

// Message builds the alert body for a step.
func Message(stepLabel string, whileAway bool) string {
	body := BodyDone
	if whileAway {
		body = BodyWhileAway
	}
	if stepLabel == "" {
		return body
	}
	return fmt.Sprintf("%s: %s", stepLabel, body)
}

// PushSink sends alerts to shoutrrr service URLs (ntfy, gotify, telegram,
// discord, ...). With no URL configured, alerts are not permitted and
// every call is a no-op.
type PushSink struct {
	urls []string
	send func(url, message string) error
	wg   sync.WaitGroup

	// OnResult, if set, is called once per URL with the delivery outcome.
	OnResult func(err error)
}

// NewPushSink creates a PushSink for the given service URLs.
func NewPushSink(urls []string) *PushSink {
	return &PushSink{
		urls: append([]string(nil), urls...),
		send: shoutrrr.Send,
	}
}

// Enabled reports whether at least one service URL is configured.
func (p *PushSink) Enabled() bool {
	return len(p.urls) > 0
}

// NotifyExpired sends the alert in the background.
func (p *PushSink) NotifyExpired(stepLabel string, whileAway bool) {
	if !p.Enabled() {
		logger.Debugf("notify: no push services configured, skipping")
		return
	}
	msg := fmt.Sprintf("%s\n%s", Title, Message(stepLabel, whileAway))
	for _, u := range p.urls {
		p.wg.Add(1)
		go func(url string) {
			defer p.wg.Done()
			err := p.send(url, msg)
			if err != nil {
				logger.Warnf("notify: push failed: %v", err)
			} else {
				logger.Infof("notify: push sent")
			}
			if p.OnResult != nil {
				p.OnResult(err)
			}
		}(u)
	}
}

// Wait blocks until all in-flight sends are done.
func (p *PushSink) Wait() {
	p.wg.Wait()
}

// MQTTSink publishes alerts on the system topic.
type MQTTSink struct {
	pub mqtt.Publisher
	now func() time.Time
	wg  sync.WaitGroup
}

// NewMQTTSink creates an MQTTSink. now defaults to time.Now.
func NewMQTTSink(pub mqtt.Publisher, now func() time.Time) *MQTTSink {
	if now == nil {
		now = time.Now
	}
	return &MQTTSink{pub: pub, now: now}
}

// NotifyExpired publishes an ALERT system event in the background.
func (m *MQTTSink) NotifyExpired(stepLabel string, whileAway bool) {
	if m.pub == nil {
		return
	}
	reason := ""
	if whileAway {
		reason = "WHILE_AWAY"
	}
	event := mqtt.SystemEvent{
		Timestamp: m.now(),
		Event:     mqtt.EventAlert,
		Reason:    reason,
		Title:     Title,
		Message:   Message(stepLabel, whileAway),
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.pub.PublishSystem(event); err != nil {
			logger.Warnf("notify: mqtt alert failed: %v", err)
		}
	}()
}

// Wait blocks until all in-flight alerts are published.
func (m *MQTTSink) Wait() {
	m.wg.Wait()
}

// Multi fans an alert out to several sinks.
type Multi []Sink

// NotifyExpired forwards to every sink.
func (m Multi) NotifyExpired(stepLabel string, whileAway bool) {
	for _, s := range m {
		if s != nil {
			s.NotifyExpired(stepLabel, whileAway)
		}
	}
}

// Alert is one recorded FakeSink call.
type Alert struct {
	StepLabel string
	WhileAway bool
}

// FakeSink records alerts.
type FakeSink struct {
	mu     sync.Mutex
	Alerts []Alert
}

// NotifyExpired records the call.
func (f *FakeSink) NotifyExpired(stepLabel string, whileAway bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Alerts = append(f.Alerts, Alert{StepLabel: stepLabel, WhileAway: whileAway})
}

// Count returns the number of alerts recorded.
func (f *FakeSink) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}
