// Package publish fans session events out to an MQTT broker so an instructor
// console can follow a run live.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/lookout/internal/debrief"
	"github.com/ayusman/lookout/internal/gaze"
	"github.com/ayusman/lookout/internal/log"
)

// Topic suffixes appended to the configured prefix.
const (
	TopicTransition = "transition"
	TopicPause      = "pause"
	TopicDebrief    = "debrief"
)

// Publisher receives session events. Implementations must not block the caller.
type Publisher interface {
	PublishTransition(sessionID string, ev gaze.TransitionEvent)
	PublishPause(sessionID string, paused bool, at time.Duration)
	PublishDebrief(sessionID string, s debrief.Summary)
	Close()
}

// Nop discards everything.
type Nop struct{}

func (Nop) PublishTransition(string, gaze.TransitionEvent) {}
func (Nop) PublishPause(string, bool, time.Duration)        {}
func (Nop) PublishDebrief(string, debrief.Summary)          {}
func (Nop) Close()                                          {}

// TransitionPayload is the JSON body of a transition message.
type TransitionPayload struct {
	SessionID  string     `json:"session_id"`
	From       gaze.State `json:"from_state"`
	To         gaze.State `json:"to_state"`
	StartS     float64    `json:"start_s"`
	EndS       float64    `json:"end_s"`
	DurationMs float64    `json:"duration_ms"`
}

// PausePayload is the JSON body of a pause or resume message.
type PausePayload struct {
	SessionID string  `json:"session_id"`
	Paused    bool    `json:"paused"`
	TS        float64 `json:"t_s"`
}

// DebriefPayload is the JSON body of the end-of-session message.
type DebriefPayload struct {
	SessionID string          `json:"session_id"`
	Summary   debrief.Summary `json:"summary"`
}

// Options configures the MQTT connection.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes JSON payloads at QoS 0.
type MQTT struct {
	client client
	conn   mqtt.Client
	prefix string
}

// Connect dials the broker and returns a publisher.
func Connect(opts Options) (*MQTT, error) {
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	c := mqtt.NewClient(co)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", opts.Broker, token.Error())
	}

	log.Info("connected to mqtt broker", "broker", opts.Broker, "prefix", opts.TopicPrefix)
	p := newMQTT(c, opts.TopicPrefix)
	p.conn = c
	return p, nil
}

func newMQTT(c client, prefix string) *MQTT {
	return &MQTT{client: c, prefix: prefix}
}

// Topic returns the full topic for a suffix.
func (m *MQTT) Topic(suffix string) string {
	if m.prefix == "" {
		return suffix
	}
	return m.prefix + "/" + suffix
}

func (m *MQTT) send(suffix string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Warn("mqtt payload marshal failed", "topic", suffix, "error", err)
		return
	}

	topic := m.Topic(suffix)
	token := m.client.Publish(topic, 0, false, payload)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			log.Warn("mqtt publish failed", "topic", topic, "error", token.Error())
		}
	}()
}

// PublishTransition sends a closed segment.
func (m *MQTT) PublishTransition(sessionID string, ev gaze.TransitionEvent) {
	m.send(TopicTransition, TransitionPayload{
		SessionID:  sessionID,
		From:       ev.From,
		To:         ev.To,
		StartS:     ev.Start.Seconds(),
		EndS:       ev.End.Seconds(),
		DurationMs: ev.DurationMs(),
	})
}

// PublishPause sends an auto-pause or resume edge.
func (m *MQTT) PublishPause(sessionID string, paused bool, at time.Duration) {
	m.send(TopicPause, PausePayload{SessionID: sessionID, Paused: paused, TS: at.Seconds()})
}

// PublishDebrief sends the session summary.
func (m *MQTT) PublishDebrief(sessionID string, s debrief.Summary) {
	m.send(TopicDebrief, DebriefPayload{SessionID: sessionID, Summary: s})
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m.conn != nil {
		m.conn.Disconnect(250)
	}
}
