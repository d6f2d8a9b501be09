// Package publish mirrors session output onto an MQTT broker so that other
// devices can follow a test live.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/sitstand/internal/session"
)

// Topic suffixes under Config.TopicPrefix.
const (
	TopicFrame   = "frame"
	TopicRep     = "rep"
	TopicCue     = "cue"
	TopicSummary = "summary"
)

// Config holds broker and topic settings.
type Config struct {
	Broker      string        `json:"broker"`
	ClientID    string        `json:"client_id"`
	TopicPrefix string        `json:"topic_prefix"`
	QoS         byte          `json:"qos"`
	FrameEvery  int           `json:"frame_every"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultConfig returns publisher defaults. Broker is empty, which disables
// publishing.
func DefaultConfig() Config {
	return Config{
		ClientID:    "sitstand",
		TopicPrefix: "sitstand",
		FrameEvery:  3,
		Timeout:     250 * time.Millisecond,
	}
}

// Client is the part of mqtt.Client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher writes frame results and session events as JSON messages.
type Publisher struct {
	client Client
	cfg    Config

	mu     sync.Mutex
	frames int
}

// Connect dials the broker in cfg.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker not configured")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	log.Printf("Connected to MQTT broker %s", cfg.Broker)
	return New(client, cfg), nil
}

// New wraps an already connected client.
func New(client Client, cfg Config) *Publisher {
	if cfg.FrameEvery <= 0 {
		cfg.FrameEvery = 1
	}
	return &Publisher{client: client, cfg: cfg}
}

// Topic returns the full topic for suffix.
func (p *Publisher) Topic(suffix string) string {
	if p.cfg.TopicPrefix == "" {
		return suffix
	}
	return p.cfg.TopicPrefix + "/" + suffix
}

// Frame publishes every FrameEvery-th frame result. Skipped frames are
// counted but never published.
func (p *Publisher) Frame(res session.FrameResult) {
	p.mu.Lock()
	p.frames++
	n := p.frames
	p.mu.Unlock()

	if res.Skipped != "" || n%p.cfg.FrameEvery != 0 {
		return
	}
	p.publish(TopicFrame, false, res)
}

// Handle is a session.Handler.
func (p *Publisher) Handle(e session.Event) {
	switch e.Type {
	case session.EventRep, session.EventRejected:
		p.publish(TopicRep, false, e)
	case session.EventCue:
		p.publish(TopicCue, false, e)
	case session.EventEnded:
		p.publish(TopicSummary, true, e)
	case session.EventStarted:
		p.mu.Lock()
		p.frames = 0
		p.mu.Unlock()
	}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}

func (p *Publisher) publish(suffix string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("json marshal error (%s): %v", suffix, err)
		return
	}
	token := p.client.Publish(p.Topic(suffix), p.cfg.QoS, retained, payload)
	if !token.WaitTimeout(p.cfg.Timeout) {
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("MQTT publish error (%s): %v", suffix, err)
	}
}
