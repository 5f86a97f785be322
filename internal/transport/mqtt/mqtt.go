// Package mqtt implements the MQTT transport for saathi.
//
// MQTT suits always-on home devices (speaker hubs, wall panels). Under the
// configured topic prefix the transport subscribes to:
//
//	<prefix>/control    command name ("listen", "confirm", ...) or {"command": "..."}
//	<prefix>/utterance  JSON message.Utterance
//
// and publishes:
//
//	<prefix>/state      retained JSON message.Event of type "state"
//	<prefix>/speech     JSON message.Event of type "speech"
//	<prefix>/status     retained "online" / "offline" (last will)
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nadzzz/saathi/internal/config"
	"github.com/nadzzz/saathi/internal/message"
	"github.com/nadzzz/saathi/internal/transport"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

var errNotConnected = errors.New("mqtt client not connected")

type publishFunc func(topic string, qos byte, retained bool, payload []byte) error

// Transport implements transport.Transport over MQTT.
type Transport struct {
	cfg    config.MQTTConfig
	logger *slog.Logger

	mu      sync.Mutex
	client  paho.Client
	publish publishFunc
}

// New creates a new MQTT transport.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "saathi"
	}
	return &Transport{cfg: cfg, logger: logger.With("component", "mqtt")}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "mqtt" }

func (t *Transport) topic(leaf string) string { return t.cfg.TopicPrefix + "/" + leaf }

// Listen connects to the MQTT broker and subscribes to the control and
// utterance topics. Subscriptions are renewed on every reconnect.
func (t *Transport) Listen(ctx context.Context, ctrl transport.Controller) error {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(t.cfg.ClientID).
		SetUsername(t.cfg.Username).
		SetPassword(t.cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetWill(t.topic("status"), "offline", t.cfg.QoS, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			t.logger.Warn("mqtt connection lost", "error", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			t.onConnect(c, ctrl)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect: timed out after %s", connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	t.mu.Lock()
	t.client = client
	t.publish = func(topic string, qos byte, retained bool, payload []byte) error {
		tok := client.Publish(topic, qos, retained, payload)
		if !tok.WaitTimeout(publishTimeout) {
			return fmt.Errorf("mqtt publish %s: timed out", topic)
		}
		return tok.Error()
	}
	t.mu.Unlock()

	t.logger.Info("mqtt transport listening", "broker", t.cfg.Broker, "prefix", t.cfg.TopicPrefix)
	<-ctx.Done()
	t.logger.Info("mqtt transport shutting down")
	return t.Close()
}

func (t *Transport) onConnect(c paho.Client, ctrl transport.Controller) {
	handlers := map[string]paho.MessageHandler{
		t.topic("control"): func(_ paho.Client, m paho.Message) {
			t.handleControl(ctrl, m.Payload())
		},
		t.topic("utterance"): func(_ paho.Client, m paho.Message) {
			t.handleUtterance(ctrl, m.Payload())
		},
	}
	for topic, h := range handlers {
		if tok := c.Subscribe(topic, t.cfg.QoS, h); tok.WaitTimeout(connectTimeout) && tok.Error() != nil {
			t.logger.Error("mqtt subscribe failed", "topic", topic, "error", tok.Error())
		}
	}
	c.Publish(t.topic("status"), t.cfg.QoS, true, "online")
	t.logger.Debug("mqtt connected", "broker", t.cfg.Broker)
}

func (t *Transport) handleControl(ctrl transport.Controller, payload []byte) {
	cmd := message.Command(bytes.TrimSpace(payload))
	if len(payload) > 0 && payload[0] == '{' {
		var body struct {
			Command message.Command `json:"command"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			t.logger.Warn("invalid control payload", "error", err)
			return
		}
		cmd = body.Command
	}
	if err := ctrl.Command(context.Background(), cmd); err != nil {
		t.logger.Warn("control command rejected", "command", cmd, "error", err)
	}
}

func (t *Transport) handleUtterance(ctrl transport.Controller, payload []byte) {
	var u message.Utterance
	if err := json.Unmarshal(payload, &u); err != nil {
		t.logger.Warn("invalid utterance payload", "error", err)
		return
	}
	if err := ctrl.Submit(context.Background(), u); err != nil {
		t.logger.Warn("utterance rejected", "error", err)
	}
}

// Publish sends evt to the state or speech topic. State is retained so
// late subscribers see the current state.
func (t *Transport) Publish(_ context.Context, evt message.Event) error {
	t.mu.Lock()
	publish := t.publish
	t.mu.Unlock()
	if publish == nil {
		return errNotConnected
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	switch evt.Type {
	case message.EventState:
		return publish(t.topic("state"), t.cfg.QoS, true, payload)
	case message.EventSpeech:
		return publish(t.topic("speech"), t.cfg.QoS, false, payload)
	default:
		return nil
	}
}

// Close disconnects from the MQTT broker.
func (t *Transport) Close() error {
	t.mu.Lock()
	client := t.client
	t.client = nil
	t.publish = nil
	t.mu.Unlock()

	if client != nil && client.IsConnected() {
		tok := client.Publish(t.topic("status"), t.cfg.QoS, true, "offline")
		tok.WaitTimeout(publishTimeout)
		client.Disconnect(250)
	}
	return nil
}
