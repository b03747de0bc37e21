package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/icodeforyou/bessquote/config"
)

const publishTimeout = 5 * time.Second

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MqttPublisher publishes quote summaries as JSON on a single topic.
type MqttPublisher struct {
	client client
	topic  string
	logger *slog.Logger
}

func NewMqttPublisher(cnfg config.AppConfigMqtt) *MqttPublisher {
	logger := slog.Default().With("module", "notify")
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cnfg.Host, cnfg.Port))
	opts.SetClientID("bessquote")
	opts.SetUsername(cnfg.Username)
	opts.SetPassword(cnfg.Password)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("MQTT connected")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", slog.Any("error", err))
	}

	mqttLog := slog.Default().With("module", "mqtt")
	mqtt.CRITICAL = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.ERROR = newMqttLogger(mqttLog, slog.LevelError)
	mqtt.WARN = newMqttLogger(mqttLog, slog.LevelWarn)

	return &MqttPublisher{
		client: mqtt.NewClient(opts),
		topic:  cnfg.GetTopic(),
		logger: logger,
	}
}

func (p *MqttPublisher) Connect() error {
	p.logger.Debug("connecting MQTT client")
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Publish sends s with QoS 1. It waits at most publishTimeout for the
// broker, a quote is stored whether or not the publish succeeds.
func (p *MqttPublisher) Publish(s Summary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing quote %s: timed out", s.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing quote %s: %w", s.ID, err)
	}
	p.logger.Debug("quote summary published", slog.String("id", s.ID), slog.String("topic", p.topic))
	return nil
}

func (p *MqttPublisher) Close() {
	p.client.Disconnect(250)
}
