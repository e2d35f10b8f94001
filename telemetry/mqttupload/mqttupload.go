// Package mqttupload publishes telemetry records to an MQTT broker.
package mqttupload

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.sunprobe.dev/agent/logging"
	"go.sunprobe.dev/agent/telemetry"
)

const (
	defaultTimeout  = 10 * time.Second
	qosAtLeastOnce  = 1
	disconnectQuiet = 250
)

// Config describes the broker and topic records are published to.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	if conf.Broker == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "mqtt_broker")
	}
	if conf.Topic == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "mqtt_topic")
	}
	return nil
}

// The subset of mqtt.Client used here.
type publisher interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Uploader publishes each record as JSON to <topic>/<device id> at QoS 1.
type Uploader struct {
	mu      sync.Mutex
	client  publisher
	topic   string
	timeout time.Duration
	logger  logging.Logger
}

var _ = telemetry.Uploader(&Uploader{})

type message struct {
	telemetry.Record
	Timestamp string `json:"timestamp"`
}

// NewUploader returns an Uploader for conf. The broker connection is made on the first upload.
func NewUploader(conf Config, logger logging.Logger) (*Uploader, error) {
	if err := conf.Validate("upload"); err != nil {
		return nil, err
	}
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(conf.ClientID).
		SetUsername(conf.Username).
		SetPassword(conf.Password).
		SetAutoReconnect(false).
		SetConnectRetry(false)
	return newUploader(mqtt.NewClient(opts), conf, logger), nil
}

func newUploader(client publisher, conf Config, logger logging.Logger) *Uploader {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Uploader{
		client:  client,
		topic:   conf.Topic,
		timeout: timeout,
		logger:  logger,
	}
}

func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-timer.C:
		return errors.Errorf("no broker acknowledgement within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Upload publishes record and waits for the broker to acknowledge it.
func (u *Uploader) Upload(ctx context.Context, record telemetry.Record) error {
	payload, err := json.Marshal(message{Record: record, Timestamp: record.Timestamp.UTC().Format(time.RFC3339)})
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.client.IsConnected() {
		if err := wait(ctx, u.client.Connect(), u.timeout); err != nil {
			return errors.Wrap(err, "connecting to broker")
		}
	}

	topic := fmt.Sprintf("%s/%s", u.topic, record.DeviceID)
	if err := wait(ctx, u.client.Publish(topic, qosAtLeastOnce, false, payload), u.timeout); err != nil {
		return errors.Wrapf(err, "publishing to %s", topic)
	}
	u.logger.Debugw("published record", "topic", topic)
	return nil
}

// Close disconnects from the broker.
func (u *Uploader) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.client.IsConnected() {
		u.client.Disconnect(disconnectQuiet)
	}
	return nil
}
