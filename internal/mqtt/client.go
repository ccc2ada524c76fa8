// Package mqtt wraps the paho client behind the small publishing surface
// the rest of the service needs.
package mqtt

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/config"
)

const (
	onlinePayload  = "online"
	offlinePayload = "offline"
)

// Client is a connected MQTT publisher. All state publishes are retained so
// subscribers see the last value immediately on (re)subscribe.
type Client struct {
	cli          mqtt.Client
	qos          byte
	availability string
}

// NewClient builds the paho client. onConnect fires after every successful
// (re)connect, once the availability state has been published; discovery
// re-announcement hangs off it.
func NewClient(cfg *config.Config, onConnect func()) *Client {
	c := &Client{
		qos:          byte(cfg.MQTTQoS),
		availability: cfg.TopicPrefix + "/availability",
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBrokerURL).
		SetClientID(fmt.Sprintf("%s-%s", cfg.MQTTClientID, uuid.NewString()[:8])).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(c.availability, offlinePayload, c.qos, true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
	}
	if cfg.MQTTPassword != "" {
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.OnConnect = func(inner mqtt.Client) {
		log.WithFields(log.Fields{
			"broker": cfg.MQTTBrokerURL,
		}).Info("connected to mqtt broker")

		if token := inner.Publish(c.availability, c.qos, true, onlinePayload); token.Wait() && token.Error() != nil {
			log.WithFields(log.Fields{
				"error": token.Error(),
			}).Error("availability publish failed")
		}
		if onConnect != nil {
			onConnect()
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithFields(log.Fields{
			"error": err,
		}).Warn("mqtt connection lost")
	}

	c.cli = mqtt.NewClient(opts)
	return c
}

// Publish writes one retained message and waits for the broker ack.
func (c *Client) Publish(topic, payload string) error {
	token := c.cli.Publish(topic, c.qos, true, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// ConnectWithBackoff retries the initial connect with exponential backoff
// until it succeeds or the context is cancelled.
func (c *Client) ConnectWithBackoff(ctx context.Context, start, max time.Duration) {
	backoff := start
	for {
		if token := c.cli.Connect(); token.Wait() && token.Error() != nil {
			log.WithFields(log.Fields{
				"error":   token.Error(),
				"backoff": backoff,
			}).Warn("mqtt connect failed; retrying")
			select {
			case <-time.After(backoff):
				if backoff < max {
					backoff *= 2
				}
			case <-ctx.Done():
				log.Info("context cancelled before mqtt connect")
				return
			}
			continue
		}
		break
	}
}

// Disconnect marks the service offline and closes the connection.
func (c *Client) Disconnect() {
	if token := c.cli.Publish(c.availability, c.qos, true, offlinePayload); token.Wait() && token.Error() != nil {
		log.WithFields(log.Fields{
			"error": token.Error(),
		}).Warn("offline publish failed")
	}
	c.cli.Disconnect(250)
}
