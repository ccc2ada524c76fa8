package broker

import (
	"context"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/config"
)

// EnsureTopic creates the mirror topic on the cluster controller if it does
// not exist yet. Called once at startup, only when the mirror is enabled.
func EnsureTopic(ctx context.Context, cfg *config.Config) error {
	bootstrap := cfg.KafkaBrokers[0]

	conn, err := kafka.DialContext(ctx, "tcp", bootstrap)
	if err != nil {
		return err
	}
	defer conn.Close()

	if parts, err := conn.ReadPartitions(cfg.KafkaTopic); err == nil && len(parts) > 0 {
		log.WithFields(log.Fields{
			"topic": cfg.KafkaTopic,
		}).Debug("kafka topic already exists")
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer ctrlConn.Close()

	log.WithFields(log.Fields{
		"topic": cfg.KafkaTopic,
	}).Info("creating kafka topic")
	return ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}
