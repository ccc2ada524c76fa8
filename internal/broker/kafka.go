// Package broker mirrors resolved collection records onto a Kafka topic for
// downstream ingestion, alongside the primary MQTT publishes. The mirror is
// optional; a nil exporter is a no-op.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/config"
	"github.com/lucaslui/hems/waste-collector/internal/model"
)

// recordEnvelope wraps a record with ingestion metadata.
type recordEnvelope struct {
	Record      model.CollectionRecord `json:"record"`
	EventID     string                 `json:"eventId"`
	CollectedAt time.Time              `json:"collectedAt"`
}

// RecordExporter writes record envelopes to Kafka, keyed by address so one
// address's records land in one partition.
type RecordExporter struct {
	writer *kafka.Writer
	topic  string
}

// NewRecordExporter returns nil when no Kafka brokers are configured.
func NewRecordExporter(cfg *config.Config) *RecordExporter {
	if len(cfg.KafkaBrokers) == 0 || cfg.KafkaBrokers[0] == "" {
		return nil
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.KafkaTopic,
		Balancer: &kafka.Hash{},

		BatchSize:    10,
		BatchTimeout: 10 * time.Millisecond,

		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	return &RecordExporter{writer: writer, topic: cfg.KafkaTopic}
}

// Handle implements resolver.Handler.
func (e *RecordExporter) Handle(ctx context.Context, record model.CollectionRecord) {
	if e == nil {
		return
	}

	envelope := recordEnvelope{
		Record:      record,
		EventID:     uuid.NewString(),
		CollectedAt: time.Now().UTC(),
	}
	buf, err := json.Marshal(envelope)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("record envelope marshal failed")
		return
	}

	if err := e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.Address),
		Value: buf,
	}); err != nil {
		log.WithFields(log.Fields{
			"topic": e.topic,
			"error": err,
		}).Error("kafka write failed")
		return
	}

	log.WithFields(log.Fields{
		"topic":   e.topic,
		"eventId": envelope.EventID,
	}).Debug("mirrored record to kafka")
}

// Close flushes and closes the underlying writer.
func (e *RecordExporter) Close() {
	if e == nil {
		return
	}
	_ = e.writer.Close()
}
