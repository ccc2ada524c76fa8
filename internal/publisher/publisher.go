// Package publisher maps resolved collection records onto bus topics,
// suppressing writes whose payload has not changed since the last publish,
// and emits discovery announcements for every configured sensor.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/config"
	"github.com/lucaslui/hems/waste-collector/internal/model"
)

// Bus is the outbound message-bus surface the publisher needs.
type Bus interface {
	Publish(topic, payload string) error
}

type sensorDef struct {
	name string
	kind string // "sensor" or "binary_sensor"
}

// The observable fields of a record, in publish order.
var sensors = []sensorDef{
	{"start", "sensor"},
	{"garbage", "binary_sensor"},
	{"recycling", "binary_sensor"},
	{"foodandyardwaste", "binary_sensor"},
	{"status", "binary_sensor"},
}

// Publisher is the change-gated bus writer. The last-value cache is the only
// mutable state shared across cycles; it grows one entry per topic ever
// published and is never evicted.
type Publisher struct {
	bus             Bus
	slugs           map[string]string // address -> slug
	topicPrefix     string
	discovery       bool
	discoveryPrefix string
	discoveryName   string
	alertWithin     time.Duration
	version         string
	now             func() time.Time

	mu   sync.Mutex
	last map[string]string
}

// New creates a Publisher over the given bus.
func New(bus Bus, cfg *config.Config, version string) *Publisher {
	return &Publisher{
		bus:             bus,
		slugs:           cfg.Addresses,
		topicPrefix:     cfg.TopicPrefix,
		discovery:       cfg.Discovery,
		discoveryPrefix: cfg.DiscoveryPrefix,
		discoveryName:   cfg.DiscoveryName,
		alertWithin:     cfg.AlertWithin,
		version:         version,
		now:             time.Now,
		last:            map[string]string{},
	}
}

// Handle publishes the record's fields, one topic per field, skipping any
// whose payload matches the cached last publish. An address with no
// configured slug is dropped silently; it is not an error.
func (p *Publisher) Handle(_ context.Context, record model.CollectionRecord) {
	slug, ok := p.slugs[record.Address]
	if !ok {
		log.WithFields(log.Fields{
			"address": record.Address,
		}).Debug("address has no configured slug; dropping record")
		return
	}

	until := record.Start.Sub(p.now())
	status := until >= 0 && until <= p.alertWithin

	fields := []struct {
		name    string
		payload string
	}{
		{"start", record.ShortDate()},
		{"garbage", model.OnOff(record.Garbage)},
		{"recycling", model.OnOff(record.Recycling)},
		{"foodandyardwaste", model.OnOff(record.FoodAndYardWaste)},
		{"status", model.OnOff(status)},
	}

	for _, f := range fields {
		p.publishIfChanged(p.stateTopic(slug, f.name), f.payload)
	}
}

func (p *Publisher) publishIfChanged(topic, payload string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if prev, ok := p.last[topic]; ok && prev == payload {
		log.WithFields(log.Fields{
			"topic":   topic,
			"payload": payload,
		}).Debug("unchanged payload; skipping publish")
		return
	}

	if err := p.bus.Publish(topic, payload); err != nil {
		// Leave the cache untouched so the next cycle retries the write.
		log.WithFields(log.Fields{
			"topic": topic,
			"error": err,
		}).Error("publish failed")
		return
	}

	log.WithFields(log.Fields{
		"topic":   topic,
		"payload": payload,
	}).Info("published state")
	p.last[topic] = payload
}

func (p *Publisher) stateTopic(slug, sensor string) string {
	return fmt.Sprintf("%s/%s/%s/state", p.topicPrefix, slug, sensor)
}

// AvailabilityTopic returns the topic carrying the service's online/offline
// state, referenced from every discovery payload.
func (p *Publisher) AvailabilityTopic() string {
	return p.topicPrefix + "/availability"
}

type discoveryDevice struct {
	Name        string   `json:"name"`
	SWVersion   string   `json:"sw_version,omitempty"`
	Identifiers []string `json:"identifiers,omitempty"`
}

type discoveryPayload struct {
	Name              string          `json:"name"`
	StateTopic        string          `json:"state_topic"`
	UniqueID          string          `json:"unique_id"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	AvailabilityTopic string          `json:"availability_topic"`
	Device            discoveryDevice `json:"device"`
}

// Announce emits one capability announcement per configured (slug, sensor)
// pair. Announcements are unconditional: they bypass the last-value cache so
// late-joining subscribers always re-learn the sensor metadata.
func (p *Publisher) Announce(_ context.Context) {
	if !p.discovery {
		return
	}

	for _, slug := range p.slugs {
		for _, sensor := range sensors {
			payload := discoveryPayload{
				Name:              fmt.Sprintf("%s %s %s", p.discoveryName, slug, sensor.name),
				StateTopic:        p.stateTopic(slug, sensor.name),
				UniqueID:          fmt.Sprintf("%s.%s.%s", p.discoveryName, slug, sensor.name),
				AvailabilityTopic: p.AvailabilityTopic(),
				Device: discoveryDevice{
					Name:        p.discoveryName,
					SWVersion:   p.version,
					Identifiers: []string{fmt.Sprintf("%s.%s", p.discoveryName, slug)},
				},
			}
			if sensor.kind == "binary_sensor" {
				payload.PayloadOn = model.OnOff(true)
				payload.PayloadOff = model.OnOff(false)
			}

			topic := fmt.Sprintf("%s/%s/%s/%s_%s/config",
				p.discoveryPrefix, sensor.kind, p.discoveryName, slug, sensor.name)
			buf, err := json.Marshal(payload)
			if err != nil {
				log.WithFields(log.Fields{
					"topic": topic,
					"error": err,
				}).Error("discovery payload marshal failed")
				continue
			}
			if err := p.bus.Publish(topic, string(buf)); err != nil {
				log.WithFields(log.Fields{
					"topic": topic,
					"error": err,
				}).Error("discovery publish failed")
			}
		}
	}
}
