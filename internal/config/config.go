package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds every environment-driven setting for the service.
type Config struct {
	// Addresses maps a street address to the slug used in bus topics,
	// parsed from "address:slug,address:slug".
	Addresses map[string]string `env:"WASTE_ADDRESS"`

	// Source selects the upstream backend: "utilities" (token/account API)
	// or "warp" (legacy public paginated endpoint).
	Source         string        `env:"WASTE_SOURCE" envDefault:"utilities"`
	AlertWithin    time.Duration `env:"WASTE_ALERTWITHIN" envDefault:"24h"`
	LookupInterval time.Duration `env:"WASTE_LOOKUPINTERVAL" envDefault:"8h3m31s"`
	HTTPTimeout    time.Duration `env:"WASTE_HTTPTIMEOUT" envDefault:"30s"`

	MQTTBrokerURL string `env:"MQTT_BROKER_URL" envDefault:"tcp://vernemq:1883"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"waste-collector"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`
	MQTTQoS       int    `env:"MQTT_QOS" envDefault:"0"`
	TopicPrefix   string `env:"MQTT_TOPICPREFIX" envDefault:"home/seattle_waste"`

	Discovery         bool          `env:"MQTT_DISCOVERY" envDefault:"false"`
	DiscoveryPrefix   string        `env:"MQTT_DISCOVERYPREFIX" envDefault:"homeassistant"`
	DiscoveryName     string        `env:"MQTT_DISCOVERYNAME" envDefault:"seattle_waste"`
	DiscoveryInterval time.Duration `env:"MQTT_DISCOVERYINTERVAL" envDefault:"24h"`

	// KafkaBrokers enables the optional record mirror when non-empty.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"waste-collection-events"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithFuncs(cfg, map[reflect.Type]env.ParserFunc{
		reflect.TypeOf(map[string]string{}): kvMapParser(":", ","),
	}); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}

	if len(cfg.Addresses) == 0 {
		return nil, errors.New("WASTE_ADDRESS must contain at least one address:slug pair")
	}
	if cfg.Source != "utilities" && cfg.Source != "warp" {
		return nil, fmt.Errorf("WASTE_SOURCE must be \"utilities\" or \"warp\", got %q", cfg.Source)
	}
	if cfg.MQTTQoS < 0 || cfg.MQTTQoS > 2 {
		return nil, fmt.Errorf("MQTT_QOS must be 0..2, got %d", cfg.MQTTQoS)
	}

	return cfg, nil
}

// kvMapParser parses "key<kvSep>value<entrySep>key<kvSep>value" strings.
// Entries without a value use the key itself as the value, so a bare address
// doubles as its own slug.
func kvMapParser(kvSep, entrySep string) env.ParserFunc {
	return func(value string) (interface{}, error) {
		result := map[string]string{}
		for _, entry := range strings.Split(value, entrySep) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, kvSep, 2)
			key := strings.TrimSpace(parts[0])
			if key == "" {
				return nil, fmt.Errorf("blank key in map entry %q", entry)
			}
			val := key
			if len(parts) == 2 && strings.TrimSpace(parts[1]) != "" {
				val = strings.TrimSpace(parts[1])
			}
			result[key] = val
		}
		return result, nil
	}
}
