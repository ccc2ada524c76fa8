package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WASTE_ADDRESS", "123 Main St:home")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Source != "utilities" {
		t.Errorf("source = %q, want utilities", cfg.Source)
	}
	if cfg.LookupInterval != 8*time.Hour+3*time.Minute+31*time.Second {
		t.Errorf("lookup interval = %s", cfg.LookupInterval)
	}
	if cfg.AlertWithin != 24*time.Hour {
		t.Errorf("alert within = %s", cfg.AlertWithin)
	}
	if cfg.TopicPrefix != "home/seattle_waste" {
		t.Errorf("topic prefix = %q", cfg.TopicPrefix)
	}
	if cfg.Discovery {
		t.Error("discovery should default off")
	}
	if cfg.Addresses["123 Main St"] != "home" {
		t.Errorf("addresses = %v", cfg.Addresses)
	}
}

func TestLoadAddressMap(t *testing.T) {
	var tests = []struct {
		name  string
		value string
		want  map[string]string
	}{
		{
			"two pairs",
			"123 Main St:home,789 Oak Ave:rental",
			map[string]string{"123 Main St": "home", "789 Oak Ave": "rental"},
		},
		{
			"bare address slugs itself",
			"123 Main St",
			map[string]string{"123 Main St": "123 Main St"},
		},
		{
			"whitespace trimmed",
			" 123 Main St : home , ",
			map[string]string{"123 Main St": "home"},
		},
	}

	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			t.Setenv("WASTE_ADDRESS", v.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(cfg.Addresses) != len(v.want) {
				t.Fatalf("addresses = %v, want %v", cfg.Addresses, v.want)
			}
			for k, want := range v.want {
				if cfg.Addresses[k] != want {
					t.Errorf("addresses[%q] = %q, want %q", k, cfg.Addresses[k], want)
				}
			}
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	var tests = []struct {
		name string
		envs map[string]string
	}{
		{"no addresses", map[string]string{"WASTE_ADDRESS": ""}},
		{"bad source", map[string]string{"WASTE_ADDRESS": "123 Main St:home", "WASTE_SOURCE": "carrier-pigeon"}},
		{"bad qos", map[string]string{"WASTE_ADDRESS": "123 Main St:home", "MQTT_QOS": "3"}},
	}

	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			for k, val := range v.envs {
				t.Setenv(k, val)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load should have failed")
			}
		})
	}
}
