package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lucaslui/hems/waste-collector/internal/config"
	"github.com/lucaslui/hems/waste-collector/internal/model"
)

type busMessage struct {
	topic   string
	payload string
}

type fakeBus struct {
	mu       sync.Mutex
	messages []busMessage
	fail     bool
}

func (b *fakeBus) Publish(topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errors.New("broker unavailable")
	}
	b.messages = append(b.messages, busMessage{topic, payload})
	return nil
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

func testConfig() *config.Config {
	return &config.Config{
		Addresses:       map[string]string{"123 Main St": "home"},
		TopicPrefix:     "home/seattle_waste",
		Discovery:       true,
		DiscoveryPrefix: "homeassistant",
		DiscoveryName:   "seattle_waste",
		AlertWithin:     24 * time.Hour,
	}
}

func testRecord() model.CollectionRecord {
	return model.CollectionRecord{
		Address: "123 Main St",
		Start:   time.Date(2020, 6, 19, 0, 0, 0, 0, time.UTC),
		Garbage: true,
	}
}

func fixedNow() time.Time {
	return time.Date(2020, 6, 13, 10, 0, 0, 0, time.UTC)
}

func TestHandlePayloads(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, testConfig(), "test")
	p.now = fixedNow

	p.Handle(context.Background(), testRecord())

	want := map[string]string{
		"home/seattle_waste/home/start/state":            "06/19/2020",
		"home/seattle_waste/home/garbage/state":          "ON",
		"home/seattle_waste/home/recycling/state":        "OFF",
		"home/seattle_waste/home/foodandyardwaste/state": "OFF",
		"home/seattle_waste/home/status/state":           "OFF",
	}
	if len(bus.messages) != len(want) {
		t.Fatalf("published %d messages, want %d", len(bus.messages), len(want))
	}
	for _, m := range bus.messages {
		if want[m.topic] != m.payload {
			t.Errorf("topic %s: payload %q, want %q", m.topic, m.payload, want[m.topic])
		}
	}
}

func TestHandleAlertStatus(t *testing.T) {
	var tests = []struct {
		name       string
		start      time.Time
		wantStatus string
	}{
		{"within alert window", time.Date(2020, 6, 13, 18, 0, 0, 0, time.UTC), "ON"},
		{"outside alert window", time.Date(2020, 6, 19, 0, 0, 0, 0, time.UTC), "OFF"},
		{"already past", time.Date(2020, 6, 12, 0, 0, 0, 0, time.UTC), "OFF"},
	}

	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			bus := &fakeBus{}
			p := New(bus, testConfig(), "test")
			p.now = fixedNow

			record := testRecord()
			record.Start = v.start
			p.Handle(context.Background(), record)

			got := ""
			for _, m := range bus.messages {
				if strings.HasSuffix(m.topic, "/status/state") {
					got = m.payload
				}
			}
			if got != v.wantStatus {
				t.Errorf("status payload = %q, want %q", got, v.wantStatus)
			}
		})
	}
}

func TestHandleDeduplicatesUnchangedRecords(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, testConfig(), "test")
	p.now = fixedNow

	p.Handle(context.Background(), testRecord())
	first := bus.count()

	p.Handle(context.Background(), testRecord())
	if bus.count() != first {
		t.Fatalf("second identical record produced %d extra publishes, want 0", bus.count()-first)
	}

	// Flip exactly one field: exactly one extra publish.
	changed := testRecord()
	changed.Recycling = true
	p.Handle(context.Background(), changed)
	if bus.count() != first+1 {
		t.Fatalf("one-field change produced %d extra publishes, want 1", bus.count()-first)
	}
	last := bus.messages[len(bus.messages)-1]
	if !strings.HasSuffix(last.topic, "/recycling/state") || last.payload != "ON" {
		t.Errorf("unexpected publish: %+v", last)
	}
}

func TestHandleUnknownAddress(t *testing.T) {
	bus := &fakeBus{}
	p := New(bus, testConfig(), "test")
	p.now = fixedNow

	record := testRecord()
	record.Address = "999 Elsewhere Ln"
	p.Handle(context.Background(), record)

	if bus.count() != 0 {
		t.Fatalf("unconfigured address produced %d publishes, want 0", bus.count())
	}
}

func TestHandleRetriesAfterPublishFailure(t *testing.T) {
	bus := &fakeBus{fail: true}
	p := New(bus, testConfig(), "test")
	p.now = fixedNow

	p.Handle(context.Background(), testRecord())
	if bus.count() != 0 {
		t.Fatal("failing bus should record no messages")
	}

	// A failed publish must not poison the cache; the next identical
	// cycle publishes everything.
	bus.fail = false
	p.Handle(context.Background(), testRecord())
	if bus.count() != 5 {
		t.Fatalf("published %d messages after recovery, want 5", bus.count())
	}
}

func TestAnnounceEmitsAllSensors(t *testing.T) {
	cfg := testConfig()
	cfg.Addresses = map[string]string{
		"123 Main St": "home",
		"789 Oak Ave": "rental",
	}
	bus := &fakeBus{}
	p := New(bus, cfg, "1.2.3")

	p.Announce(context.Background())

	// N addresses x K fields, regardless of cache state.
	if want := 2 * 5; bus.count() != want {
		t.Fatalf("announced %d messages, want %d", bus.count(), want)
	}

	// Announcements bypass the change gate.
	p.Announce(context.Background())
	if want := 4 * 5; bus.count() != want {
		t.Fatalf("second announce: %d total messages, want %d", bus.count(), want)
	}

	seen := map[string]bool{}
	for _, m := range bus.messages {
		seen[m.topic] = true

		var payload struct {
			Name              string `json:"name"`
			StateTopic        string `json:"state_topic"`
			UniqueID          string `json:"unique_id"`
			AvailabilityTopic string `json:"availability_topic"`
			Device            struct {
				SWVersion string `json:"sw_version"`
			} `json:"device"`
		}
		if err := json.Unmarshal([]byte(m.payload), &payload); err != nil {
			t.Fatalf("discovery payload on %s is not JSON: %v", m.topic, err)
		}
		if payload.StateTopic == "" || payload.UniqueID == "" {
			t.Errorf("incomplete discovery payload on %s: %s", m.topic, m.payload)
		}
		if payload.AvailabilityTopic != "home/seattle_waste/availability" {
			t.Errorf("availability topic = %q", payload.AvailabilityTopic)
		}
		if payload.Device.SWVersion != "1.2.3" {
			t.Errorf("sw_version = %q", payload.Device.SWVersion)
		}
	}

	wantTopic := "homeassistant/sensor/seattle_waste/home_start/config"
	if !seen[wantTopic] {
		t.Errorf("missing discovery topic %s", wantTopic)
	}
	wantTopic = "homeassistant/binary_sensor/seattle_waste/rental_garbage/config"
	if !seen[wantTopic] {
		t.Errorf("missing discovery topic %s", wantTopic)
	}
}

func TestAnnounceDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery = false
	bus := &fakeBus{}
	p := New(bus, cfg, "test")

	p.Announce(context.Background())
	if bus.count() != 0 {
		t.Fatalf("disabled discovery produced %d messages, want 0", bus.count())
	}
}
