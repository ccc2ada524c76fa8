package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/broker"
	"github.com/lucaslui/hems/waste-collector/internal/config"
	"github.com/lucaslui/hems/waste-collector/internal/mqtt"
	"github.com/lucaslui/hems/waste-collector/internal/publisher"
	"github.com/lucaslui/hems/waste-collector/internal/resolver"
	"github.com/lucaslui/hems/waste-collector/internal/runtime"
	"github.com/lucaslui/hems/waste-collector/internal/seattle"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("configuration error")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	log.WithFields(log.Fields{
		"version":        Version,
		"source":         cfg.Source,
		"addresses":      len(cfg.Addresses),
		"lookupInterval": cfg.LookupInterval,
		"alertWithin":    cfg.AlertWithin,
	}).Info("starting waste-collector")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runtime.SetupGracefulShutdown(cancel)

	var source resolver.Source
	switch cfg.Source {
	case "warp":
		source = resolver.NewWarpSource(seattle.NewWarpClient("", cfg.HTTPTimeout))
	default:
		source = resolver.NewUtilitiesSource(seattle.NewClient("", cfg.HTTPTimeout))
	}

	exporter := broker.NewRecordExporter(cfg)
	if exporter != nil {
		if err := broker.EnsureTopic(ctx, cfg); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Fatal("kafka topic setup failed")
		}
		defer exporter.Close()
	}

	// The bus fires its connect hook before the publisher exists, so the
	// hook dereferences lazily.
	var pub *publisher.Publisher
	bus := mqtt.NewClient(cfg, func() {
		if pub != nil {
			pub.Announce(ctx)
		}
	})
	pub = publisher.New(bus, cfg, Version)

	addresses := make([]string, 0, len(cfg.Addresses))
	for address := range cfg.Addresses {
		addresses = append(addresses, address)
	}

	handlers := []resolver.Handler{pub}
	if exporter != nil {
		handlers = append(handlers, exporter)
	}
	res := resolver.New(source, addresses, handlers...)

	bus.ConnectWithBackoff(ctx, 2*time.Second, 30*time.Second)
	defer bus.Disconnect()

	// Poll once right away, then on the interval.
	res.PollOnce(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc(fmt.Sprintf("@every %s", cfg.LookupInterval), func() {
		res.PollOnce(ctx)
	}); err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Fatal("scheduling poll cycle failed")
	}
	if cfg.Discovery {
		if _, err := sched.AddFunc(fmt.Sprintf("@every %s", cfg.DiscoveryInterval), func() {
			pub.Announce(ctx)
		}); err != nil {
			log.WithFields(log.Fields{
				"error": err,
			}).Fatal("scheduling discovery failed")
		}
	}
	sched.Start()
	defer sched.Stop()

	<-ctx.Done()
	log.Info("waste-collector stopped")
}
