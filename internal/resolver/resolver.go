// Package resolver turns configured addresses into normalized collection
// records by driving one of the upstream backends, and fans successful
// records out to the configured sinks.
package resolver

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/model"
)

// Source looks up the next collection event for one address. Implementations
// classify failures with the model sentinel errors.
type Source interface {
	Lookup(ctx context.Context, address string, now time.Time) (model.CollectionRecord, error)
}

// Handler consumes a resolved record.
type Handler interface {
	Handle(ctx context.Context, record model.CollectionRecord)
}

// Resolver runs one lookup per configured address per cycle. A failed
// address is logged and skipped; it never aborts the cycle.
type Resolver struct {
	source    Source
	addresses []string
	handlers  []Handler
	now       func() time.Time
}

// New creates a Resolver over the given source and sinks.
func New(source Source, addresses []string, handlers ...Handler) *Resolver {
	return &Resolver{
		source:    source,
		addresses: addresses,
		handlers:  handlers,
		now:       time.Now,
	}
}

// PollOnce performs one full cycle over every configured address.
func (r *Resolver) PollOnce(ctx context.Context) {
	log.WithFields(log.Fields{
		"addresses": len(r.addresses),
	}).Info("polling collection schedule")

	now := r.now()
	for _, address := range r.addresses {
		if ctx.Err() != nil {
			log.Info("poll cycle cancelled")
			return
		}

		record, err := r.source.Lookup(ctx, address, now)
		if err != nil {
			log.WithFields(log.Fields{
				"address": address,
				"error":   err,
			}).Warn("no collection record for address this cycle")
			continue
		}

		log.WithFields(log.Fields{
			"address": record.Address,
			"start":   record.ShortDate(),
		}).Info("resolved next collection date")

		for _, h := range r.handlers {
			h.Handle(ctx, record)
		}
	}
}
