package resolver

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/lucaslui/hems/waste-collector/internal/model"
	"github.com/lucaslui/hems/waste-collector/internal/seattle"
)

// MaxAPICalls caps upstream fetches per address per cycle. The WARP endpoint
// pages a non-deterministic number of records per call; without a ceiling a
// stalled or always-past-dated source would be polled indefinitely.
const MaxAPICalls = 5

// WarpSource resolves collection dates through the legacy public paginated
// calendar endpoint.
type WarpSource struct {
	api *seattle.WarpClient
}

// NewWarpSource creates a source backed by the WARP calendar endpoint.
func NewWarpSource(api *seattle.WarpClient) *WarpSource {
	return &WarpSource{api: api}
}

// Lookup implements Source. It walks calendar pages forward, advancing the
// cursor to the last entry of each page, until it finds the first entry
// strictly in the future or the call budget runs out.
func (s *WarpSource) Lookup(ctx context.Context, address string, now time.Time) (model.CollectionRecord, error) {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 1, 0, loc)
	todayTimestamp := today.Unix()

	var lastTimestamp int64
	apiCalls := 0

	for lastTimestamp <= todayTimestamp && apiCalls <= MaxAPICalls {
		log.WithFields(log.Fields{
			"address": address,
			"cursor":  lastTimestamp,
			"calls":   apiCalls,
		}).Debug("fetching collection calendar page")

		entries, err := s.api.Collections(ctx, address, lastTimestamp)
		if err != nil {
			return model.CollectionRecord{}, err
		}
		apiCalls++

		if len(entries) == 0 {
			break
		}

		// Entries do not always come back as expected; skip anything
		// unparseable and keep scanning.
		for _, entry := range entries {
			start, err := entry.ParseStart(loc)
			if err != nil {
				log.WithFields(log.Fields{
					"start": entry.Start,
					"error": err,
				}).Warn("unparseable calendar entry")
				continue
			}

			lastTimestamp = start.Unix()
			if lastTimestamp > todayTimestamp {
				return model.CollectionRecord{
					Address:          address,
					Start:            start,
					Garbage:          entry.Garbage,
					Recycling:        entry.Recycling,
					FoodAndYardWaste: entry.FoodAndYardWaste,
				}, nil
			}
		}
	}

	return model.CollectionRecord{}, fmt.Errorf("no future collection event for %q within %d calls: %w", address, apiCalls, model.ErrNoUpcomingDate)
}
