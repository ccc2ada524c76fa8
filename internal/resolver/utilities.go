package resolver

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lucaslui/hems/waste-collector/internal/model"
	"github.com/lucaslui/hems/waste-collector/internal/seattle"
)

// Service descriptions as the utilities account API reports them.
const (
	garbageService  = "Garbage"
	recycleService  = "Recycle"
	foodYardService = "Food/Yard Waste"
)

// Calendar dates have arrived in both layouts over the API's lifetime.
var calendarDateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// UtilitiesSource resolves collection dates through the authenticated
// utilities account API: identity and token concurrently, then service
// summaries, then one shared calendar fetch.
type UtilitiesSource struct {
	api *seattle.Client
}

// NewUtilitiesSource creates a source backed by the utilities account API.
func NewUtilitiesSource(api *seattle.Client) *UtilitiesSource {
	return &UtilitiesSource{api: api}
}

// Lookup implements Source. The garbage calendar is authoritative: its first
// date at or after today becomes the record's start, and the recycling and
// food/yard flags are exact-date membership tests against that date. There
// is no retry; the calendar is already the full answer.
func (s *UtilitiesSource) Lookup(ctx context.Context, address string, now time.Time) (model.CollectionRecord, error) {
	var account, token string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		account, err = s.api.ResolveIdentity(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		token, err = s.api.Token(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.CollectionRecord{}, err
	}

	services, err := s.api.Services(ctx, account, token)
	if err != nil {
		return model.CollectionRecord{}, err
	}

	garbage := findService(services, garbageService)
	recycle := findService(services, recycleService)
	foodYard := findService(services, foodYardService)

	calendar, err := s.api.Calendar(ctx, account, token, servicePointIDs(services))
	if err != nil {
		return model.CollectionRecord{}, err
	}

	garbageCal := calendar[garbage.ServicePointID]
	if len(garbageCal) == 0 {
		return model.CollectionRecord{}, fmt.Errorf("no garbage calendar for %q: %w", address, model.ErrNoUpcomingDate)
	}

	// Date-only comparison against local today; the calendar is in source
	// (ascending) order, so the first qualifying date wins.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var startRaw string
	var start time.Time
	for _, raw := range garbageCal {
		parsed, err := parseCalendarDate(raw, now.Location())
		if err != nil {
			log.WithFields(log.Fields{
				"date":  raw,
				"error": err,
			}).Warn("unparseable calendar date")
			continue
		}
		if !parsed.Before(today) {
			startRaw = raw
			start = parsed
			break
		}
	}
	if startRaw == "" {
		return model.CollectionRecord{}, fmt.Errorf("garbage calendar for %q has no date on or after today: %w", address, model.ErrNoUpcomingDate)
	}

	return model.CollectionRecord{
		Address:          address,
		Start:            start,
		Garbage:          true,
		Recycling:        containsDate(calendar[recycle.ServicePointID], startRaw),
		FoodAndYardWaste: containsDate(calendar[foodYard.ServicePointID], startRaw),
	}, nil
}

// findService returns the summary matching the description, or a zero value
// whose empty service-point id misses the calendar map. A missing service is
// not an error; the corresponding flag just stays false.
func findService(services []seattle.ServiceSummary, description string) seattle.ServiceSummary {
	for _, svc := range services {
		if svc.Description == description {
			return svc
		}
	}
	return seattle.ServiceSummary{}
}

func servicePointIDs(services []seattle.ServiceSummary) []string {
	ids := make([]string, 0, len(services))
	for _, svc := range services {
		if svc.ServicePointID != "" {
			ids = append(ids, svc.ServicePointID)
		}
	}
	return ids
}

// containsDate is an exact string-equality membership test; the flags all
// describe the single shared garbage date.
func containsDate(dates []string, date string) bool {
	for _, d := range dates {
		if d == date {
			return true
		}
	}
	return false
}

func parseCalendarDate(raw string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range calendarDateLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
