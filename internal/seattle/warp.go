package seattle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lucaslui/hems/waste-collector/internal/model"
)

// DefaultWarpBaseURL is the root of the legacy public collection-calendar API.
const DefaultWarpBaseURL = "https://www.seattle.gov/UTIL/WARP/CollectionCalendar"

// WarpDateFormat is the date layout the WARP endpoint returns.
const WarpDateFormat = "Mon, 2 Jan 2006"

// WarpEntry is one upcoming collection event from a WARP calendar page.
type WarpEntry struct {
	Start            string `json:"start"`
	Garbage          bool   `json:"garbage"`
	Recycling        bool   `json:"recycling"`
	FoodAndYardWaste bool   `json:"foodAndYardWaste"`
}

// ParseStart parses the entry's date in the given location.
func (e WarpEntry) ParseStart(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(WarpDateFormat, e.Start, loc)
}

// WarpClient talks to the public paginated calendar endpoint. No
// authentication is involved.
type WarpClient struct {
	base string
	http *http.Client
}

// NewWarpClient returns a WarpClient for the given API root. An empty base
// selects the production endpoint.
func NewWarpClient(base string, timeout time.Duration) *WarpClient {
	if base == "" {
		base = DefaultWarpBaseURL
	}
	return &WarpClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Collections fetches one page of upcoming collection events for an address,
// beginning at or after the given unix timestamp. Page size is decided by
// the source.
func (c *WarpClient) Collections(ctx context.Context, address string, start int64) ([]WarpEntry, error) {
	query := url.Values{
		"pApp":     {"CC"},
		"pAddress": {address},
		"start":    {strconv.FormatInt(start, 10)},
	}
	reqURL := c.base + "/GetCollectionDays?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetCollectionDays: %v: %w", err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GetCollectionDays: status %d: %w", resp.StatusCode, model.ErrUpstream)
	}

	var entries []WarpEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("GetCollectionDays: %v: %w", err, model.ErrDecode)
	}
	return entries, nil
}
