// Package seattle implements the HTTP clients for the two generations of
// the Seattle solid-waste collection API: the authenticated utilities
// account API and the legacy public WARP calendar endpoint.
package seattle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lucaslui/hems/waste-collector/internal/model"
)

// DefaultBaseURL is the root of the utilities account API.
const DefaultBaseURL = "https://myutilities.seattle.gov/rest"

// The account API accepts a fixed guest login for read-only calendar access.
const (
	guestCustomer = "guest"
	guestPassword = "guest"
	companyCode   = "SPU"
)

// ServiceSummary identifies one waste stream on an account and the
// service-point id keying its calendar.
type ServiceSummary struct {
	Description    string `json:"description"`
	ServicePointID string `json:"servicePointId"`
}

// Client talks to the utilities account API.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a Client for the given API root. An empty base selects
// the production endpoint.
func NewClient(base string, timeout time.Duration) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// ResolveIdentity turns a street address into an account number via two
// dependent lookups: address to premise code, premise code to account.
func (c *Client) ResolveIdentity(ctx context.Context, address string) (string, error) {
	premCode, err := c.premiseCode(ctx, address)
	if err != nil {
		return "", err
	}
	return c.accountNumber(ctx, premCode)
}

func (c *Client) premiseCode(ctx context.Context, address string) (string, error) {
	req := map[string]any{
		"address": map[string]any{"addressLine1": address},
	}
	var resp struct {
		Addresses []struct {
			PremCode string `json:"premCode"`
		} `json:"address"`
	}
	if err := c.postJSON(ctx, "/serviceorder/findaddress", "", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Addresses) == 0 || resp.Addresses[0].PremCode == "" {
		return "", fmt.Errorf("no premise code for address %q: %w", address, model.ErrNotFound)
	}
	return resp.Addresses[0].PremCode, nil
}

func (c *Client) accountNumber(ctx context.Context, premCode string) (string, error) {
	req := map[string]any{
		"address": map[string]any{"premCode": premCode},
	}
	var resp struct {
		Account struct {
			AccountNumber string `json:"accountNumber"`
		} `json:"account"`
	}
	if err := c.postJSON(ctx, "/serviceorder/findAccount", "", req, &resp); err != nil {
		return "", err
	}
	if resp.Account.AccountNumber == "" {
		return "", fmt.Errorf("no account for premise %q: %w", premCode, model.ErrNotFound)
	}
	return resp.Account.AccountNumber, nil
}

// Token fetches a short-lived guest access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"password"},
		"username":   {guestCustomer},
		"password":   {guestPassword},
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/auth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("token response had no access_token: %w", model.ErrAuthFailure)
	}
	return resp.AccessToken, nil
}

// Services fetches the solid-waste service summaries for an account.
func (c *Client) Services(ctx context.Context, accountNumber, token string) ([]ServiceSummary, error) {
	req := map[string]any{
		"customerId": guestCustomer,
		"accountContext": map[string]any{
			"accountNumber": accountNumber,
		},
	}
	var resp struct {
		AccountSummaryType struct {
			ServiceSummaries []struct {
				Services []ServiceSummary `json:"services"`
			} `json:"swServices"`
		} `json:"accountSummaryType"`
	}
	if err := c.postJSON(ctx, "/account/swsummary", token, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.AccountSummaryType.ServiceSummaries) == 0 {
		return nil, nil
	}
	return resp.AccountSummaryType.ServiceSummaries[0].Services, nil
}

// Calendar fetches the pickup-date lists for the given service points in one
// round trip. Dates are keyed by service-point id and returned in source
// order, which the resolver relies on.
func (c *Client) Calendar(ctx context.Context, accountNumber, token string, servicePoints []string) (map[string][]string, error) {
	req := map[string]any{
		"customerId": guestCustomer,
		"accountContext": map[string]any{
			"accountNumber": accountNumber,
			"companyCd":     companyCode,
		},
		"servicePoints": servicePoints,
	}
	var resp struct {
		Calendar map[string][]string `json:"calendar"`
	}
	if err := c.postJSON(ctx, "/solidwastecalendar", token, req, &resp); err != nil {
		return nil, err
	}
	return resp.Calendar, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", req.URL.Path, err, model.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s: status %d: %w", req.URL.Path, resp.StatusCode, model.ErrUpstream)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %v: %w", req.URL.Path, err, model.ErrDecode)
	}
	return nil
}
