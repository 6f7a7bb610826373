// Package hubspot reads contacts from the HubSpot CRM v3 API.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadflow_backend/internal/sources"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"
)

const (
	// Name is the lead source identifier used for external references.
	Name = "hubspot"

	searchPageSize = 100
)

var contactProperties = []string{
	"email", "firstname", "lastname", "phone", "mobilephone", "company",
	"lifecyclestage", "hs_lead_status", "createdate", "lastmodifieddate",
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *sources.Breaker
	log     *logger.Logger
}

// NewClient returns nil when no access token is configured.
func NewClient(cfg config.HubSpotConfig, log *logger.Logger) *Client {
	if !cfg.IsHubSpotEnabled() {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GetHubSpotBaseURL(), "/"),
		token:   cfg.GetHubSpotAccessToken(),
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: sources.NewBreaker(Name, log),
		log:     log,
	}
}

func (c *Client) Name() string { return Name }

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type filterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchSort struct {
	PropertyName string `json:"propertyName"`
	Direction    string `json:"direction"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Sorts        []searchSort  `json:"sorts"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type searchResponse struct {
	Results []map[string]any `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

func newSearchRequest(since time.Time) searchRequest {
	return searchRequest{
		FilterGroups: []filterGroup{{Filters: []searchFilter{{
			PropertyName: "lastmodifieddate",
			Operator:     "GTE",
			Value:        strconv.FormatInt(since.UnixMilli(), 10),
		}}}},
		Sorts:      []searchSort{{PropertyName: "lastmodifieddate", Direction: "ASCENDING"}},
		Properties: contactProperties,
	}
}

// FetchRecent pages through contacts modified at or after since, oldest
// first, stopping at limit records.
func (c *Client) FetchRecent(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = searchPageSize
	}

	req := newSearchRequest(since)
	var out []map[string]any
	for len(out) < limit {
		req.Limit = min(searchPageSize, limit-len(out))

		body, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		data, err := c.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("hubspot search contacts: %w", err)
		}

		var page searchResponse
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode hubspot search: %w", err)
		}
		out = append(out, page.Results...)

		if page.Paging == nil || page.Paging.Next == nil || page.Paging.Next.After == "" || len(page.Results) == 0 {
			break
		}
		req.After = page.Paging.Next.After
	}

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FetchByID loads one contact, used by the HubSpot webhook which only
// carries object ids.
func (c *Client) FetchByID(ctx context.Context, id string) (map[string]any, error) {
	query := url.Values{}
	query.Set("properties", strings.Join(contactProperties, ","))
	path := "/crm/v3/objects/contacts/" + url.PathEscape(id) + "?" + query.Encode()

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("hubspot get contact %s: %w", id, err)
	}

	var contact map[string]any
	if err := json.Unmarshal(data, &contact); err != nil {
		return nil, fmt.Errorf("decode hubspot contact: %w", err)
	}
	return contact, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	return c.breaker.Do(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		data, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", sources.ErrNotFound, &sources.StatusError{Source: Name, Status: resp.StatusCode, Body: string(data)})
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &sources.StatusError{Source: Name, Status: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
}

var _ sources.LeadSource = (*Client)(nil)
