// Package facebook reads Lead Ads submissions from the Graph API.
package facebook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	Name = "facebook"

	leadFields = "id,created_time,field_data,ad_id,adset_id,campaign_id,form_id,platform"
	pageSize   = 100
)

type Client struct {
	graphURL  string
	pageID    string
	token     string
	appSecret string
	http      *http.Client
	breaker   *sources.Breaker
	log       *logger.Logger
}

// NewClient returns nil when no page access token is configured.
func NewClient(cfg config.FacebookConfig, log *logger.Logger) *Client {
	if !cfg.IsFacebookEnabled() {
		return nil
	}
	return &Client{
		graphURL:  strings.TrimRight(cfg.GetFacebookGraphURL(), "/"),
		pageID:    cfg.GetFacebookPageID(),
		token:     cfg.GetFacebookPageAccessToken(),
		appSecret: cfg.GetFacebookAppSecret(),
		http:      &http.Client{Timeout: 15 * time.Second},
		breaker:   sources.NewBreaker(Name, log),
		log:       log,
	}
}

func (c *Client) Name() string { return Name }

type page struct {
	Data   []map[string]any `json:"data"`
	Paging *struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// FetchRecent lists the page's lead forms and collects leads created after
// since from each, up to limit in total.
func (c *Client) FetchRecent(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	if c.pageID == "" {
		return nil, fmt.Errorf("facebook page id not configured")
	}
	if limit <= 0 {
		limit = pageSize
	}

	forms, err := c.collect(ctx, c.endpoint(c.pageID+"/leadgen_forms", url.Values{"fields": {"id,name,status"}}), 0)
	if err != nil {
		return nil, fmt.Errorf("facebook list forms: %w", err)
	}

	filter := fmt.Sprintf(`[{"field":"time_created","operator":"GREATER_THAN","value":%d}]`, since.Unix())
	var out []map[string]any
	for _, form := range forms {
		formID, _ := form["id"].(string)
		if formID == "" {
			continue
		}
		remaining := limit - len(out)
		if remaining <= 0 {
			break
		}
		query := url.Values{
			"fields":    {leadFields},
			"filtering": {filter},
			"limit":     {strconv.Itoa(min(pageSize, remaining))},
		}
		leads, err := c.collect(ctx, c.endpoint(formID+"/leads", query), remaining)
		if err != nil {
			return nil, fmt.Errorf("facebook list leads for form %s: %w", formID, err)
		}
		out = append(out, leads...)
	}
	return out, nil
}

// FetchByID loads a single lead by its leadgen id.
func (c *Client) FetchByID(ctx context.Context, leadgenID string) (map[string]any, error) {
	data, err := c.get(ctx, c.endpoint(url.PathEscape(leadgenID), url.Values{"fields": {leadFields}}))
	if err != nil {
		return nil, fmt.Errorf("facebook get lead %s: %w", leadgenID, err)
	}
	var lead map[string]any
	if err := json.Unmarshal(data, &lead); err != nil {
		return nil, fmt.Errorf("decode facebook lead: %w", err)
	}
	return lead, nil
}

// collect follows paging.next until exhausted or max items (0 = no cap).
func (c *Client) collect(ctx context.Context, next string, max int) ([]map[string]any, error) {
	var out []map[string]any
	for next != "" {
		data, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		var p page
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode graph page: %w", err)
		}
		out = append(out, p.Data...)
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		next = ""
		if p.Paging != nil && len(p.Data) > 0 {
			next = p.Paging.Next
		}
	}
	return out, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	query.Set("access_token", c.token)
	if c.appSecret != "" {
		query.Set("appsecret_proof", appSecretProof(c.token, c.appSecret))
	}
	return c.graphURL + "/" + path + "?" + query.Encode()
}

func appSecretProof(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.breaker.Do(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

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
