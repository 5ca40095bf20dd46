package planningcenter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const groupsPath = "/groups/v2/groups"

// Client fetches group data from the Planning Center Groups API.
// Authentication is a static pre-encoded basic-auth header; pagination
// follows links.next until absent.
type Client struct {
	apiBase    string
	authHeader string
	userAgent  string
	httpClient *http.Client
	limiter    *RateLimiter
}

// FetchResult holds the primary group records in upstream page order and
// every side-loaded resource observed across all pages.
type FetchResult struct {
	Groups   []Resource
	Included []Resource
	Pages    int
}

func NewClient(appID, secret, apiBase, userAgent string, limiter *RateLimiter) *Client {
	credentials := base64.StdEncoding.EncodeToString([]byte(appID + ":" + secret))

	return &Client{
		apiBase:    apiBase,
		authHeader: "Basic " + credentials,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: limiter,
	}
}

// FetchAllGroups walks every page of the groups collection with side-loaded
// group types, locations, events and attachments. Any page failure aborts
// the whole fetch; no partial result is returned.
func (c *Client) FetchAllGroups(ctx context.Context) (*FetchResult, error) {
	result := &FetchResult{}
	currentURL := c.apiBase + groupsPath + "?per_page=100&include=group_type,location,events,attachments"

	for currentURL != "" {
		result.Pages++
		slog.Debug("Fetching page", "page", result.Pages, "url", currentURL)

		p, err := c.getPage(ctx, currentURL)
		if err != nil {
			return nil, err
		}

		result.Groups = append(result.Groups, p.Data...)
		result.Included = append(result.Included, p.Included...)
		currentURL = p.Links.Next
	}

	slog.Debug("Fetch complete", "pages", result.Pages,
		"groups", len(result.Groups), "included", len(result.Included))

	return result, nil
}

// CheckConnection issues a minimal one-record probe request.
func (c *Client) CheckConnection(ctx context.Context) error {
	_, err := c.getPage(ctx, c.apiBase+groupsPath+"?per_page=1")
	return err
}

func (c *Client) getPage(ctx context.Context, url string) (*page, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", url, err)
	}

	return &p, nil
}
