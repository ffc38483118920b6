package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/version"
)

const (
	v1Sites       = "/api/v1/sites"
	v1Site        = "/api/v1/sites/{site_id}"
	v1SiteBatches = "/api/v1/sites/{site_id}/batches"

	HeaderUserAgent = "User-Agent"
	HeaderVersion   = "X-Sitesync-Version"
)

// Client is the HTTP ledger.
type Client struct {
	client *req.Client
}

var _ Ledger = (*Client)(nil)

func NewClient(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNoLedgerURL
	}

	client := req.C().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{client: client}, nil
}

// CreateSite registers a new site and returns its 0x-prefixed hex id.
func (c *Client) CreateSite(ctx context.Context, name string) (string, error) {
	var apiResp CreateSiteResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&CreateSiteRequest{Name: name}).
		SetSuccessResult(&apiResp).
		Post(v1Sites)

	if err := handleAPIError(resp, err, "create site"); err != nil {
		return "", err
	}
	return apiResp.SiteID, nil
}

// Submit sends one batch. It is never retried: a batch whose response is lost may have
// been applied, and the executor decides what happens next.
func (c *Client) Submit(ctx context.Context, siteID string, b *batch.Batch) error {
	if siteID == "" {
		return ErrNoSiteID
	}

	var apiResp SubmitResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("site_id", siteID).
		SetBody(NewSubmitRequest(b)).
		SetSuccessResult(&apiResp).
		SetRetryCount(0).
		Post(v1SiteBatches)

	return handleAPIError(resp, err, "submit batch")
}

// Site fetches the current state of a site.
func (c *Client) Site(ctx context.Context, siteID string) (*SiteState, error) {
	if siteID == "" {
		return nil, ErrNoSiteID
	}

	var state SiteState
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("site_id", siteID).
		SetSuccessResult(&state).
		SetRetryCount(3).
		SetRetryFixedInterval(time.Second).
		Get(v1Site)

	if err := handleAPIError(resp, err, "get site"); err != nil {
		return nil, err
	}
	return &state, nil
}
