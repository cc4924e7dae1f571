// Package monday is the client for the monday.com GraphQL API: item/asset
// reads, access checks, asset downloads and the OAuth endpoints. Access
// tokens are caller-supplied capabilities; this package never mints them.
package monday

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
)

const (
	APIURL      = "https://api.monday.com/v2"
	OAuthURL    = "https://auth.monday.com/oauth2/authorize"
	TokenURL    = "https://auth.monday.com/oauth2/token"
	downloadBuf = 1024 * 1024
)

var (
	// ErrAccessDenied means the access token was rejected (401) upstream.
	ErrAccessDenied = errors.New("monday access denied")
	// ErrItemNotFound means the item does not exist or is not visible.
	ErrItemNotFound = errors.New("monday item not found")
	// ErrUpstream is any other upstream failure.
	ErrUpstream = errors.New("monday API error")
)

// Asset is one attachment referenced by an item or one of its updates.
type Asset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	FileExtension string `json:"file_extension"`
	FileSize      int64  `json:"file_size"`
	URL           string `json:"url"`
	PublicURL     string `json:"public_url"`
	CreatedAt     string `json:"created_at"`
}

type Column struct {
	Title string `json:"title"`
}

type ColumnValue struct {
	Column       Column `json:"column"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	Value        string `json:"value"`
	Text         string `json:"text"`
	DisplayValue string `json:"display_value"`
}

type Update struct {
	ID     string  `json:"id"`
	Assets []Asset `json:"assets"`
}

// Item is the full asset-bearing view of one work item.
type Item struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	UpdatedAt    string        `json:"updated_at"`
	Assets       []Asset       `json:"assets"`
	ColumnValues []ColumnValue `json:"column_values"`
	Updates      []Update      `json:"updates"`
}

const assetQuery = `
query ($itemIds: [ID!]) {
  items(ids: $itemIds) {
    id
    name
    updated_at
    assets {
      id
      name
      file_extension
      file_size
      url
      public_url
      created_at
    }
    column_values {
      column { title }
      id
      type
      value
      text
      ... on FormulaValue { display_value }
      ... on MirrorValue { display_value }
    }
    updates {
      id
      assets {
        id
        name
        file_extension
        file_size
        url
        public_url
        created_at
      }
    }
  }
}`

type Client struct {
	apiURL     string
	httpClient *http.Client
}

type Option func(*Client)

func WithAPIURL(url string) Option {
	return func(c *Client) { c.apiURL = url }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		apiURL:     APIURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) graphql(ctx context.Context, accessToken, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAccessDenied
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w (%d)", ErrUpstream, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	var payload struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(payload.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrUpstream, payload.Errors[0].Message)
	}

	if out != nil {
		if err := json.Unmarshal(payload.Data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrUpstream, err)
		}
	}
	return nil
}

// CanReadItem reports whether the token can see the item. A 401 reads as
// false rather than an error: revoked tokens are an expected state.
func (c *Client) CanReadItem(ctx context.Context, accessToken, itemID string) (bool, error) {
	var data struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	err := c.graphql(ctx, accessToken,
		"query ($ids: [ID!]) { items (ids: $ids) { id } }",
		map[string]any{"ids": []string{itemID}}, &data)
	if errors.Is(err, ErrAccessDenied) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(data.Items) > 0, nil
}

// FetchItemWithAssets retrieves the item state used for fingerprinting and
// ingestion: assets, update assets, and column values.
func (c *Client) FetchItemWithAssets(ctx context.Context, accessToken, itemID string) (*Item, error) {
	var data struct {
		Items []Item `json:"items"`
	}
	if err := c.graphql(ctx, accessToken, assetQuery, map[string]any{"itemIds": []string{itemID}}, &data); err != nil {
		return nil, err
	}
	if len(data.Items) == 0 {
		return nil, ErrItemNotFound
	}
	return &data.Items[0], nil
}

// Me returns the token owner's user and account ids.
func (c *Client) Me(ctx context.Context, accessToken string) (userID, accountID string, err error) {
	var data struct {
		Me struct {
			ID      string `json:"id"`
			Account struct {
				ID string `json:"id"`
			} `json:"account"`
		} `json:"me"`
	}
	if err := c.graphql(ctx, accessToken, "query { me { id account { id } } }", nil, &data); err != nil {
		return "", "", err
	}
	if data.Me.ID == "" || data.Me.Account.ID == "" {
		return "", "", fmt.Errorf("%w: me query missing id/account", ErrUpstream)
	}
	return data.Me.ID, data.Me.Account.ID, nil
}

// DownloadedAsset is an asset streamed to scratch storage. Callers own the
// temp file and must remove it when done.
type DownloadedAsset struct {
	TempPath    string
	ContentType string
	SHA256      string
	SizeBytes   int64
}

// Cleanup removes the scratch file. Safe to call more than once.
func (d *DownloadedAsset) Cleanup() {
	if d != nil && d.TempPath != "" {
		_ = os.Remove(d.TempPath)
		d.TempPath = ""
	}
}

// DownloadAssetToTemp streams an asset to a temp file, hashing and counting
// bytes on the way through so the whole asset is never held in memory. The
// private URL needs the access token; the public URL must not receive it.
func (c *Client) DownloadAssetToTemp(ctx context.Context, asset Asset, accessToken string) (*DownloadedAsset, error) {
	url := asset.URL
	token := accessToken
	if url == "" {
		url = asset.PublicURL
		token = ""
	}
	if url == "" {
		return nil, fmt.Errorf("%w: asset %s missing download url", ErrUpstream, asset.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAccessDenied
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: asset download failed (%d)", ErrUpstream, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	tmp, err := os.CreateTemp("", "monday-asset-*")
	if err != nil {
		return nil, err
	}

	hasher := sha256.New()
	size, err := io.CopyBuffer(io.MultiWriter(tmp, hasher), resp.Body, make([]byte, downloadBuf))
	closeErr := tmp.Close()
	if err != nil || closeErr != nil {
		os.Remove(tmp.Name())
		if err == nil {
			err = closeErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return &DownloadedAsset{
		TempPath:    tmp.Name(),
		ContentType: contentType,
		SHA256:      hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes:   size,
	}, nil
}

// OAuthConfig builds the x/oauth2 config for the monday authorization flow.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  OAuthURL,
			TokenURL: TokenURL,
		},
	}
}
