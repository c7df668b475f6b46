package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bidwatch/bidwatch/internal/types"
)

const DefaultURL = "https://nftapi.mobox.io"

// DefaultUserAgent mimics a browser UA; the marketplace fronts its API with
// a CDN that 403s the default Go client string.
const DefaultUserAgent = "Mozilla/5.0"

const (
	momoSearchPath = "/auction/search/BNB"
	gemSearchPath  = "/gem_auction/search/BNB"

	momoPageLimit = 10000
	gemPageLimit  = 1000
)

// Client fetches open auction listings from the marketplace API.
type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("market url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("market url must be http(s), got %q", host)
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		userAgent: DefaultUserAgent,
	}, nil
}

type momoRow struct {
	ID         int64  `json:"id"`
	Index      int64  `json:"index"`
	Prototype  int64  `json:"prototype"`
	NowPrice   int64  `json:"nowPrice"`
	LvHashrate int64  `json:"lvHashrate"`
	Uptime     int64  `json:"uptime"`
	Auctor     string `json:"auctor"`
}

type gemRow struct {
	OrderID int64   `json:"orderId"`
	IDs     []int64 `json:"ids"`
	Amounts []int64 `json:"amounts"`
	Price   int64   `json:"price"`
	Uptime  int64   `json:"uptime"`
	Auctor  string  `json:"auctor"`
}

type searchResponse[T any] struct {
	List []T `json:"list"`
}

// MomoListings returns the currently open momo auctions as listing snapshots.
func (c *Client) MomoListings(ctx context.Context) ([]types.Listing, error) {
	var resp searchResponse[momoRow]
	if err := c.search(ctx, momoSearchPath, momoPageLimit, &resp); err != nil {
		return nil, err
	}

	listings := make([]types.Listing, 0, len(resp.List))
	for _, row := range resp.List {
		// Rows without a seller cannot be bid on; skip rather than fail.
		if row.Auctor == "" {
			continue
		}
		listings = append(listings, types.Listing{
			Class:     types.ClassMomo,
			ItemID:    row.ID,
			Index:     row.Index,
			Prototype: row.Prototype,
			Hashrate:  row.LvHashrate,
			Price:     row.NowPrice,
			StartTime: row.Uptime,
			Seller:    row.Auctor,
		})
	}
	return listings, nil
}

// GemListings returns the currently open gem auctions as listing snapshots.
func (c *Client) GemListings(ctx context.Context) ([]types.Listing, error) {
	var resp searchResponse[gemRow]
	if err := c.search(ctx, gemSearchPath, gemPageLimit, &resp); err != nil {
		return nil, err
	}

	listings := make([]types.Listing, 0, len(resp.List))
	for _, row := range resp.List {
		if row.Auctor == "" {
			continue
		}
		listings = append(listings, types.Listing{
			Class:     types.ClassGem,
			ItemID:    row.OrderID,
			Index:     row.OrderID,
			GemIDs:    row.IDs,
			Amounts:   row.Amounts,
			Price:     row.Price,
			StartTime: row.Uptime,
			Seller:    row.Auctor,
		})
	}
	return listings, nil
}

func (c *Client) search(ctx context.Context, path string, limit int, out any) error {
	u := fmt.Sprintf("%s%s?page=1&limit=%d", c.host, path, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("market request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("market fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("market read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("market fetch %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("market decode %s: %w", path, err)
	}
	return nil
}
