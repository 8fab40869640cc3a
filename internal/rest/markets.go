package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetMarkets fetches a page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.NextToken != "" {
		query.Set("next_token", opts.NextToken)
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetAllMarkets fetches all markets by paginating through results.
func (c *Client) GetAllMarkets(ctx context.Context) ([]Market, error) {
	return c.GetAllMarketsWithOptions(ctx, GetMarketsOptions{})
}

// GetAllMarketsWithOptions fetches all markets matching the given options.
func (c *Client) GetAllMarketsWithOptions(ctx context.Context, opts GetMarketsOptions) ([]Market, error) {
	var allMarkets []Market
	opts.Limit = 1000 // Max page size

	for {
		resp, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return nil, err
		}

		allMarkets = append(allMarkets, resp.Markets...)

		if resp.NextToken == "" {
			break
		}
		opts.NextToken = resp.NextToken
	}

	return allMarkets, nil
}

// GetMarket fetches a single market by application ID. A missing market is
// (nil, nil), not an error.
func (c *Client) GetMarket(ctx context.Context, appID int64) (*Market, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+strconv.FormatInt(appID, 10), nil, &resp); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get market %d: %w", appID, err)
	}
	return &resp.Market, nil
}

// GetOrders fetches a page of a market's resting orders.
func (c *Client) GetOrders(ctx context.Context, appID int64, limit int, nextToken string) (*OrdersResponse, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if nextToken != "" {
		query.Set("next_token", nextToken)
	}

	var resp OrdersResponse
	if err := c.get(ctx, "/markets/"+strconv.FormatInt(appID, 10)+"/orders", query, &resp); err != nil {
		return nil, fmt.Errorf("get orders for market %d: %w", appID, err)
	}

	return &resp, nil
}

// GetAllOrders fetches every resting order of a market.
func (c *Client) GetAllOrders(ctx context.Context, appID int64) ([]Order, error) {
	var (
		all       []Order
		nextToken string
	)
	for {
		resp, err := c.GetOrders(ctx, appID, 1000, nextToken)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Orders...)

		if resp.NextToken == "" {
			break
		}
		nextToken = resp.NextToken
	}

	return all, nil
}
