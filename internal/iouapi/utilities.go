package iouapi

import "context"

// Ping calls GET /health and returns nil only on a 2xx status.
func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, "/health", nil, nil)
}
