package iouapi

import (
	"context"
	"net/url"
	"strconv"

	"github.com/lachiem1/ioukeeper/internal/debts"
)

// GetDebtList calls GET /debts?user_id=N. A null body is an empty list.
func (c *Client) GetDebtList(ctx context.Context, userID int64) ([]debts.DebtEntry, error) {
	var out []debts.DebtEntry
	if err := c.get(ctx, "/debts", userQuery(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetArchiveList calls GET /debts/archive?user_id=N.
func (c *Client) GetArchiveList(ctx context.Context, userID int64) ([]debts.DebtEntry, error) {
	var out []debts.DebtEntry
	if err := c.get(ctx, "/debts/archive", userQuery(userID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteDebt calls POST /debts/complete. It returns the debt with its next
// occurrence, or nil when the debt has none.
func (c *Client) CompleteDebt(ctx context.Context, req debts.CompletionRequest) (*debts.DebtEntry, error) {
	var out *debts.DebtEntry
	if err := c.post(ctx, "/debts/complete", req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendToArchive calls POST /debts/archive. The response body is ignored.
func (c *Client) SendToArchive(ctx context.Context, req debts.ArchivalRequest) error {
	return c.post(ctx, "/debts/archive", req, nil)
}

func userQuery(userID int64) url.Values {
	query := url.Values{}
	query.Set("user_id", strconv.FormatInt(userID, 10))
	return query
}

var _ debts.Backend = (*Client)(nil)
