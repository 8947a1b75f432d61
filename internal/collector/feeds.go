package collector

import (
	"context"
	"net/url"
)

// Feed ids on the remote API. An activities response is a JSON object keyed
// by the same feed id, with the records as a list under that key.
const (
	publicationsFeed = "-21"
	grantsFeed       = "-11"
)

// Publications returns the raw publication activities for one subject.
// A nil slice means the remote yielded no usable data for the request.
func (c *Client) Publications(ctx context.Context, userID string) ([]map[string]any, error) {
	return c.activities(ctx, publicationsFeed, userID)
}

// Grants returns the raw grant activities for one subject.
func (c *Client) Grants(ctx context.Context, userID string) ([]map[string]any, error) {
	return c.activities(ctx, grantsFeed, userID)
}

func (c *Client) activities(ctx context.Context, feed, userID string) ([]map[string]any, error) {
	payload, err := c.request(ctx, "/activities/"+feed, "?data=detailed&userlist="+url.QueryEscape(userID))
	if err != nil {
		return nil, err
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, nil
	}
	list, ok := obj[feed].([]any)
	if !ok {
		return nil, nil
	}
	return asRecords(list), nil
}

// Users returns the full detailed roster. Unlike the activity feeds the
// response is a top-level JSON list.
func (c *Client) Users(ctx context.Context) ([]map[string]any, error) {
	payload, err := c.request(ctx, "/users", "?data=detailed")
	if err != nil {
		return nil, err
	}
	list, ok := payload.([]any)
	if !ok {
		return nil, nil
	}
	return asRecords(list), nil
}

func asRecords(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}
