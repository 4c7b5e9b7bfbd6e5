package supabase

import (
	"context"

	"github.com/supabase-community/postgrest-go"
)

// Rest returns a PostgREST client for one call chain. token, when set,
// replaces the project key as the bearer credential so row-level
// security sees the real caller.
//
//	var rows []todoRow
//	_, err := c.Rest(ctx, token).From("todos").
//	    Select("*", "", false).
//	    Eq("user_id", userID).
//	    Order("created_at", &postgrest.OrderOpts{Ascending: false}).
//	    ExecuteTo(&rows)
//
// The returned client carries per-call headers, do not share it.
func (c *Client) Rest(ctx context.Context, token string) *postgrest.Client {
	if token == "" {
		token = c.key
	}
	rest := postgrest.NewClient(c.endpoint("/rest/v1"), "public", map[string]string{
		"apikey":        c.key,
		"Authorization": "Bearer " + token,
	})
	if rest.ClientError == nil {
		rest.Transport.Parent = c.roundTripper(ctx)
	}
	return rest
}
