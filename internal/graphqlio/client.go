// Package graphqlio forwards a field to an upstream GraphQL service.
package graphqlio

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/hanpama/gqlforge/internal/httpio"
	"github.com/hanpama/gqlforge/internal/upstream"
)

// Client implements upstream.GraphQLTransport on top of the HTTP client.
type Client struct {
	http *httpio.Client
}

func New(http *httpio.Client) *Client {
	return &Client{http: http}
}

var _ upstream.GraphQLTransport = (*Client)(nil)

// Query posts req.Query and returns data.<req.Field>. A response carrying
// errors fails the call.
func (c *Client) Query(ctx context.Context, req *upstream.GraphQLRequest) (any, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "query", req.Query)
	if err != nil {
		return nil, err
	}
	data, err := c.http.Post(ctx, "graphql", req.URL, req.Headers, body)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode response from %s: invalid JSON", req.URL)
	}
	res := gjson.ParseBytes(data)

	var gqlErr error
	if errs := res.Get("errors"); errs.IsArray() && len(errs.Array()) > 0 {
		e := &upstream.GraphQLError{}
		errs.ForEach(func(_, v gjson.Result) bool {
			e.Messages = append(e.Messages, v.Get("message").String())
			return true
		})
		gqlErr = e
	}
	if gqlErr != nil {
		return nil, gqlErr
	}
	return res.Get("data." + req.Field).Value(), nil
}

// BuildQuery renders the document sent upstream for one field.
func BuildQuery(operation, field, args, selection string) string {
	q := operation + " { " + field
	if args != "" {
		q += "(" + args + ")"
	}
	if selection != "" {
		q += " " + selection
	}
	return q + " }"
}
