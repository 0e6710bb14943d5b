// Package httpclient implements the outbound HTTP collaborator on resty.
package httpclient

import (
	"context"

	"github.com/campushq/pulse/pkg/protocol"
	"github.com/go-resty/resty/v2"
)

type Client struct {
	resty *resty.Client
}

func New() *Client {
	return &Client{resty: resty.New()}
}

func NewWithClient(client *resty.Client) *Client {
	return &Client{resty: client}
}

// Do performs one outbound call. Non-2xx responses are returned, not errors;
// the HTTP node records status outcomes itself.
func (c *Client) Do(ctx context.Context, req protocol.HTTPRequest) (*protocol.HTTPResponse, error) {
	request := c.resty.R().SetContext(ctx).SetHeaders(req.Headers)

	if req.Body != "" {
		request.SetBody(req.Body)
	}

	resp, err := request.Execute(req.Method, req.URL)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(resp.Header()))
	for name := range resp.Header() {
		headers[name] = resp.Header().Get(name)
	}

	return &protocol.HTTPResponse{
		StatusCode: resp.StatusCode(),
		Body:       string(resp.Body()),
		Headers:    headers,
	}, nil
}
