// Package httpio performs HTTP upstream calls and decodes their JSON
// responses.
package httpio

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/hanpama/gqlforge/internal/eventbus"
	"github.com/hanpama/gqlforge/internal/events"
	"github.com/hanpama/gqlforge/internal/upstream"
)

const (
	ContentEncodingHeader = "Content-Encoding"
	AcceptEncodingHeader  = "Accept-Encoding"
	AcceptHeader          = "Accept"
	ContentTypeHeader     = "Content-Type"

	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
	EncodingBrotli  = "br"

	ContentTypeJSON = "application/json"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// NewHTTPClient returns the client used when none is supplied.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 1024,
		},
	}
}

// Client implements upstream.HTTPTransport.
type Client struct {
	http *http.Client
	bus  *eventbus.Bus
}

func New(client *http.Client, bus *eventbus.Bus) *Client {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Client{http: client, bus: bus}
}

var _ upstream.HTTPTransport = (*Client)(nil)

func (c *Client) Do(ctx context.Context, req *upstream.HTTPRequest) (any, error) {
	data, err := c.roundTrip(ctx, "http", req.Method, req.URL, req.Headers, req.Body)
	if err != nil {
		return nil, err
	}
	return decodeJSON(req.URL, data)
}

// Post sends a JSON body and returns the raw response body. It is shared
// with the GraphQL transport.
func (c *Client) Post(ctx context.Context, kind, url string, headers http.Header, body []byte) ([]byte, error) {
	return c.roundTrip(ctx, kind, http.MethodPost, url, headers, body)
}

func (c *Client) roundTrip(ctx context.Context, kind, method, url string, headers http.Header, body []byte) (data []byte, err error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range headers {
		for _, v := range vs {
			request.Header.Add(k, v)
		}
	}
	if request.Header.Get(AcceptHeader) == "" {
		request.Header.Set(AcceptHeader, ContentTypeJSON)
	}
	if len(body) > 0 && request.Header.Get(ContentTypeHeader) == "" {
		request.Header.Set(ContentTypeHeader, ContentTypeJSON)
	}
	request.Header.Set(AcceptEncodingHeader, EncodingGzip)
	request.Header.Add(AcceptEncodingHeader, EncodingDeflate)
	request.Header.Add(AcceptEncodingHeader, EncodingBrotli)

	call := c.bus.NextCall()
	start := time.Now()
	status := 0
	eventbus.Publish(ctx, c.bus, events.UpstreamStart{Call: call, Kind: kind, Method: method, URL: url})
	defer func() {
		eventbus.Publish(ctx, c.bus, events.UpstreamFinish{
			Call:     call,
			Kind:     kind,
			Method:   method,
			URL:      url,
			Status:   status,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	response, err := c.http.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()
	status = response.StatusCode

	respReader, err := respBodyReader(response)
	if err != nil {
		return nil, err
	}
	defer respReader.Close()
	data, err = io.ReadAll(respReader)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}
	if status < 200 || status > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &upstream.StatusError{URL: url, Status: status, Body: string(bytes.TrimSpace(data))}
	}
	return data, nil
}

func respBodyReader(resp *http.Response) (io.ReadCloser, error) {
	switch resp.Header.Get(ContentEncodingHeader) {
	case EncodingGzip:
		return gzip.NewReader(resp.Body)
	case EncodingDeflate:
		return flate.NewReader(resp.Body), nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

func decodeJSON(url string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", url, err)
	}
	return out, nil
}
