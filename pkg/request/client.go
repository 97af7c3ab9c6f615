package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"resty.dev/v3"
)

// HTTPClient wraps a resty client with the decompression, redirect, and
// passthrough behavior the long-polling transport needs.
type HTTPClient struct {
	client  *resty.Client
	options *clientOptions
	isDone  atomic.Bool
}

// NewHTTPClient builds an HTTPClient from the given functional options.
func NewHTTPClient(options ...ClientOption) *HTTPClient {
	opts := applyOptions(options...)

	client := resty.New()

	client.AddContentDecompresser("br", decompressBrotli)
	client.AddContentDecompresser("zstd", decompressZstd)

	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if !opts.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= opts.MaxRedirects {
			return fmt.Errorf("maximum number of redirects (%d) followed", opts.MaxRedirects)
		}
		return nil
	}))

	if opts.Logger != nil {
		client.SetLogger(opts.Logger)
	}

	if opts.BaseURL != "" {
		client.SetBaseURL(opts.BaseURL)
	}

	if opts.Transport != nil {
		client.SetTransport(opts.Transport)
	}

	if opts.TLSClientConfig != nil {
		client.SetTLSClientConfig(opts.TLSClientConfig)
	}

	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	if opts.Jar != nil {
		client.SetCookieJar(opts.Jar)
	}

	return &HTTPClient{
		client:  client,
		options: opts,
	}
}

// Request issues method against url with the given passthrough options.
func (c *HTTPClient) Request(ctx context.Context, method, url string, options *Options) (*Response, error) {
	req := c.client.R().SetContext(ctx)

	if err := c.setRequestBody(req, options); err != nil {
		return nil, err
	}
	c.setQuery(req, options)
	c.setRequestHeaders(req, options)
	c.setAuthentication(req, options)
	c.setCookies(req, options)

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}

	return &Response{resp}, nil
}

// Get issues a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string, options *Options) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, options)
}

// Post issues a POST request.
func (c *HTTPClient) Post(ctx context.Context, url string, options *Options) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, options)
}

// Close releases the underlying transport and connection pool.
func (c *HTTPClient) Close() error {
	if c.isDone.CompareAndSwap(false, true) {
		if transport, ok := c.client.Transport().(io.Closer); ok {
			defer transport.Close()
		}
		return c.client.Close()
	}
	return nil
}

func (c *HTTPClient) setRequestBody(req *resty.Request, options *Options) error {
	if options == nil || options.Body == nil {
		return nil
	}
	switch v := options.Body.(type) {
	case string, []byte, io.Reader:
		req.SetBody(v)
	default:
		return fmt.Errorf("request: unsupported body type %T", options.Body)
	}
	return nil
}

func (c *HTTPClient) setRequestHeaders(req *resty.Request, options *Options) {
	req.SetHeaders(map[string]string{
		"User-Agent": "socketio-client-go/1.0",
		"Accept":     "*/*",
	})

	if options != nil && len(options.Headers) > 0 {
		req.SetHeaderMultiValues(options.Headers)
	}
}

func (c *HTTPClient) setQuery(req *resty.Request, options *Options) {
	if options != nil && len(options.Query) > 0 {
		req.SetQueryParamsFromValues(options.Query)
	}
}

func (c *HTTPClient) setCookies(req *resty.Request, options *Options) {
	if options != nil && len(options.Cookies) > 0 {
		req.SetCookies(options.Cookies)
	}
}

func (c *HTTPClient) setAuthentication(req *resty.Request, options *Options) {
	if options == nil {
		return
	}
	if options.BasicAuth != nil && options.BasicAuth.Username != "" {
		req.SetBasicAuth(options.BasicAuth.Username, options.BasicAuth.Password)
	}
	if options.BearerToken != "" {
		req.SetAuthToken(options.BearerToken)
	}
}
