// Package transport performs single HTTP round trips for probes. Each
// Send builds a fresh client with keep-alives disabled: a probe measures
// one request, never a pooled connection.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const maxBodyRead = 1 << 20 // 1MB

// DefaultTimeout bounds a round trip when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Response is the observable outcome of one HTTP round trip: everything
// the evaluation engine is allowed to look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Options control how a round trip is performed. The pointer booleans
// distinguish "unset" from an explicit false, so per-probe overrides can
// turn a shared default back off.
type Options struct {
	Timeout         time.Duration
	UserAgent       string
	FollowRedirects *bool  // nil means follow
	SkipTLSVerify   *bool  // nil means verify
	ProxyURL        string // http://, https:// or socks5://
	AllowPrivate    *bool  // nil means block private/reserved ranges
}

func enabled(b *bool) bool { return b != nil && *b }

// Client sends probe requests. The zero value is not usable; construct
// with New.
type Client struct {
	opts Options
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{opts: opts}
}

// Send performs the round trip and drains up to 1MB of body. A nil error
// means a response existed, whatever its status code; connection, DNS and
// timeout failures return an error with no response.
func (c *Client) Send(ctx context.Context, req *http.Request) (*Response, error) {
	dialer := &net.Dialer{
		Timeout: c.opts.Timeout,
		Control: maybeDialControl(enabled(c.opts.AllowPrivate)),
	}

	ht := &http.Transport{
		DialContext: dialer.DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: enabled(c.opts.SkipTLSVerify),
		},
		DisableKeepAlives: true,
	}

	applyProxy(ht, c.opts.ProxyURL, dialer.DialContext)

	client := &http.Client{
		Transport: ht,
		Timeout:   c.opts.Timeout,
	}
	if c.opts.FollowRedirects != nil && !*c.opts.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if c.opts.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}
