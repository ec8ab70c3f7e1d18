// Package probe implements the request-evaluation engine: one configured
// HTTP request, dispatched through a Transport, judged against an
// acceptance policy and an optional content match, producing an
// explainable pass/fail result.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/y0f/webprobe/internal/policy"
	"github.com/y0f/webprobe/internal/transport"
)

// agentID is appended to the outgoing User-Agent regardless of caller
// overrides, so probe traffic stays identifiable in server logs.
const agentID = "webprobe/1.0"

// Transport sends a single HTTP request and returns the response a probe
// is allowed to evaluate. transport.Client is the default implementation;
// tests substitute fakes.
type Transport interface {
	Send(ctx context.Context, req *http.Request) (*transport.Response, error)
}

// Method enumerates the supported HTTP methods.
type Method int

const (
	MethodGet Method = iota
	MethodPost
	MethodHead
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	case MethodHead:
		return http.MethodHead
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod maps a method name onto the supported set. The empty string
// defaults to GET.
func ParseMethod(s string) (Method, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", http.MethodGet:
		return MethodGet, nil
	case http.MethodPost:
		return MethodPost, nil
	case http.MethodHead:
		return MethodHead, nil
	}
	return 0, &Error{Kind: ErrUnsupportedMethod, Msg: fmt.Sprintf("unsupported method %q", s)}
}

// Config describes one probe. Target and Request are mutually exclusive;
// exactly one must be set. Name and Tags are pass-through metadata for the
// aggregation layer, the engine never reads them.
type Config struct {
	Target  string
	Request *http.Request

	Method Method
	Body   string
	Header http.Header

	// Status is the acceptance expression over the response code; empty
	// means exact-match 200.
	Status string

	// ContentMatch is a regex source matched anywhere in the response
	// body; Content is its precompiled alternative. At most one may be
	// set; neither means no content check.
	ContentMatch string
	Content      *regexp.Regexp

	Options   transport.Options
	Transport Transport

	Name string
	Tags []string
}

// Diagnostic is a configured, reusable probe. All validation happens in
// New; Run keeps no state between invocations.
type Diagnostic struct {
	target    string
	req       *http.Request
	method    Method
	body      string
	header    http.Header
	policy    policy.Policy
	content   *regexp.Regexp
	baseAgent string
	transport Transport
	name      string
	tags      []string
}

// New validates cfg and builds the Diagnostic. Errors carry an ErrKind.
func New(cfg Config) (*Diagnostic, error) {
	if cfg.Target == "" && cfg.Request == nil {
		return nil, &Error{Kind: ErrMissingTarget, Msg: "either Target or Request is required"}
	}
	if cfg.Target != "" && cfg.Request != nil {
		return nil, &Error{Kind: ErrConflictingTarget, Msg: "Target and Request are mutually exclusive"}
	}
	if cfg.Target != "" {
		u, err := url.Parse(cfg.Target)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, &Error{Kind: ErrBadTarget, Msg: fmt.Sprintf("target %q is not an absolute URL", cfg.Target)}
		}
	}

	switch cfg.Method {
	case MethodGet, MethodPost, MethodHead:
	default:
		return nil, &Error{Kind: ErrUnsupportedMethod, Msg: fmt.Sprintf("unsupported method %v", cfg.Method)}
	}

	pol, err := policy.Parse(cfg.Status)
	if err != nil {
		return nil, &Error{Kind: ErrBadPolicy, Msg: fmt.Sprintf("acceptance expression %q", cfg.Status), Err: err}
	}

	content := cfg.Content
	if cfg.ContentMatch != "" {
		if content != nil {
			return nil, &Error{Kind: ErrBadPattern, Msg: "ContentMatch and Content are mutually exclusive"}
		}
		content, err = regexp.Compile(cfg.ContentMatch)
		if err != nil {
			return nil, &Error{Kind: ErrBadPattern, Msg: fmt.Sprintf("content pattern %q", cfg.ContentMatch), Err: err}
		}
	}

	req := cfg.Request
	if req != nil && req.Body != nil && req.GetBody == nil {
		// A body the http package cannot rewind would be consumed on the
		// first run; buffer it once so every run replays it.
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, &Error{Kind: ErrBadBody, Msg: "read request body", Err: err}
		}
		req = req.Clone(context.Background())
		req.Body = io.NopCloser(bytes.NewReader(data))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		req.ContentLength = int64(len(data))
	}

	tr := cfg.Transport
	if tr == nil {
		tr = transport.New(cfg.Options)
	}

	return &Diagnostic{
		target:    cfg.Target,
		req:       req,
		method:    cfg.Method,
		body:      cfg.Body,
		header:    cfg.Header.Clone(),
		policy:    pol,
		content:   content,
		baseAgent: cfg.Options.UserAgent,
		transport: tr,
		name:      cfg.Name,
		tags:      cfg.Tags,
	}, nil
}

// Name returns the pass-through identifier for the aggregation layer.
func (d *Diagnostic) Name() string { return d.name }

// Tags returns the pass-through tags for the aggregation layer.
func (d *Diagnostic) Tags() []string { return d.tags }

// Run performs exactly one round trip and classifies it. A transport
// failure that yields no response at all is returned as an error, never
// as a CRITICAL result. A status or content mismatch is a normal result,
// never an error.
func (d *Diagnostic) Run(ctx context.Context) (Result, error) {
	if d == nil || d.transport == nil {
		return Result{}, &Error{Kind: ErrMisuse, Msg: "Run on an unconstructed Diagnostic"}
	}

	req, err := d.buildRequest(ctx)
	if err != nil {
		return Result{}, err
	}

	resp, err := d.transport.Send(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", d.targetLabel(), err)
	}

	subs := []Subresult{d.statusSubresult(resp)}
	if subs[0].Status == StatusOK && d.content != nil {
		subs = append(subs, d.contentSubresult(resp.Body))
	}

	return combine(subs), nil
}

func (d *Diagnostic) buildRequest(ctx context.Context) (*http.Request, error) {
	if d.req != nil {
		req := d.req.Clone(ctx)
		if d.req.GetBody != nil {
			body, err := d.req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("reset request body: %w", err)
			}
			req.Body = body
		}
		forceAgent(req.Header, d.baseAgent)
		return req, nil
	}

	var body io.Reader
	if d.body != "" {
		body = strings.NewReader(d.body)
	}

	req, err := http.NewRequestWithContext(ctx, d.method.String(), d.target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vv := range d.header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	if d.method == MethodPost && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	forceAgent(req.Header, d.baseAgent)
	return req, nil
}

// forceAgent appends the engine identifier to whatever agent string the
// caller configured.
func forceAgent(h http.Header, base string) {
	ua := strings.TrimSpace(h.Get("User-Agent"))
	if ua == "" {
		ua = strings.TrimSpace(base)
	}
	if !strings.HasSuffix(ua, agentID) {
		ua = strings.TrimSpace(ua + " " + agentID)
	}
	h.Set("User-Agent", ua)
}

func (d *Diagnostic) targetLabel() string {
	if d.req != nil {
		return d.req.URL.String()
	}
	return d.target
}

func (d *Diagnostic) statusSubresult(resp *transport.Response) Subresult {
	code := resp.StatusCode
	if d.policy.Matches(code) {
		return Subresult{
			Status: StatusOK,
			Info:   fmt.Sprintf("requested %s and got expected code %d", d.targetLabel(), code),
		}
	}
	return Subresult{
		Status: StatusCritical,
		Info: fmt.Sprintf("requested %s and got code %d%s, expected %s",
			d.targetLabel(), code, originNote(resp.Header), d.policy),
	}
}

// originNote recognizes diagnostic headers that proxies and HTTP client
// libraries attach to synthesized failure responses.
func originNote(h http.Header) string {
	if h.Get("X-Squid-Error") != "" {
		return " from proxy"
	}
	if h.Get("Client-Warning") != "" {
		return " from internal response"
	}
	return ""
}

func (d *Diagnostic) contentSubresult(body []byte) Subresult {
	if d.content.Match(body) {
		return Subresult{
			Status: StatusOK,
			Info:   fmt.Sprintf("content matches /%s/", d.content),
		}
	}
	return Subresult{
		Status: StatusCritical,
		Info:   fmt.Sprintf("content does not match /%s/", d.content),
	}
}
