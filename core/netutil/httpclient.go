package netutil

import (
	"cmp"
	"net/http"
	"time"
)

// ClientOptions tunes BuildHTTPClient. Zero values pick the defaults.
type ClientOptions struct {
	// Timeout bounds a whole request including the body read. Default 30s.
	Timeout time.Duration
	// ResponseHeaderTimeout bounds the wait for response headers. Default 5s.
	ResponseHeaderTimeout time.Duration
	// RetryAttempts is how many times a request failing with a transient
	// transport error is sent again. Zero disables retries.
	RetryAttempts int
	// RetryBackoff is the first pause between attempts; it doubles each time. Default 2s.
	RetryBackoff time.Duration
}

// BuildHTTPClient returns a client on a pooled keep-alive transport,
// optionally wrapped in retries of transient failures.
func BuildHTTPClient(opts ClientOptions) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConnsPerHost = 10
	base.IdleConnTimeout = 30 * time.Second
	base.TLSHandshakeTimeout = 5 * time.Second
	base.ResponseHeaderTimeout = cmp.Or(opts.ResponseHeaderTimeout, 5*time.Second)

	var rt http.RoundTripper = base
	if opts.RetryAttempts > 0 {
		rt = &retryTransport{
			next:    base,
			retries: opts.RetryAttempts,
			backoff: cmp.Or(opts.RetryBackoff, 2*time.Second),
		}
	}
	return &http.Client{Timeout: cmp.Or(opts.Timeout, 30*time.Second), Transport: rt}
}

// retryTransport resends requests that failed before a response arrived.
// A request whose body cannot be rewound is sent only once.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	wait := t.backoff
	for attempt := 0; ; attempt++ {
		resp, err := t.next.RoundTrip(req)
		if err == nil || attempt == t.retries || !ShouldRetry(err) {
			return resp, err
		}
		again, ok := rewind(req)
		if !ok {
			return nil, err
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		req, wait = again, wait*2
	}
}

// rewind returns a copy of req that can be sent again.
func rewind(req *http.Request) (*http.Request, bool) {
	again := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return again, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	again.Body = body
	return again, true
}
