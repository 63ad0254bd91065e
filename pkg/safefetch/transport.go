package safefetch

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// acceptEncodings is advertised on outgoing requests unless the caller set
// their own Accept-Encoding; decodeBody understands every entry.
const acceptEncodings = "gzip, deflate, br, zstd"

// TransportConfig holds the tuning knobs for the shared ambient transport.
// Changing values after the first call through Do has no effect.
var TransportConfig = struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	ResponseHeaderTimeout time.Duration
	DialTimeout           time.Duration
	KeepAlive             time.Duration
}{
	MaxIdleConns:          256,
	MaxIdleConnsPerHost:   32,
	MaxConnsPerHost:       64,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 60 * time.Second,
	DialTimeout:           30 * time.Second,
	KeepAlive:             30 * time.Second,
}

func configureHTTP2(t *http.Transport) {
	h2, err := http2.ConfigureTransports(t)
	if err != nil {
		return
	}
	h2.ReadIdleTimeout = 30 * time.Second
	h2.PingTimeout = 15 * time.Second
	h2.StrictMaxConcurrentStreams = true
}

func baseTransport() *http.Transport {
	t := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          TransportConfig.MaxIdleConns,
		MaxIdleConnsPerHost:   TransportConfig.MaxIdleConnsPerHost,
		MaxConnsPerHost:       TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:       TransportConfig.IdleConnTimeout,
		TLSHandshakeTimeout:   TransportConfig.TLSHandshakeTimeout,
		ExpectContinueTimeout: TransportConfig.ExpectContinueTimeout,
		ResponseHeaderTimeout: TransportConfig.ResponseHeaderTimeout,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	configureHTTP2(t)
	return t
}

var sharedTransport = baseTransport()

var sharedClient = &http.Client{Transport: sharedTransport}

func init() {
	sharedTransport.DialContext = (&net.Dialer{
		Timeout:   TransportConfig.DialTimeout,
		KeepAlive: TransportConfig.KeepAlive,
	}).DialContext
}

// Do is the ambient transport: it executes a single HTTP request on the
// shared tuned client and transparently decompresses the response body based
// on Content-Encoding. It conforms to Transport and is what Fetch wraps;
// callers who need a different client supply their own Transport to Wrap.
func Do(ctx context.Context, target string, opts *Options) (*http.Response, error) {
	method := http.MethodGet
	var body io.Reader
	if opts != nil {
		if opts.Method != "" {
			method = opts.Method
		}
		body = opts.Body
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if opts != nil {
		for key, values := range opts.Header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", acceptEncodings)
	}

	resp, err := sharedClient.Do(req)
	if err != nil {
		return nil, err
	}

	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		decoded, err := decodeBody(resp.Body, enc)
		if err != nil {
			return nil, err
		}
		if decoded != resp.Body {
			resp.Body = decoded
			resp.Header.Del("Content-Encoding")
			resp.Header.Del("Content-Length")
			resp.ContentLength = -1
			resp.Uncompressed = true
		}
	}
	return resp, nil
}
