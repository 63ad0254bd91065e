// Package safefetch wraps a fetch-style HTTP transport so that it never
// returns an error. Failures of any kind — network errors, TLS failures,
// canceled contexts, even panics out of the transport — are converted into a
// synthesized *http.Response carrying the out-of-band status
// StatusTransportError, the failure summary as the status text, and a JSON
// body describing the failure in full.
//
// Callers detect failure by checking the status code instead of handling an
// error:
//
//	resp, _ := safefetch.Fetch(ctx, "https://example.com/api", nil)
//	if safefetch.IsTransportError(resp) {
//		detail, _ := safefetch.ReadText(resp)
//		// resp.Status holds the summary, detail holds the JSON record
//	}
package safefetch

import (
	"context"
	"io"
	"net/http"
)

// StatusTransportError is the status code of every synthesized failure
// response. It lies outside the valid HTTP range (100-599), so it can never
// collide with a status an actual server produced.
const StatusTransportError = 10001

// Options is the per-request configuration bag. Every field is passed to the
// underlying transport verbatim; the wrapper never inspects it. Cancellation
// travels on the context, not on Options.
type Options struct {
	// Method is the HTTP method, defaulting to GET when empty.
	Method string

	// Header entries are added to the outgoing request unmodified.
	Header http.Header

	// Body is the request body, if any.
	Body io.Reader
}

// Transport is any fetch-style callable: given a target URL and optional
// request options, it produces a response or fails. The ambient Do qualifies,
// as does anything the caller supplies (test doubles, instrumented clients).
type Transport func(ctx context.Context, target string, opts *Options) (*http.Response, error)

// Wrap returns a transport with the same calling convention as t that never
// returns a non-nil error and never panics. Successful responses are passed
// through untouched, same value, zero transformation. Any failure — a non-nil
// error or a panic, whatever the panic value — is normalized into a
// synthesized response with StatusCode StatusTransportError.
//
// The wrapper adds no retries, no logging and no extra suspension points;
// cancellation is delegated to t through ctx and surfaces as an ordinary
// normalized failure.
func Wrap(t Transport) Transport {
	return func(ctx context.Context, target string, opts *Options) (resp *http.Response, err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				resp = normalize(recovered)
				err = nil
			}
		}()

		inner, callErr := t(ctx, target, opts)
		if callErr != nil {
			return normalize(callErr), nil
		}
		return inner, nil
	}
}

// Fetch is the ready-to-use wrapped form of the ambient transport Do.
var Fetch = Wrap(Do)

// IsTransportError reports whether resp is a synthesized failure response.
func IsTransportError(resp *http.Response) bool {
	return resp != nil && resp.StatusCode == StatusTransportError
}
