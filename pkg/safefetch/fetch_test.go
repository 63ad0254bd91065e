package safefetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/tidwall/gjson"
)

func TestDoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "abc123")
		_, _ = io.WriteString(w, "hello")
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got != "abc123" {
		t.Errorf("X-Request-Id = %q", got)
	}
	body, err := ReadText(resp)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if body != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestDoMethodHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("X-Api-Key"); got != "secret" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if string(payload) != `{"q":1}` {
			t.Errorf("request body = %s", payload)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	opts := &Options{
		Method: http.MethodPost,
		Header: http.Header{"X-Api-Key": []string{"secret"}},
		Body:   strings.NewReader(`{"q":1}`),
	}
	resp, err := Do(context.Background(), srv.URL, opts)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("StatusCode = %d, want 201", resp.StatusCode)
	}
}

func TestDoDecompresses(t *testing.T) {
	const payload = "compressed payload that should round-trip intact"

	encoders := map[string]func(io.Writer) io.WriteCloser{
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"deflate": func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		},
		"br": func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
		"zstd": func(w io.Writer) io.WriteCloser {
			zw, _ := zstd.NewWriter(w)
			return zw
		},
	}

	for encoding, newWriter := range encoders {
		t.Run(encoding, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.Contains(r.Header.Get("Accept-Encoding"), encoding) {
					t.Errorf("Accept-Encoding = %q, missing %q", r.Header.Get("Accept-Encoding"), encoding)
				}
				w.Header().Set("Content-Encoding", encoding)
				ew := newWriter(w)
				_, _ = io.WriteString(ew, payload)
				_ = ew.Close()
			}))
			defer srv.Close()

			resp, err := Do(context.Background(), srv.URL, nil)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if !resp.Uncompressed {
				t.Error("response not marked Uncompressed")
			}
			if resp.Header.Get("Content-Encoding") != "" {
				t.Error("Content-Encoding header should be dropped after decoding")
			}
			body, err := ReadText(resp)
			if err != nil {
				t.Fatalf("ReadText: %v", err)
			}
			if body != payload {
				t.Errorf("body = %q, want %q", body, payload)
			}
		})
	}
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	resp, err := Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if IsTransportError(resp) {
		t.Fatalf("unexpected transport error: %s", resp.Status)
	}

	var decoded struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(resp, &decoded); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !decoded.OK {
		t.Error("decoded body mismatch")
	}
}

func TestFetchConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	resp, err := Fetch(context.Background(), url, nil)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !IsTransportError(resp) {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, StatusTransportError)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	body, err := ReadText(resp)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if gjson.Get(body, "message").String() == "" {
		t.Errorf("body has no message: %s", body)
	}
}

func TestFetchCanceledContext(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	resp, err := Fetch(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !IsTransportError(resp) {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, StatusTransportError)
	}
	if !strings.Contains(resp.Status, context.Canceled.Error()) {
		t.Errorf("Status = %q, want it to mention %q", resp.Status, context.Canceled.Error())
	}
}

func TestFetchTimeoutSurfacesAsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	resp, err := Fetch(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if !IsTransportError(resp) {
		t.Fatalf("StatusCode = %d, want %d", resp.StatusCode, StatusTransportError)
	}
}
