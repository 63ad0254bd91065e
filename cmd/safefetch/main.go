// Package main provides a small curl-like front end over the safefetch
// library. It issues a single request through the never-failing wrapped
// transport and reports transport failures via the sentinel status rather
// than an error path, demonstrating the intended caller pattern.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nghyane/safefetch/internal/logging"
	"github.com/nghyane/safefetch/pkg/safefetch"
	flag "github.com/spf13/pflag"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	var (
		method      string
		headers     []string
		data        string
		timeout     time.Duration
		verbose     bool
		showVersion bool
	)
	flag.StringVarP(&method, "request", "X", http.MethodGet, "HTTP method")
	flag.StringArrayVarP(&headers, "header", "H", nil, "request header as 'Name: value', repeatable")
	flag.StringVarP(&data, "data", "d", "", "request body; implies POST unless -X is given")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "overall request timeout")
	flag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("safefetch Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)
		return
	}
	if verbose {
		logging.SetLevel(slog.LevelDebug)
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: safefetch [flags] URL")
		flag.PrintDefaults()
		os.Exit(2)
	}
	target := flag.Arg(0)

	opts := &safefetch.Options{Method: method, Header: http.Header{}}
	if data != "" {
		opts.Body = strings.NewReader(data)
		if !flag.CommandLine.Changed("request") {
			opts.Method = http.MethodPost
		}
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok {
			logging.Fatalf("invalid header %q, want 'Name: value'", h)
		}
		opts.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Debugf("%s %s", opts.Method, target)
	resp, _ := safefetch.Fetch(ctx, target, opts)

	body, err := safefetch.ReadText(resp)
	if err != nil {
		logging.Fatalf("read response body: %v", err)
	}

	if safefetch.IsTransportError(resp) {
		logging.WithFields(logging.Fields{"status": resp.StatusCode}).Errorf("transport failed: %s", resp.Status)
		fmt.Fprintln(os.Stderr, body)
		os.Exit(1)
	}

	logging.Debugf("%s", resp.Status)
	fmt.Print(body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		fmt.Println()
	}
}
