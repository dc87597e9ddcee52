// remote_source.go: HTTP(S) content source for Morpheus
//
// URL sources fetch a document with a bounded timeout and a bounded retry
// policy (hashicorp/go-retryablehttp), and derive a format hint from the
// response Content-Type. Transport failures, timeouts and non-2xx statuses
// are I/O errors with distinct codes; they are never reported as format
// errors.
//
// USAGE:
//   data, err := morpheus.ParseURL(ctx, "https://config.example.com/values", "", nil)
//
//   opts := morpheus.DefaultRemoteOptions()
//   opts.Headers["Authorization"] = "Bearer " + token
//   src, err := morpheus.NewURLSource(endpoint, "yaml", opts)
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package morpheus

import (
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/agilira/go-errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// RemoteOptions provides options for remote content loading.
// Use DefaultRemoteOptions() for sensible defaults.
type RemoteOptions struct {
	// Timeout for a single request attempt
	Timeout time.Duration

	// RetryAttempts for failed requests (0 disables retries)
	RetryAttempts int

	// RetryDelay is the minimum wait between attempts
	RetryDelay time.Duration

	// RetryDelayMax caps the exponential backoff
	RetryDelayMax time.Duration

	// Headers sent with every request
	Headers map[string]string

	// Logger receives request and response traces at debug level
	Logger zerolog.Logger
}

// DefaultRemoteOptions provides sensible defaults for remote loading.
func DefaultRemoteOptions() *RemoteOptions {
	return &RemoteOptions{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    1 * time.Second,
		RetryDelayMax: 10 * time.Second,
		Headers:       make(map[string]string),
		Logger:        zerolog.Nop(),
	}
}

// withDefaults fills unset fields from DefaultRemoteOptions.
func (o *RemoteOptions) withDefaults() *RemoteOptions {
	defaults := DefaultRemoteOptions()
	if o == nil {
		return defaults
	}

	options := *o
	if options.Timeout <= 0 {
		options.Timeout = defaults.Timeout
	}
	if options.RetryAttempts < 0 {
		options.RetryAttempts = 0
	}
	if options.RetryDelay <= 0 {
		options.RetryDelay = defaults.RetryDelay
	}
	if options.RetryDelayMax < options.RetryDelay {
		options.RetryDelayMax = options.RetryDelay
	}
	if options.Headers == nil {
		options.Headers = make(map[string]string)
	}
	return &options
}

// URLSource fetches content over HTTP or HTTPS.
type URLSource struct {
	url     string
	format  Format
	options *RemoteOptions
	client  *retryablehttp.Client
}

// NewURLSource creates a URL source. The format token and the URL are
// validated here, before any network access.
func NewURLSource(rawURL, format string, opts *RemoteOptions) (*URLSource, error) {
	declared, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}

	if err := validateRemoteURL(rawURL); err != nil {
		return nil, err
	}

	options := opts.withDefaults()

	return &URLSource{
		url:     rawURL,
		format:  declared,
		options: options,
		client:  newRetryingClient(options),
	}, nil
}

// validateRemoteURL accepts absolute http and https URLs only.
func validateRemoteURL(rawURL string) error {
	if rawURL == "" {
		return errors.New(ErrCodeInvalidURL, "remote URL cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidURL, "invalid remote URL")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New(ErrCodeInvalidURL,
			fmt.Sprintf("unsupported URL scheme %q (expected http or https)", parsed.Scheme))
	}

	if parsed.Host == "" {
		return errors.New(ErrCodeInvalidURL, "remote URL must have a host")
	}

	return nil
}

// newRetryingClient builds the retrying HTTP client for one source.
func newRetryingClient(options *RemoteOptions) *retryablehttp.Client {
	logger := options.Logger
	return &retryablehttp.Client{
		HTTPClient:   &http.Client{Timeout: options.Timeout},
		Logger:       nil,
		RetryWaitMin: options.RetryDelay,
		RetryWaitMax: options.RetryDelayMax,
		RetryMax:     options.RetryAttempts,
		RequestLogHook: func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			logger.Debug().Str("url", req.URL.String()).Int("request_attempt_count", attempt).
				Msg("sending http request")
		},
		ResponseLogHook: func(_ retryablehttp.Logger, resp *http.Response) {
			logger.Debug().Str("url", resp.Request.URL.String()).Int("http_status_code", resp.StatusCode).
				Msg("received http response")
		},
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      retryablehttp.DefaultBackoff,
		ErrorHandler: retryablehttp.PassthroughErrorHandler,
	}
}

// Origin returns the URL.
func (s *URLSource) Origin() string {
	return s.url
}

// Load fetches the document. The hint is the declared format, else the
// format mapped from the response Content-Type.
func (s *URLSource) Load(ctx context.Context) (*Payload, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidURL, "failed to build request").
			WithContext("url", s.url)
	}
	for key, value := range s.options.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, s.url)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.New(ErrCodeRemoteStatus,
			fmt.Sprintf("GET %s returned %s", s.url, resp.Status)).
			WithContext("status", resp.Status)
	}

	data, err := readLimited(resp.Body, s.url)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Data:   data,
		Hint:   resolveHint(s.format, FormatFromContentType(resp.Header.Get("Content-Type"))),
		Origin: s.url,
	}, nil
}

// classifyTransportError maps a failed request to a timeout or an
// unavailable-remote error.
func classifyTransportError(err error, rawURL string) error {
	if isTimeout(err) {
		return errors.Wrap(err, ErrCodeRemoteTimeout,
			fmt.Sprintf("timed out fetching %s", rawURL)).
			WithContext("url", rawURL)
	}
	return errors.Wrap(err, ErrCodeRemoteUnavailable,
		fmt.Sprintf("failed to fetch %s", rawURL)).
		WithContext("url", rawURL)
}

func isTimeout(err error) bool {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return goerrors.As(err, &netErr) && netErr.Timeout()
}
