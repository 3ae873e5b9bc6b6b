package hostapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/wpgc/quiz-archiver/internal/bufpool"
	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/resilience"
)

// moodleException is the error envelope Moodle web services return instead
// of a normal payload.
type moodleException struct {
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
	DebugInfo string `json:"debuginfo"`
}

func (e *moodleException) isPresent() bool {
	return e.Exception != "" || e.ErrorCode != ""
}

// client holds everything both wire variants share: the HTTP transport,
// host endpoints, token, and the resilience wrappers from SPEC_FULL §4.8: a
// circuit breaker shared by every client of the same host base URL (via
// resilience.Manager), and a rate limiter owned by this client instance.
type client struct {
	httpClient *http.Client
	logger     *logging.ArchiverLogger

	baseURL       string
	webserviceURL string
	uploadURL     string
	token         string

	breaker     *resilience.CircuitBreaker
	rateLimiter *resilience.HostRateLimiter
}

// newClient builds the shared transport. Every request made through it is
// bounded by one overall 70s client timeout covering connect, send and read
// together. There is no separate connect timeout and no longer limit for
// long calls such as uploads; a ctx deadline can shorten that bound but not
// extend it.
func newClient(baseURL, webserviceURL, uploadURL, token string, skipTLSVerify bool, proxyURL string, breakers *resilience.Manager, logger *logging.ArchiverLogger) *client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: skipTLSVerify},
	}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}

	return &client{
		httpClient:    &http.Client{Transport: transport, Timeout: 70 * time.Second},
		logger:        logger,
		baseURL:       baseURL,
		webserviceURL: webserviceURL,
		uploadURL:     uploadURL,
		token:         token,
		breaker:       breakers.GetBreaker(baseURL),
		rateLimiter:   resilience.NewHostRateLimiter(),
	}
}

// call invokes one web-service function with the given query parameters,
// wrapped in the rate limiter and circuit breaker, applying the Moodle 4.3
// HTML-unwrap quirk before decoding. A Moodle exception envelope in the
// response is surfaced as an ErrCodeHostProtocol error.
func (c *client) call(ctx context.Context, function string, params url.Values, out interface{}) error {
	if err := c.rateLimiter.WaitAPI(ctx); err != nil {
		return logging.ErrTimeout("host_call", "rate_limit_wait").WithCause(err)
	}

	return c.breaker.Call(ctx, func(ctx context.Context) error {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		q.Set("wstoken", c.token)
		q.Set("wsfunction", function)
		q.Set("moodlewsrestformat", "json")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.webserviceURL+"?"+q.Encode(), nil)
		if err != nil {
			return logging.ErrInternal("failed to build host request", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return logging.ErrHostUnreachable(fmt.Sprintf("call to %s failed", function), err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return logging.ErrHostUnreachable("failed to read host response body", err)
		}
		body = stripHTMLWrapper(body)

		var exc moodleException
		if json.Unmarshal(body, &exc) == nil && exc.isPresent() {
			return logging.ErrHostProtocol(fmt.Sprintf("host returned %s: %s", exc.ErrorCode, exc.Message), nil).
				WithContext("debuginfo", exc.DebugInfo).
				WithContext("errorcode", exc.ErrorCode)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return logging.ErrHostProtocol("failed to decode host response", err)
		}
		return nil
	})
}

// probe implements the shared connection-probe semantics: call a function
// with a valid token but missing required parameters, and treat
// errorcode=="invalidparameter" as success (the host is reachable and the
// token is accepted; it simply rejected the deliberately incomplete call).
func (c *client) probe(ctx context.Context, function string) (bool, error) {
	err := c.call(ctx, function, url.Values{}, nil)
	if err == nil {
		return true, nil
	}

	if archiverErr, ok := err.(*logging.ArchiverError); ok && archiverErr.Code == logging.ErrCodeHostProtocol {
		if errorCode, _ := archiverErr.Context["errorcode"].(string); errorCode == "invalidparameter" {
			return true, nil
		}
	}
	return false, err
}

// BaseURL returns the host base URL this client targets.
func (c *client) BaseURL() string {
	return c.baseURL
}

// downloadFile streams url to dir/filename, enforcing maxBytes, and returns
// the destination path. It does not check a SHA-1; callers that have an
// expected digest verify the returned file themselves. Used by both the
// attachment downloader and the backup pipeline.
func (c *client) downloadFile(ctx context.Context, downloadURL, dir, filename string, maxBytes int64) (string, error) {
	if err := c.rateLimiter.WaitFile(ctx); err != nil {
		return "", logging.ErrTimeout("file_download", "rate_limit_wait").WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return "", logging.ErrInternal("failed to build download request", err)
	}
	req.Header.Set("Authorization", "token="+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", logging.ErrHostUnreachable("download request failed", err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", logging.ErrInternal("failed to create download directory", err)
	}

	destPath := dir + string(os.PathSeparator) + filename
	f, err := os.Create(destPath)
	if err != nil {
		return "", logging.ErrInternal("failed to create destination file", err).WithFile(filename)
	}
	defer f.Close()

	buf := bufpool.Backup.Get()
	defer bufpool.Backup.Put(buf)

	written, err := io.CopyBuffer(f, io.LimitReader(resp.Body, maxBytes+1), buf)
	if err != nil {
		return "", logging.ErrHostUnreachable("download stream failed", err).WithFile(filename)
	}
	if written > maxBytes {
		return "", logging.ErrIntegrity(filename, "downloaded file exceeds maximum allowed size")
	}
	return destPath, nil
}
