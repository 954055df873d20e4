// Package api is the HTTP client of the rescue platform's REST service.
//
// Every call except sign-in and sign-up carries the session's bearer
// credential. A 401 on any call fires the OnUnauthorized hook before the error
// is returned; callers cannot opt out.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/errs"
)

// DefaultBaseURL is the collaborator's default location.
const DefaultBaseURL = "http://localhost:8080/api"

// HeaderRequestID carries a per-request UUID for correlating client and server logs.
const HeaderRequestID = "X-Request-ID"

const maxErrorBody = 64 << 10

// TokenSource yields the bearer credential at request time.
type TokenSource interface {
	Token() string
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Tokens  TokenSource
	// HTTPClient is used as is when set; Timeout and logging are then the caller's business.
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
	// OnUnauthorized runs on every 401 response.
	OnUnauthorized func()
}

// Client talks to the REST service.
type Client struct {
	base           string
	http           *http.Client
	tokens         TokenSource
	log            *zap.Logger
	onUnauthorized func()
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url %q: invalid", base)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: &loggingTransport{next: http.DefaultTransport, log: log},
		}
	}
	return &Client{
		base:           strings.TrimRight(u.String(), "/"),
		http:           hc,
		tokens:         opts.Tokens,
		log:            log,
		onUnauthorized: opts.OnUnauthorized,
	}, nil
}

// Error is a non-2xx response or a transport failure.
type Error struct {
	Status  int // 0 for transport failures
	Message string
	kind    error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%v: %s", e.Unwrap(), e.Message)
	}
	return fmt.Sprintf("%v (%d): %s", e.Unwrap(), e.Status, e.Message)
}

// Unwrap exposes the errs sentinel matching the status.
func (e *Error) Unwrap() error {
	if e.kind != nil {
		return e.kind
	}
	return kindFor(e.Status)
}

func kindFor(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return errs.ErrValidation
	case status == http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case status == http.StatusForbidden:
		return errs.ErrForbidden
	case status == http.StatusNotFound:
		return errs.ErrNotFound
	case status == http.StatusConflict:
		return errs.ErrConflict
	default:
		return errs.ErrUnavailable
	}
}

// request describes one call.
type request struct {
	method string
	path   string
	query  url.Values
	// body is JSON-encoded unless raw is set.
	body        any
	raw         io.Reader
	contentType string
	public      bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	var body io.Reader
	contentType := r.contentType
	switch {
	case r.raw != nil:
		body = r.raw
	case r.body != nil:
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	target := c.base + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if id, err := uuid.NewV4(); err == nil {
		req.Header.Set(HeaderRequestID, id.String())
	}
	if !r.public && c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &Error{Message: err.Error(), kind: errs.ErrUnavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, b), kind: kindFor(resp.StatusCode)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Status: resp.StatusCode, Message: err.Error(), kind: errs.ErrUnavailable}
	}
	if err := decode(b, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

// decode tolerates plain-text bodies for string results; some endpoints reply text/plain.
func decode(b []byte, out any) error {
	if s, ok := out.(*string); ok {
		if err := json.Unmarshal(b, s); err != nil {
			*s = strings.TrimSpace(string(b))
		}
		return nil
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(b, out)
}

func errorMessage(status int, b []byte) string {
	var m messageResponse
	if json.Unmarshal(b, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	if s := strings.TrimSpace(string(b)); s != "" && !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "<") {
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	return http.StatusText(status)
}

// loggingTransport logs request metadata only.
type loggingTransport struct {
	next http.RoundTripper
	log  *zap.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	// только метаданные, тела не логируем
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get(HeaderRequestID)),
		zap.Duration("dur", time.Since(start)),
	}
	if err != nil {
		t.log.Warn("http", append(fields, zap.Error(err))...)
		return nil, err
	}
	t.log.Debug("http", append(fields, zap.Int("status", resp.StatusCode))...)
	return resp, nil
}

// NewLoggingTransport wraps next with request logging; nil next means http.DefaultTransport.
func NewLoggingTransport(next http.RoundTripper, log *zap.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next, log: log}
}

func escape(s string) string { return url.PathEscape(s) }
