// Package upstream is the DataFetcher: the one place that talks to the PHP
// endpoints behind the console.
//
// Every call is a single form-encoded POST of {data: <payload>} to
// <webservices_url>/<script>. Whether a script expects its payload (and
// answers) encrypted is a property of the endpoint, handled here by a codec,
// so console and dispatch code never branch on it.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/cryptobox"
	"github.com/dalemusser/paydesk/internal/app/system/envelope"
	"github.com/dalemusser/paydesk/internal/domain/models"
	"go.uber.org/zap"
)

// ContentType is sent with every request.
const ContentType = "application/x-www-form-urlencoded;charset=UTF-8"

// DefaultTimeout applies when neither the client nor the endpoint sets one.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 32 << 20

// Poster is what consoles and dispatchers need from the DataFetcher.
type Poster interface {
	Post(ctx context.Context, ep models.Endpoint, payload any) (envelope.Envelope, error)
}

// Config configures a Client.
type Config struct {
	BaseURL    string         // webservices URL, e.g. https://bo.example.com/ws
	Timeout    time.Duration  // default per-request timeout
	Box        *cryptobox.Box // nil disables encrypted endpoints
	HTTPClient *http.Client   // optional; a plain client is used otherwise
	Logger     *zap.Logger
}

// Client posts to the PHP endpoints. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	timeout time.Duration
	box     *cryptobox.Box
	http    *http.Client
	log     *zap.Logger
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	base, err := ParseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: base, timeout: timeout, box: cfg.Box, http: hc, log: log}, nil
}

// ParseBaseURL checks that raw is an absolute http(s) URL.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid webservices URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webservices URL %q: need absolute http(s) URL", raw)
	}
	return u, nil
}

// URL returns the absolute URL of script.
func (c *Client) URL(script string) string {
	return c.base.JoinPath(strings.TrimLeft(script, "/")).String()
}

// Post sends payload to the endpoint and returns the normalized envelope.
//
// A transport failure (network error, HTTP error status, unreadable body)
// returns *TransportError. A well-formed response whose status is not
// ok/success returns the envelope together with *AppError. Failures before
// the request is issued wrap ErrNotSent. No retries.
func (c *Client) Post(ctx context.Context, ep models.Endpoint, payload any) (envelope.Envelope, error) {
	cd, err := c.codecFor(ep)
	if err != nil {
		return envelope.Envelope{}, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return envelope.Envelope{}, fmt.Errorf("%w: encode payload for %s: %w", ErrNotSent, ep.Script, err)
	}
	data, err := cd.encode(raw)
	if err != nil {
		return envelope.Envelope{}, &TransportError{Script: ep.Script, Err: fmt.Errorf("%w: %w", ErrNotSent, err)}
	}
	form := url.Values{"data": {data}}.Encode()

	timeout := c.timeout
	if t := ep.Timeout.Std(); t > 0 {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(ep.Script), strings.NewReader(form))
	if err != nil {
		return envelope.Envelope{}, &TransportError{Script: ep.Script, Err: fmt.Errorf("%w: %w", ErrNotSent, err)}
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("upstream request failed",
			zap.String("script", ep.Script),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return envelope.Envelope{}, &TransportError{Script: ep.Script, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return envelope.Envelope{}, &TransportError{Script: ep.Script, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		c.log.Warn("upstream http error",
			zap.String("script", ep.Script),
			zap.Int("status", resp.StatusCode))
		return envelope.Envelope{}, &TransportError{Script: ep.Script, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	env, err := envelope.Decode(bytes.TrimSpace(body), cd.decrypter())
	if err != nil {
		return envelope.Envelope{}, &TransportError{Script: ep.Script, Err: err}
	}

	c.log.Debug("upstream response",
		zap.String("script", ep.Script),
		zap.String("status", env.Status),
		zap.Int("records", len(env.Records)),
		zap.Duration("elapsed", time.Since(start)))

	if !env.OK {
		return env, &AppError{Script: ep.Script, Status: env.Status, Message: env.Message}
	}
	return env, nil
}

// ErrNoCrypto is returned for encrypted endpoints when no passphrase is
// configured.
var ErrNoCrypto = fmt.Errorf("%w: endpoint is encrypted but no crypto passphrase is configured", ErrNotSent)

// codec applies the endpoint's payload encoding on the way out and
// provides the decrypter for the way back.
type codec interface {
	encode(payload []byte) (string, error)
	decrypter() envelope.Decrypter
}

type plainCodec struct{}

func (plainCodec) encode(p []byte) (string, error) { return string(p), nil }
func (plainCodec) decrypter() envelope.Decrypter   { return nil }

type cryptoCodec struct{ box *cryptobox.Box }

func (c cryptoCodec) encode(p []byte) (string, error) { return c.box.Encrypt(p) }
func (c cryptoCodec) decrypter() envelope.Decrypter   { return c.box }

func (c *Client) codecFor(ep models.Endpoint) (codec, error) {
	if !ep.Encrypted {
		return plainCodec{}, nil
	}
	if c.box == nil {
		return nil, ErrNoCrypto
	}
	return cryptoCodec{box: c.box}, nil
}
