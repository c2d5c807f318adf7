// Package client talks to the Textual redaction service.
package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hpungsan/textual/internal/config"
	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/grouping"
	"github.com/hpungsan/textual/internal/logger"
	"github.com/hpungsan/textual/internal/redaction"
)

// Service endpoints.
const (
	PathRedact     = "/api/redact"
	PathRedactBulk = "/api/redact/bulk"
	PathRedactJSON = "/api/redact/json"
	PathRedactXML  = "/api/redact/xml"
	PathRedactHTML = "/api/redact/html"
	PathUnredact   = "/api/unredact"
)

// SeedHeader overrides the service's random seeding for synthesis.
const SeedHeader = "textual-random-seed"

const (
	userAgent      = "textual-go"
	backoffBase    = 200 * time.Millisecond
	backoffCap     = 5 * time.Second
	backoffJitter  = 50 * time.Millisecond
	maxRetryBudget = 10
)

// Client is a redaction service client. It is safe for concurrent use.
type Client struct {
	http       *resty.Client
	limiter    *rate.Limiter
	maxRetries uint64
	backoff    time.Duration
	defaults   RedactOptions
	log        *logger.Logger
}

// New builds a client from configuration. An API key is required.
func New(cfg *config.Config, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.NewUnauthorized(fmt.Sprintf("API key is required (set api_key in config or %s)", config.EnvAPIKey))
	}
	if log == nil {
		log = logger.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetHeader("Authorization", cfg.APIKey)
	if cfg.InsecureSkipVerify {
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) // #nosec G402 -- opt-in for self-hosted deployments
	}

	retries := cfg.Retries()
	if retries < 0 {
		retries = 0
	}
	if retries > maxRetryBudget {
		retries = maxRetryBudget
	}

	c := &Client{
		http:       httpClient,
		maxRetries: uint64(retries), // #nosec G115 -- bounded above
		backoff:    backoffBase,
		defaults:   DefaultOptions(cfg),
		log:        log.WithComponent("client"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c, nil
}

// DefaultOptions returns the redaction settings configured in cfg.
func DefaultOptions(cfg *config.Config) RedactOptions {
	opts := RedactOptions{
		GeneratorDefault: redaction.PiiState(cfg.GeneratorDefault),
		CustomEntities:   cfg.CustomEntities,
		RandomSeed:       cfg.RandomSeed,
	}
	if len(cfg.GeneratorConfig) > 0 {
		opts.GeneratorConfig = make(map[string]redaction.PiiState, len(cfg.GeneratorConfig))
		for label, state := range cfg.GeneratorConfig {
			opts.GeneratorConfig[label] = redaction.PiiState(state)
		}
	}
	return opts
}

// Defaults returns the configured redaction settings.
func (c *Client) Defaults() RedactOptions {
	return c.defaults
}

// Redact redacts one text.
func (c *Client) Redact(ctx context.Context, text string, opts RedactOptions) (*redaction.Response, error) {
	p, err := BuildPayload(opts)
	if err != nil {
		return nil, err
	}
	p.Text = &text

	var out redaction.Response
	if err := c.post(ctx, PathRedact, p, redaction.RuneLen(text), opts.RandomSeed, &out); err != nil {
		return nil, err
	}
	return normalize(&out), nil
}

// RedactFunc adapts Redact to the grouping collaborator signature.
func (c *Client) RedactFunc(opts RedactOptions) grouping.RedactFunc {
	return func(ctx context.Context, text string) (*redaction.Response, error) {
		return c.Redact(ctx, text, opts)
	}
}

type bulkReplacement struct {
	Idx int `json:"idx"`
	redaction.Replacement
}

type bulkWire struct {
	BulkText          []string          `json:"bulkText"`
	BulkRedactedText  []string          `json:"bulkRedactedText"`
	Usage             int               `json:"usage"`
	DeIdentifyResults []bulkReplacement `json:"deIdentifyResults"`
}

// RedactBulk redacts several independent texts in one request.
func (c *Client) RedactBulk(ctx context.Context, texts []string, opts RedactOptions) (*redaction.BulkResponse, error) {
	p, err := BuildPayload(opts)
	if err != nil {
		return nil, err
	}
	p.BulkText = texts
	if p.BulkText == nil {
		p.BulkText = []string{}
	}

	chars := 0
	for _, t := range texts {
		chars += redaction.RuneLen(t)
	}

	var wire bulkWire
	if err := c.post(ctx, PathRedactBulk, p, chars, opts.RandomSeed, &wire); err != nil {
		return nil, err
	}

	out := &redaction.BulkResponse{
		BulkText:          wire.BulkText,
		BulkRedactedText:  wire.BulkRedactedText,
		Usage:             wire.Usage,
		DeIdentifyResults: make([][]redaction.Replacement, len(wire.BulkText)),
	}
	for i := range out.DeIdentifyResults {
		out.DeIdentifyResults[i] = []redaction.Replacement{}
	}
	for _, r := range wire.DeIdentifyResults {
		if r.Idx < 0 || r.Idx >= len(out.DeIdentifyResults) {
			return nil, errors.NewRemote(http.StatusOK, fmt.Sprintf("bulk result index %d out of range", r.Idx))
		}
		out.DeIdentifyResults[r.Idx] = append(out.DeIdentifyResults[r.Idx], r.Replacement)
	}
	return out, nil
}

// RedactJSON redacts the string values of a JSON document. jsonPathAllowLists
// maps entity types to JSONPath expressions whose values are always treated as
// that type.
func (c *Client) RedactJSON(ctx context.Context, jsonText string, jsonPathAllowLists map[string][]string, opts RedactOptions) (*redaction.Response, error) {
	if !json.Valid([]byte(jsonText)) {
		return nil, errors.NewInvalidRequest("json text is not valid JSON")
	}
	p, err := BuildPayload(opts)
	if err != nil {
		return nil, err
	}
	p.JSONText = &jsonText
	p.JSONPathAllowLists = jsonPathAllowLists
	return c.redactDocument(ctx, PathRedactJSON, p, jsonText, opts)
}

// RedactXML redacts the text content of an XML document.
func (c *Client) RedactXML(ctx context.Context, xmlText string, opts RedactOptions) (*redaction.Response, error) {
	p, err := BuildPayload(opts)
	if err != nil {
		return nil, err
	}
	p.XMLText = &xmlText
	return c.redactDocument(ctx, PathRedactXML, p, xmlText, opts)
}

// RedactHTML redacts the text content of an HTML document.
func (c *Client) RedactHTML(ctx context.Context, htmlText string, opts RedactOptions) (*redaction.Response, error) {
	p, err := BuildPayload(opts)
	if err != nil {
		return nil, err
	}
	p.HTMLText = &htmlText
	return c.redactDocument(ctx, PathRedactHTML, p, htmlText, opts)
}

func (c *Client) redactDocument(ctx context.Context, path string, p *Payload, text string, opts RedactOptions) (*redaction.Response, error) {
	var out redaction.Response
	if err := c.post(ctx, path, p, redaction.RuneLen(text), opts.RandomSeed, &out); err != nil {
		return nil, err
	}
	return normalize(&out), nil
}

// Unredact restores the original values in a redacted text.
func (c *Client) Unredact(ctx context.Context, text string, seed *int) (string, error) {
	out, err := c.UnredactBulk(ctx, []string{text}, seed)
	if err != nil {
		return "", err
	}
	if len(out) != 1 {
		return "", errors.NewRemote(http.StatusOK, fmt.Sprintf("unredact returned %d texts for 1", len(out)))
	}
	return out[0], nil
}

// UnredactBulk restores the original values in several redacted texts.
func (c *Client) UnredactBulk(ctx context.Context, texts []string, seed *int) ([]string, error) {
	if texts == nil {
		texts = []string{}
	}
	chars := 0
	for _, t := range texts {
		chars += redaction.RuneLen(t)
	}

	var out []string
	if err := c.post(ctx, PathUnredact, texts, chars, seed, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// post sends body to path, retrying rate limiting, server errors and network
// failures with exponential backoff, and decodes the response into out.
func (c *Client) post(ctx context.Context, path string, body any, chars int, seed *int, out any) error {
	backoff := retry.NewExponential(c.backoff)
	backoff = retry.WithCappedDuration(backoffCap, backoff)
	backoff = retry.WithMaxRetries(c.maxRetries, retry.WithJitter(backoffJitter, backoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		req := c.http.R().SetContext(ctx).SetBody(body)
		if seed != nil {
			req.SetHeader(SeedHeader, strconv.Itoa(*seed))
		}
		c.log.LogRequest(http.MethodPost, path, req.Header, chars)

		resp, err := req.Post(path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("request failed", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(errors.NewRemote(0, err.Error()))
		}
		c.log.LogResponse(path, resp.StatusCode(), len(resp.Body()))

		if err := statusError(path, resp); err != nil {
			if retryableStatus(resp.StatusCode()) {
				c.log.Warn("retryable response", zap.String("path", path), zap.Int("attempt", attempt), zap.Int("status_code", resp.StatusCode()))
				return retry.RetryableError(err)
			}
			return err
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return errors.NewRemote(resp.StatusCode(), fmt.Sprintf("invalid response from %s: %v", path, err))
		}
		return nil
	})
}

func statusError(path string, resp *resty.Response) error {
	code := resp.StatusCode()
	if code < 300 {
		return nil
	}
	body := strings.TrimSpace(resp.String())
	switch code {
	case http.StatusBadRequest:
		return errors.NewInvalidRedactionRequest(body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewUnauthorized(fmt.Sprintf("service refused credentials (status %d)", code))
	case http.StatusNotFound:
		return errors.NewNotFound(path)
	case http.StatusConflict:
		return errors.NewConflict(body)
	}
	return errors.NewRemote(code, fmt.Sprintf("service error: %s (status %d)", body, code))
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

// normalize replaces a null replacement list with an empty one.
func normalize(r *redaction.Response) *redaction.Response {
	if r.DeIdentifyResults == nil {
		r.DeIdentifyResults = []redaction.Replacement{}
	}
	return r
}
