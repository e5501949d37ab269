// Package docintel is a minimal client for the Azure Document Intelligence
// prebuilt-read model over its REST API.
package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/pkg/retry"
)

const (
	DefaultModel      = "prebuilt-read"
	DefaultAPIVersion = "2023-07-31"

	defaultPollInterval = time.Second
	defaultMaxPolls     = 120
)

var ErrRegistry = errx.NewRegistry("DOCINTEL")

var (
	// CodeRejected is permanent: the service refused the document itself.
	CodeRejected    = ErrRegistry.Register("REJECTED", errx.TypeValidation, http.StatusUnprocessableEntity, "Document rejected by the analysis service")
	CodeUnavailable = ErrRegistry.Register("UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Analysis service temporarily unavailable")
	CodeFailed      = ErrRegistry.Register("FAILED", errx.TypeExternal, http.StatusBadGateway, "Document analysis failed")
)

// Client submits documents for analysis and polls for the result.
type Client struct {
	endpoint     string
	key          string
	model        string
	apiVersion   string
	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithModel(model string) Option {
	return func(cl *Client) { cl.model = model }
}

func WithAPIVersion(v string) Option {
	return func(cl *Client) { cl.apiVersion = v }
}

// WithPolling sets the interval between status checks and how many checks
// are made before the operation is abandoned.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(cl *Client) {
		cl.pollInterval = interval
		cl.maxPolls = maxPolls
	}
}

func NewClient(endpoint, key string, opts ...Option) *Client {
	c := &Client{
		endpoint:     strings.TrimRight(endpoint, "/"),
		key:          key,
		model:        DefaultModel,
		apiVersion:   DefaultAPIVersion,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type analyzeOperation struct {
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	AnalyzeResult *analyzeResult `json:"analyzeResult,omitempty"`
}

type analyzeResult struct {
	Content string       `json:"content"`
	Pages   []pageResult `json:"pages"`
}

type pageResult struct {
	PageNumber int          `json:"pageNumber"`
	Lines      []lineResult `json:"lines"`
}

type lineResult struct {
	Content string `json:"content"`
}

// Analyze runs the model over data and returns the recognized text.
func (c *Client) Analyze(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	url := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s", c.endpoint, c.model, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", ErrRegistry.NewWithCause(CodeFailed, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.transportError(ctx, err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp.StatusCode, body)
	}

	location := resp.Header.Get("Operation-Location")
	if location == "" {
		return "", ErrRegistry.New(CodeFailed).WithDetail("reason", "missing Operation-Location header")
	}
	return c.poll(ctx, location)
}

// Ping checks that the endpoint is reachable and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	url := fmt.Sprintf("%s/formrecognizer/info?api-version=%s", c.endpoint, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ErrRegistry.NewWithCause(CodeFailed, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return statusError(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) poll(ctx context.Context, location string) (string, error) {
	for i := 0; i < c.maxPolls; i++ {
		if err := retry.Sleep(ctx, c.pollInterval); err != nil {
			return "", err
		}

		op, err := c.getOperation(ctx, location)
		if err != nil {
			return "", err
		}

		switch op.Status {
		case "succeeded":
			if op.AnalyzeResult == nil {
				return "", nil
			}
			return flatten(op.AnalyzeResult), nil
		case "failed":
			e := ErrRegistry.New(CodeFailed)
			if op.Error != nil {
				e = e.WithDetail("code", op.Error.Code).WithDetail("message", op.Error.Message)
			}
			return "", e
		}
	}
	return "", ErrRegistry.New(CodeUnavailable).
		WithDetail("reason", "analysis did not complete").
		WithDetail("polls", c.maxPolls)
}

func (c *Client) getOperation(ctx context.Context, location string) (*analyzeOperation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeFailed, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, body)
	}

	var op analyzeOperation
	if err := json.Unmarshal(body, &op); err != nil {
		return nil, ErrRegistry.NewWithCause(CodeFailed, err).WithDetail("reason", "undecodable operation status")
	}
	return &op, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrRegistry.NewWithCause(CodeUnavailable, err)
}

func statusError(status int, body []byte) error {
	var code errx.Code
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnsupportedMediaType:
		code = CodeRejected
	case status == http.StatusTooManyRequests, status >= 500:
		code = CodeUnavailable
	default:
		code = CodeFailed
	}
	return ErrRegistry.New(code).
		WithDetail("status", status).
		WithDetail("body", truncate(string(body), 512))
}

// flatten prefers the document-level content and falls back to page lines.
func flatten(r *analyzeResult) string {
	if strings.TrimSpace(r.Content) != "" {
		return strings.TrimSpace(r.Content)
	}
	var b strings.Builder
	for i, p := range r.Pages {
		n := p.PageNumber
		if n == 0 {
			n = i + 1
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", n)
		for _, l := range p.Lines {
			b.WriteString(l.Content)
			b.WriteByte('\n')
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
