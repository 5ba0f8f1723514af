// Package httpeval carries the evaluator protocol over HTTP: a client that implements
// ports.Evaluator against a remote endpoint and a server exposing a local evaluator.
package httpeval

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bondfuzz/domain/core"
	"bondfuzz/domain/scenario"
)

// EvaluatePath is the protocol endpoint: POST a scenario, receive an EvaluationResult
const EvaluatePath = "/evaluate"

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

// Client evaluates scenarios on a remote service
type Client struct {
	name    string
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. The dispatcher owns per-call
// timeouts; timeout here is only a transport safety net and may be zero.
func NewClient(name, baseURL string, timeout time.Duration) *Client {
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return c.name }

// Evaluate posts s and decodes the selection. 408, 429 and 5xx are transient; other 4xx
// responses and undecodable bodies are malformed.
func (c *Client) Evaluate(ctx context.Context, s scenario.Scenario) (scenario.EvaluationResult, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(c.name, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EvaluatePath, bytes.NewReader(raw))
	if err != nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(c.name, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return scenario.EvaluationResult{}, core.NewTimeoutError(c.name, err)
		}
		if ctx.Err() != nil {
			return scenario.EvaluationResult{}, core.NewExternalError(c.name, false, ctx.Err())
		}
		return scenario.EvaluationResult{}, core.NewExternalError(c.name, true, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return scenario.EvaluationResult{}, core.NewExternalError(c.name, true, fmt.Errorf("read response: %w", err))
	}
	if err := statusError(c.name, resp.StatusCode, body); err != nil {
		return scenario.EvaluationResult{}, err
	}

	var result scenario.EvaluationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return scenario.EvaluationResult{}, core.NewMalformedError(c.name, fmt.Errorf("unmarshal response: %w", err))
	}
	if strings.TrimSpace(result.Selection) == "" {
		return scenario.EvaluationResult{}, core.NewMalformedError(c.name, fmt.Errorf("response missing selection"))
	}
	return result, nil
}

func statusError(name string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusRequestTimeout:
		return core.NewTimeoutError(name, cause)
	case status == http.StatusTooManyRequests || status >= 500:
		return core.NewExternalError(name, true, cause)
	default:
		return core.NewMalformedError(name, cause)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return stderrors.As(err, &t) && t.Timeout()
}
