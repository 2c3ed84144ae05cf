package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mveljkovic/traintracker/internal/telemetry/metrics"
	"github.com/mveljkovic/traintracker/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// ErrUpstream marks failures of the external completion service,
// handlers translate it to a bad gateway response.
var ErrUpstream = errors.New("assistant upstream error")

const defaultTemperature = 0.7

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to an OpenAI-compatible chat completions API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	siteReferer    string
	siteTitle      string
	metricsManager *metrics.Manager
}

type NewClientParams struct {
	BaseURL     string
	APIKey      string
	Model       string
	SiteReferer string
	SiteTitle   string
}

func NewClient(params NewClientParams, metricsManager *metrics.Manager) (*Client, error) {
	if params.APIKey == "" {
		return nil, errors.New("assistant api key not set")
	}
	if params.BaseURL == "" {
		return nil, errors.New("assistant base url not set")
	}
	if params.Model == "" {
		return nil, errors.New("assistant model not set")
	}
	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   2 * time.Minute,
		},
		baseURL:        params.BaseURL,
		apiKey:         params.APIKey,
		model:          params.Model,
		siteReferer:    params.SiteReferer,
		siteTitle:      params.SiteTitle,
		metricsManager: metricsManager,
	}, nil
}

// Complete sends the conversation to the completion endpoint and returns
// the raw text of the first choice. With jsonOnly set, the upstream is
// asked to respond with a single JSON object.
func (c *Client) Complete(ctx context.Context, messages []Message, jsonOnly bool) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "assistant.complete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("model", c.model),
		attribute.Bool("json_only", jsonOnly),
	)

	c.metricsManager.CounterAssistantCalls.Inc()
	content, err := c.complete(ctx, messages, jsonOnly)
	if err != nil {
		c.metricsManager.CounterAssistantFailures.Inc()
		return "", err
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, messages []Message, jsonOnly bool) (string, error) {
	reqPayload := completionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: defaultTemperature,
	}
	if jsonOnly {
		reqPayload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	reqBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(reqBytes),
	)
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteReferer != "" {
		req.Header.Set("HTTP-Referer", c.siteReferer)
	}
	if c.siteTitle != "" {
		req.Header.Set("X-Title", c.siteTitle)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstream, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Errorf("assistant client, close response body: %s", err)
		}
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %s", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, respBytes)
	}

	var completion completionResponse
	if err := json.Unmarshal(respBytes, &completion); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %s", ErrUpstream, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrUpstream)
	}

	return completion.Choices[0].Message.Content, nil
}
