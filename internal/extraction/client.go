// Package extraction calls the LLM extraction service that turns a raw
// customer email into structured intents and entities.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/helioenergie/caseflow/internal/models"
	"github.com/helioenergie/caseflow/internal/tracing"
)

// ParseError means the service response was not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extraction response is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SchemaError means the response parsed but did not match the expected
// shape (intents list plus entities object).
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("extraction response schema invalid: %s", e.Detail)
}

// Config holds extraction service settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client is an HTTP client for the extraction service.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds an extraction client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://extraction-service:8000"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Request is one extraction call.
type Request struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Sender  string `json:"sender"`
}

// Result is the validated output of one extraction call.
type Result struct {
	Intents  []models.Intent
	Entities models.Entities
	// OverallConfidence is the service's confidence in the extraction as
	// a whole, independent of the per-intent scores.
	OverallConfidence float64
	// Dropped counts malformed intent entries removed during validation.
	Dropped int
}

type rawIntent struct {
	Name         string  `json:"name"`
	Confidence   float64 `json:"confidence"`
	RequiresAuth bool    `json:"requires_auth"`
	Reason       string  `json:"reason"`
}

type rawResponse struct {
	Intents           []json.RawMessage      `json:"intents"`
	Entities          map[string]interface{} `json:"entities"`
	OverallConfidence float64                `json:"overall_confidence"`
}

// Extract calls POST /extract/intents and validates the response strictly.
// A transport failure or non-2xx status is a plain error; a body that is
// not JSON is a ParseError; a JSON body of the wrong shape is a
// SchemaError. Individual malformed intent entries are dropped and
// counted rather than failing the whole call.
func (c *Client) Extract(ctx context.Context, in Request) (Result, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode extraction request: %w", err)
	}

	url := c.baseURL + "/extract/intents"
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("extraction service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read extraction response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("extraction service returned status %d", resp.StatusCode)
	}

	var raw rawResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return Result{}, &ParseError{Err: err}
	}

	if raw.Intents == nil {
		return Result{}, &SchemaError{Detail: "missing intents list"}
	}

	out := Result{
		Entities:          models.Entities(raw.Entities),
		OverallConfidence: raw.OverallConfidence,
	}
	if out.Entities == nil {
		out.Entities = models.Entities{}
	}

	for _, entry := range raw.Intents {
		var ri rawIntent
		if err := json.Unmarshal(entry, &ri); err != nil {
			out.Dropped++
			continue
		}
		if ri.Name == "" {
			out.Dropped++
			continue
		}
		out.Intents = append(out.Intents, models.Intent{
			Name:         ri.Name,
			Confidence:   ri.Confidence,
			RequiresAuth: ri.RequiresAuth,
			Reason:       ri.Reason,
		})
	}

	if out.Dropped > 0 {
		c.logger.Warn("Dropped malformed intent entries from extraction response",
			zap.Int("dropped", out.Dropped),
		)
	}
	return out, nil
}
