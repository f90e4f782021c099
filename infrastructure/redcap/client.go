// Package redcap talks to the REDCap API of the review project
// with built-in support for retries, rate limiting, circuit breaking,
// metrics, and tracing.
//
// Every call is a form-encoded POST to the project API URL. The typed
// client methods build the REDCap parameters and decode the responses;
// cross-cutting behaviour is layered around the transport through a
// middleware chain.
//
// Basic usage:
//
//	client, err := redcap.NewClient(redcap.ClientConfig{
//	    URL:   "https://redcap.example.org/api/",
//	    Token: os.Getenv("REDCAP_TOKEN"),
//	    Middleware: []redcap.Middleware{
//	        redcap.RetryMiddleware(3, 200*time.Millisecond, 5*time.Second),
//	        redcap.RateLimitMiddleware(5, 10),
//	        redcap.CircuitBreakerMiddleware(5, 30*time.Second),
//	    },
//	})
//	records, err := client.ExportRecords(ctx, ports.ExportOptions{})
package redcap

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// REDCap API content types used by the client.
const (
	ContentRecord          = "record"
	ContentParticipantList = "participantList"
	ContentSurveyLink      = "surveyLink"
)

// CoreAPI defines the minimal transport the middleware chain wraps.
type CoreAPI interface {
	// DoRequest posts one API call. content selects the REDCap content
	// type; params are added to the form next to the token and format
	// fields. It returns the raw response body.
	DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error)

	// Endpoint returns the API URL requests are sent to.
	Endpoint() string
}

// Middleware wraps a CoreAPI implementation to add cross-cutting
// functionality.
type Middleware func(CoreAPI) CoreAPI

// ClientConfig holds all configuration options for creating a client.
type ClientConfig struct {
	// URL is the project API endpoint.
	URL string

	// Token authenticates requests to the project.
	Token string

	// Timeout bounds the underlying HTTP client. Zero means 60 seconds.
	Timeout time.Duration

	// Middleware is applied in the order given, the first entry being
	// the outermost.
	Middleware []Middleware

	// Core replaces the HTTP transport. Used by tests.
	Core CoreAPI
}

// Client implements ports.REDCap on top of a CoreAPI chain.
type Client struct {
	core CoreAPI
}

var _ ports.REDCap = (*Client)(nil)

// NewClient validates config and assembles the middleware chain.
func NewClient(config ClientConfig) (*Client, error) {
	core := config.Core
	if core == nil {
		if config.URL == "" {
			return nil, fmt.Errorf("API URL is required")
		}
		if config.Token == "" {
			return nil, fmt.Errorf("API token is required")
		}
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		core = newRestyCore(config.URL, config.Token, timeout)
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{core: core}, nil
}

// Endpoint returns the API URL of the underlying transport.
func (c *Client) Endpoint() string { return c.core.Endpoint() }

// ExportRecords implements ports.RecordSource using the flat, raw export.
func (c *Client) ExportRecords(ctx context.Context, opts ports.ExportOptions) ([]domain.RawRecord, error) {
	params := map[string]string{
		"type":                   "flat",
		"rawOrLabel":             "raw",
		"rawOrLabelHeaders":      "raw",
		"exportCheckboxLabel":    "false",
		"exportSurveyFields":     "false",
		"exportDataAccessGroups": "false",
	}
	addList(params, "records", opts.Records)
	addList(params, "forms", opts.Forms)
	if opts.FilterLogic != "" {
		params["filterLogic"] = opts.FilterLogic
	}

	body, err := c.core.DoRequest(ctx, ContentRecord, params)
	if err != nil {
		return nil, err
	}

	var records []domain.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, ports.NewRecordSourceError(ContentRecord, 0, fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err))
	}
	return records, nil
}

// ImportRecords implements ports.RecordWriter.
func (c *Client) ImportRecords(ctx context.Context, records []domain.RawRecord, overwrite bool) ([]string, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	behavior := "normal"
	if overwrite {
		behavior = "overwrite"
	}

	body, err := c.core.DoRequest(ctx, ContentRecord, map[string]string{
		"action":            "import",
		"type":              "flat",
		"overwriteBehavior": behavior,
		"forceAutoNumber":   "false",
		"returnContent":     "ids",
		"data":              string(data),
	})
	if err != nil {
		return nil, err
	}

	var raw []any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ports.NewRecordSourceError(ContentRecord, 0, fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err))
	}
	ids := make([]string, 0, len(raw))
	for _, v := range raw {
		switch id := v.(type) {
		case string:
			ids = append(ids, id)
		case float64:
			ids = append(ids, strconv.FormatFloat(id, 'f', -1, 64))
		}
	}
	return ids, nil
}

// Participants implements ports.SurveyDirectory.
func (c *Client) Participants(ctx context.Context, instrument string) ([]ports.SurveyParticipant, error) {
	body, err := c.core.DoRequest(ctx, ContentParticipantList, map[string]string{
		"instrument": instrument,
		"event":      "",
	})
	if err != nil {
		return nil, err
	}

	var rows []domain.RawRecord
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, ports.NewRecordSourceError(ContentParticipantList, 0, fmt.Errorf("%w: %v", ports.ErrInvalidResponse, err))
	}

	out := make([]ports.SurveyParticipant, 0, len(rows))
	for _, r := range rows {
		out = append(out, ports.SurveyParticipant{
			Email:           r.Get("email"),
			Identifier:      r.Get("identifier"),
			Record:          r.Get("record"),
			RecordID:        r.Get("record_id"),
			SurveyLink:      r.Get("survey_link"),
			SurveyQueueLink: r.Get("survey_queue_link"),
		})
	}
	return out, nil
}

// SurveyLink implements ports.SurveyDirectory.
func (c *Client) SurveyLink(ctx context.Context, record, instrument string) (string, error) {
	body, err := c.core.DoRequest(ctx, ContentSurveyLink, map[string]string{
		"record":     record,
		"instrument": instrument,
		"event":      "",
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}

// addList encodes values the way REDCap expects array parameters.
func addList(params map[string]string, name string, values []string) {
	for i, v := range values {
		params[fmt.Sprintf("%s[%d]", name, i)] = v
	}
}
