package redcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/resty.v1"

	"github.com/aphrc/proposal-review/internal/ports"
)

// restyCore is the HTTP transport at the bottom of the middleware chain.
type restyCore struct {
	apiURL string
	token  string
	client *resty.Client
}

func newRestyCore(apiURL, token string, timeout time.Duration) *restyCore {
	cl := http.Client{Timeout: timeout}
	client := resty.NewWithClient(&cl)

	if parsed, err := url.Parse(apiURL); err != nil {
		log.Errorf("Can't parse REDCap url: %v", err)
	} else if host := parsed.Hostname(); host != "" {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(host))
	}

	return &restyCore{apiURL: apiURL, token: token, client: client}
}

func (c *restyCore) Endpoint() string { return c.apiURL }

func (c *restyCore) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	req := c.makeRequest(ctx)

	form := map[string]string{
		"token":        c.token,
		"content":      content,
		"format":       "json",
		"returnFormat": "json",
	}
	for k, v := range params {
		form[k] = v
	}
	req.SetFormData(form)

	resp, err := req.Post(c.apiURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ports.NewRecordSourceError(content, 0, fmt.Errorf("%w: %v", ports.ErrTimeout, err))
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ports.NewRecordSourceError(content, 0, fmt.Errorf("%w: %v", ports.ErrServiceUnavailable, err))
	}

	if resp.StatusCode() != http.StatusOK {
		rse := ports.NewRecordSourceError(content, resp.StatusCode(), statusError(resp.StatusCode(), resp.Body()))
		if ra := resp.Header().Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				d := time.Duration(secs) * time.Second
				rse.RetryAfter = &d
			}
		}
		return nil, rse
	}
	return resp.Body(), nil
}

func (c *restyCore) makeRequest(ctx context.Context) *resty.Request {
	req := c.client.R()
	req.SetContext(ctx)
	req.SetHeader("Accept", "application/json")
	return req
}

// statusError maps an HTTP status to a sentinel, keeping the message
// REDCap put in the body when there is one.
func statusError(status int, body []byte) error {
	var sentinel error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ports.ErrAuthenticationFailed
	case status == http.StatusNotFound:
		sentinel = ports.ErrNotFound
	case status == http.StatusTooManyRequests:
		sentinel = ports.ErrRateLimited
	case status >= 500:
		sentinel = ports.ErrServiceUnavailable
	default:
		sentinel = ports.ErrInvalidResponse
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%w: %s", sentinel, payload.Error)
	}
	return sentinel
}
