package redcap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// fakeREDCap records the last form posted and replies with a canned
// response.
type fakeREDCap struct {
	mu     sync.Mutex
	form   url.Values
	status int
	body   string
	header map[string]string
}

func (f *fakeREDCap) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.form = r.PostForm
	status, body := f.status, f.body
	for k, v := range f.header {
		w.Header().Set(k, v)
	}
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeREDCap) lastForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.form
}

func newTestClient(t *testing.T, fake *fakeREDCap) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{URL: srv.URL, Token: "secret", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{Token: "x"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{URL: "https://redcap.test/api/"})
	assert.Error(t, err)

	c, err := NewClient(ClientConfig{Core: newMockCore()})
	require.NoError(t, err)
	assert.Equal(t, "https://redcap.test/api/", c.Endpoint())
}

func TestNewClient_MiddlewareOrder(t *testing.T) {
	var order []string
	named := func(name string) Middleware {
		return func(next CoreAPI) CoreAPI {
			return &orderAPI{next: next, name: name, order: &order}
		}
	}

	c, err := NewClient(ClientConfig{Core: newMockCore(), Middleware: []Middleware{named("outer"), named("inner")}})
	require.NoError(t, err)

	_, err = c.ExportRecords(context.Background(), ports.ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type orderAPI struct {
	next  CoreAPI
	name  string
	order *[]string
}

func (o *orderAPI) DoRequest(ctx context.Context, content string, params map[string]string) ([]byte, error) {
	*o.order = append(*o.order, o.name)
	return o.next.DoRequest(ctx, content, params)
}

func (o *orderAPI) Endpoint() string { return o.next.Endpoint() }

func TestClient_ExportRecords(t *testing.T) {
	fake := &fakeREDCap{body: `[
		{"record_id": "1", "candidate_names": "Jane Doe", "bg_problem_clarity": 3},
		{"record_id": "2", "candidate_names": "John Smith", "bg_problem_clarity": ""}
	]`}
	client := newTestClient(t, fake)

	records, err := client.ExportRecords(context.Background(), ports.ExportOptions{
		Records:     []string{"1", "2"},
		Forms:       []string{"marking_sheet"},
		FilterLogic: `[rev_email]="a@b.org"`,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Jane Doe", records[0].Get("candidate_names"))
	assert.Equal(t, "3", records[0].Get("bg_problem_clarity"))

	form := fake.lastForm()
	assert.Equal(t, "secret", form.Get("token"))
	assert.Equal(t, "record", form.Get("content"))
	assert.Equal(t, "json", form.Get("format"))
	assert.Equal(t, "flat", form.Get("type"))
	assert.Equal(t, "raw", form.Get("rawOrLabel"))
	assert.Equal(t, "1", form.Get("records[0]"))
	assert.Equal(t, "2", form.Get("records[1]"))
	assert.Equal(t, "marking_sheet", form.Get("forms[0]"))
	assert.Equal(t, `[rev_email]="a@b.org"`, form.Get("filterLogic"))
}

func TestClient_ExportRecords_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{"invalid token", http.StatusForbidden, `{"error":"You do not have permissions to use the API"}`, ports.ErrAuthenticationFailed, "permissions"},
		{"not found", http.StatusNotFound, ``, ports.ErrNotFound, ""},
		{"rate limited", http.StatusTooManyRequests, ``, ports.ErrRateLimited, ""},
		{"server error", http.StatusInternalServerError, `oops`, ports.ErrServiceUnavailable, ""},
		{"bad request", http.StatusBadRequest, `{"error":"bad filter"}`, ports.ErrInvalidResponse, "bad filter"},
		{"undecodable body", http.StatusOK, `<html>`, ports.ErrInvalidResponse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, &fakeREDCap{status: tt.status, body: tt.body})

			_, err := client.ExportRecords(context.Background(), ports.ExportOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var rse *ports.RecordSourceError
			require.ErrorAs(t, err, &rse)
			assert.Equal(t, ContentRecord, rse.Operation)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestClient_RetryAfterHeader(t *testing.T) {
	client := newTestClient(t, &fakeREDCap{status: http.StatusTooManyRequests, header: map[string]string{"Retry-After": "7"}})

	_, err := client.ExportRecords(context.Background(), ports.ExportOptions{})
	var rse *ports.RecordSourceError
	require.ErrorAs(t, err, &rse)
	require.NotNil(t, rse.RetryAfter)
	assert.Equal(t, 7*time.Second, *rse.RetryAfter)
	assert.Equal(t, http.StatusTooManyRequests, rse.StatusCode)
}

func TestClient_ImportRecords(t *testing.T) {
	fake := &fakeREDCap{body: `["12", 13]`}
	client := newTestClient(t, fake)

	ids, err := client.ImportRecords(context.Background(), []domain.RawRecord{
		{"record_id": "12", "redcap_repeat_instrument": "marking_sheet", "redcap_repeat_instance": "2"},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"12", "13"}, ids)

	form := fake.lastForm()
	assert.Equal(t, "import", form.Get("action"))
	assert.Equal(t, "overwrite", form.Get("overwriteBehavior"))
	assert.Equal(t, "ids", form.Get("returnContent"))

	var sent []map[string]string
	require.NoError(t, json.Unmarshal([]byte(form.Get("data")), &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "2", sent[0]["redcap_repeat_instance"])

	_, err = client.ImportRecords(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "normal", fake.lastForm().Get("overwriteBehavior"))
}

func TestClient_Participants(t *testing.T) {
	fake := &fakeREDCap{body: `[
		{"email": "a@b.org", "record": 4, "survey_link": "https://s/1", "survey_queue_link": "https://q/1"},
		{"email": "c@d.org", "record": "", "survey_link": "https://s/2", "survey_queue_link": ""}
	]`}
	client := newTestClient(t, fake)

	got, err := client.Participants(context.Background(), "marking_sheet")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "4", got[0].Record)
	assert.Equal(t, "https://q/1", got[0].SurveyQueueLink)
	assert.Equal(t, "participantList", fake.lastForm().Get("content"))
	assert.Equal(t, "marking_sheet", fake.lastForm().Get("instrument"))
}

func TestClient_SurveyLink(t *testing.T) {
	fake := &fakeREDCap{body: "https://redcap.test/surveys/?s=ABC\n"}
	client := newTestClient(t, fake)

	link, err := client.SurveyLink(context.Background(), "4", "marking_sheet")
	require.NoError(t, err)
	assert.Equal(t, "https://redcap.test/surveys/?s=ABC", link)
	assert.Equal(t, "surveyLink", fake.lastForm().Get("content"))
	assert.Equal(t, "4", fake.lastForm().Get("record"))
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	apiURL := srv.URL
	srv.Close()

	client, err := NewClient(ClientConfig{URL: apiURL, Token: "secret", Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ExportRecords(context.Background(), ports.ExportOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
	assert.True(t, ports.IsRetryable(err))
}
