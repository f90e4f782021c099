package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// NoRecordIDMessage answers a trigger that names no record.
const NoRecordIDMessage = "No record ID provided"

// ErrInvalidTrigger is returned when a trigger body cannot be decoded.
var ErrInvalidTrigger = errors.New("trigger body is neither JSON nor form data")

// Trigger is a decoded data entry trigger notification.
type Trigger domain.RawRecord

// ParseTrigger decodes body as a JSON object, falling back to a
// form-encoded body. Values are stringified the same way records are.
func ParseTrigger(body []byte) (Trigger, error) {
	var rec domain.RawRecord
	if err := json.Unmarshal(body, &rec); err == nil {
		return Trigger(rec), nil
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	t := make(Trigger, len(values))
	for k, v := range values {
		if len(v) > 0 {
			t[k] = v[0]
		}
	}
	return t, nil
}

// RecordID returns the record named by the trigger, from record or
// record_id.
func (t Trigger) RecordID() string {
	if id := strings.TrimSpace(t["record"]); id != "" {
		return id
	}
	return strings.TrimSpace(t[domain.FieldRecordID])
}

// Instrument returns the instrument the trigger fired for.
func (t Trigger) Instrument() string { return t["instrument"] }

// Fields returns the trigger's field names in sorted order.
func (t Trigger) Fields() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MirrorResult is the outcome of handling a trigger.
type MirrorResult struct {
	// Skipped is set when the trigger named no record.
	Skipped bool
	Records []domain.RawRecord
	// Stored is false when the mirror insert failed.
	Stored bool
}

// WebhookService mirrors records named by data entry triggers.
type WebhookService struct {
	source ports.RecordSource
	store  ports.MirrorStore
	limit  int
}

// NewWebhookService returns a service copying records from source into
// store. limit caps Latest when the caller asks for none.
func NewWebhookService(source ports.RecordSource, store ports.MirrorStore, limit int) (*WebhookService, error) {
	if source == nil || store == nil {
		return nil, fmt.Errorf("%w: record source and mirror store are required", domain.ErrInvalidConfiguration)
	}
	if limit <= 0 {
		limit = DefaultMirrorLimit
	}
	return &WebhookService{source: source, store: store, limit: limit}, nil
}

// HandleTrigger exports the record named by t and mirrors its first row.
// A failed mirror insert is logged and does not fail the trigger.
func (s *WebhookService) HandleTrigger(ctx context.Context, t Trigger) (*MirrorResult, error) {
	id := t.RecordID()
	if id == "" {
		log.Debugf("Data entry trigger without a record id: fields %v", t.Fields())
		return &MirrorResult{Skipped: true}, nil
	}
	log.Infof("Data entry trigger received for record %s (instrument %q)", id, t.Instrument())

	records, err := s.source.ExportRecords(ctx, ports.ExportOptions{Records: []string{id}})
	if err != nil {
		return nil, fmt.Errorf("failed to export record %s: %w", id, err)
	}

	res := &MirrorResult{Records: records}
	data := domain.RawRecord{}
	if len(records) > 0 {
		data = records[0]
	}
	mirrored := &ports.MirroredRecord{RecordID: id, Instrument: t.Instrument(), Data: data}
	if err := s.store.Insert(ctx, mirrored); err != nil {
		log.Errorf("Failed to mirror record %s: %v", id, err)
		return res, nil
	}
	res.Stored = true
	log.Infof("Mirrored record %s as %s", id, mirrored.ID)
	return res, nil
}

// Latest returns up to limit mirrored records, newest first. A limit
// outside 1..configured falls back to the configured limit.
func (s *WebhookService) Latest(ctx context.Context, limit int) ([]ports.MirroredRecord, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	records, err := s.store.Latest(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored records: %w", err)
	}
	return records, nil
}

// Ping reports whether the mirror store is reachable.
func (s *WebhookService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
