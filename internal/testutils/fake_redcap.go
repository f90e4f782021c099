package testutils

import (
	"context"
	"maps"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// FakeREDCap is an in-memory ports.REDCap. Exports with the reviewer
// details form return Reviewers; every other export returns Records.
type FakeREDCap struct {
	mu sync.Mutex

	Records         []domain.RawRecord
	Reviewers       []domain.RawRecord
	ParticipantList []ports.SurveyParticipant
	Link            string

	ExportErr      error
	ImportErr      error
	ParticipantErr error
	LinkErr        error

	// Gate, when set, blocks ExportRecords until it is closed or the
	// context ends.
	Gate chan struct{}

	ExportCalls []ports.ExportOptions
	Imports     [][]domain.RawRecord
	Overwrites  []bool
}

var _ ports.REDCap = (*FakeREDCap)(nil)

// ReviewerForm is the instrument name FakeREDCap treats as reviewer details.
const ReviewerForm = "reviewer_details"

var emailFilter = regexp.MustCompile(`^\[rev_email\]\s*=\s*"(.*)"$`)

// ExportRecords implements ports.RecordSource.
func (f *FakeREDCap) ExportRecords(ctx context.Context, opts ports.ExportOptions) ([]domain.RawRecord, error) {
	f.mu.Lock()
	f.ExportCalls = append(f.ExportCalls, opts)
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExportErr != nil {
		return nil, f.ExportErr
	}

	if slices.Contains(opts.Forms, ReviewerForm) {
		var out []domain.RawRecord
		m := emailFilter.FindStringSubmatch(opts.FilterLogic)
		for _, r := range f.Reviewers {
			if m == nil || r.Get("rev_email") == m[1] {
				out = append(out, maps.Clone(r))
			}
		}
		return out, nil
	}

	var out []domain.RawRecord
	for _, r := range f.Records {
		if len(opts.Records) > 0 && !slices.Contains(opts.Records, r.Get(domain.FieldRecordID)) {
			continue
		}
		out = append(out, maps.Clone(r))
	}
	return out, nil
}

// ImportRecords implements ports.RecordWriter. Imported rows replace a
// stored row with the same record and instance, or are appended.
func (f *FakeREDCap) ImportRecords(_ context.Context, records []domain.RawRecord, overwrite bool) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ImportErr != nil {
		return nil, f.ImportErr
	}

	f.Imports = append(f.Imports, records)
	f.Overwrites = append(f.Overwrites, overwrite)

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Get(domain.FieldRecordID))
		idx := slices.IndexFunc(f.Records, func(r domain.RawRecord) bool {
			return r.Get(domain.FieldRecordID) == rec.Get(domain.FieldRecordID) &&
				r.Get(domain.FieldRepeatInstrument) == rec.Get(domain.FieldRepeatInstrument) &&
				r.Get(domain.FieldRepeatInstance) == rec.Get(domain.FieldRepeatInstance)
		})
		if idx >= 0 {
			f.Records[idx] = maps.Clone(rec)
		} else {
			f.Records = append(f.Records, maps.Clone(rec))
		}
	}
	return ids, nil
}

// Participants implements ports.SurveyDirectory.
func (f *FakeREDCap) Participants(context.Context, string) ([]ports.SurveyParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ParticipantErr != nil {
		return nil, f.ParticipantErr
	}
	return slices.Clone(f.ParticipantList), nil
}

// SurveyLink implements ports.SurveyDirectory.
func (f *FakeREDCap) SurveyLink(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LinkErr != nil {
		return "", f.LinkErr
	}
	return f.Link, nil
}

// SetExportErr changes the export failure under the lock.
func (f *FakeREDCap) SetExportErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ExportErr = err
}

// ExportCount returns the number of ExportRecords calls so far.
func (f *FakeREDCap) ExportCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ExportCalls)
}

// MetricsRecorder is a ports.MetricsCollector that keeps every counter
// and gauge it receives.
type MetricsRecorder struct {
	mu       sync.Mutex
	Counters map[string]float64
	Gauges   map[string]float64
	Timings  map[string]int
}

var _ ports.MetricsCollector = (*MetricsRecorder)(nil)

// NewMetricsRecorder creates an empty recorder.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		Counters: map[string]float64{},
		Gauges:   map[string]float64{},
		Timings:  map[string]int{},
	}
}

func (m *MetricsRecorder) RecordLatency(operation string, _ time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[operation]++
}

func (m *MetricsRecorder) RecordCounter(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metric
	if s := labels["status"]; s != "" {
		key += "/" + s
	}
	m.Counters[key] += value
}

func (m *MetricsRecorder) RecordGauge(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gauges[metric] = value
}

func (m *MetricsRecorder) RecordHistogram(metric string, _ float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timings[metric]++
}

// Counter returns a counter value under the lock.
func (m *MetricsRecorder) Counter(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counters[key]
}

// Gauge returns a gauge value under the lock.
func (m *MetricsRecorder) Gauge(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gauges[key]
}
