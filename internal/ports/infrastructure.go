// Package ports defines the interfaces the review service uses to reach
// external systems: the REDCap project, the webhook mirror, spreadsheet
// output and metrics.
package ports

import (
	"context"
	"io"
	"time"

	"github.com/aphrc/proposal-review/internal/domain"
)

// ExportOptions narrows a record export. Zero fields export everything.
type ExportOptions struct {
	// Records limits the export to these record IDs.
	Records []string

	// Forms limits the exported fields to these instruments.
	Forms []string

	// FilterLogic is a REDCap logic expression such as
	// `[rev_email]="a@b.org"`.
	FilterLogic string
}

// RecordSource exports flat records from the review project.
type RecordSource interface {
	// ExportRecords returns every record matching opts, in the order the
	// project returns them.
	ExportRecords(ctx context.Context, opts ExportOptions) ([]domain.RawRecord, error)
}

// RecordWriter imports records into the review project.
type RecordWriter interface {
	// ImportRecords writes records and returns the IDs the project
	// reports as imported. When overwrite is true blank values replace
	// stored values.
	ImportRecords(ctx context.Context, records []domain.RawRecord, overwrite bool) ([]string, error)
}

// SurveyParticipant is one entry of a survey participant list.
type SurveyParticipant struct {
	Email           string `json:"email"`
	Identifier      string `json:"identifier"`
	Record          string `json:"record"`
	RecordID        string `json:"record_id"`
	SurveyLink      string `json:"survey_link"`
	SurveyQueueLink string `json:"survey_queue_link"`
}

// SurveyDirectory resolves survey links for reviewers.
type SurveyDirectory interface {
	// Participants lists the participants of a survey instrument.
	Participants(ctx context.Context, instrument string) ([]SurveyParticipant, error)

	// SurveyLink returns the survey link of a record for an instrument.
	// The body is returned as-is; it may not be a URL.
	SurveyLink(ctx context.Context, record, instrument string) (string, error)
}

// REDCap combines every operation of the review project.
type REDCap interface {
	RecordSource
	RecordWriter
	SurveyDirectory
}

// MirroredRecord is a REDCap record copied into the secondary store by
// the data entry trigger webhook.
type MirroredRecord struct {
	ID         string           `json:"id"`
	RecordID   string           `json:"record_id"`
	Instrument string           `json:"instrument"`
	Data       domain.RawRecord `json:"data"`
	CreatedAt  time.Time        `json:"created_at"`
}

// MirrorStore persists mirrored records.
type MirrorStore interface {
	// Insert stores rec. ID and CreatedAt are assigned when empty.
	Insert(ctx context.Context, rec *MirroredRecord) error

	// Latest returns up to limit records, newest first.
	Latest(ctx context.Context, limit int) ([]MirroredRecord, error)

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// MarkupStripper converts a markup fragment to plain text.
type MarkupStripper interface {
	// StripMarkup returns the text content of s with entities decoded and
	// whitespace collapsed.
	StripMarkup(s string) string
}

// Column describes one spreadsheet column.
type Column struct {
	Header string
	Width  float64
}

// Sheet is a single worksheet of tabular output.
type Sheet struct {
	Name    string
	Columns []Column
	Rows    [][]any
}

// SpreadsheetWriter renders sheets into a workbook.
type SpreadsheetWriter interface {
	Write(w io.Writer, sheets ...Sheet) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// It supports the fundamental metric types used across the service.
type MetricsCollector interface {
	// RecordLatency records the duration of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric by the specified value.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a gauge metric to the specified value.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
