package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// Metric names recorded by DashboardService.
const (
	MetricRefresh          = "dashboard_refresh"
	MetricCandidates       = "dashboard_candidates"
	MetricReviews          = "dashboard_reviews"
	MetricIncompleteSkips  = "dashboard_incomplete_records"
	MetricReviewTotalScore = "review_total_score"
)

const tracerName = "proposal-review"

// DashboardService fetches marking sheet records, aggregates them and
// serves consistent snapshots to concurrent readers.
//
// Overlapping refreshes share one fetch. A failed refresh keeps the last
// good grouping and only records the error.
type DashboardService struct {
	source     ports.RecordSource
	aggregator *domain.Aggregator
	metrics    ports.MetricsCollector
	exporter   *Exporter
	now        func() time.Time

	fetchTimeout time.Duration

	mu    sync.RWMutex
	state domain.DashboardState
	sf    singleflight.Group
}

// DashboardOptions configures a DashboardService.
type DashboardOptions struct {
	Source     ports.RecordSource
	Aggregator *domain.Aggregator
	// Metrics is optional.
	Metrics ports.MetricsCollector
	// Exporter is required for Export.
	Exporter *Exporter
	// Now defaults to time.Now.
	Now func() time.Time
	// FetchTimeout bounds a shared fetch. Zero leaves it to the source.
	FetchTimeout time.Duration
}

// NewDashboardService validates opts and returns an idle service.
func NewDashboardService(opts DashboardOptions) (*DashboardService, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: record source is required", domain.ErrInvalidConfiguration)
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("%w: aggregator is required", domain.ErrInvalidConfiguration)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &DashboardService{
		source:     opts.Source,
		aggregator: opts.Aggregator,
		metrics:    opts.Metrics,
		exporter:   opts.Exporter,
		now:        now,
		state:      domain.NewDashboardState(),

		fetchTimeout: opts.FetchTimeout,
	}, nil
}

// Snapshot returns the current state. The value is immutable.
func (s *DashboardService) Snapshot() domain.DashboardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *DashboardService) transition(fn func(domain.DashboardState) domain.DashboardState) domain.DashboardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = fn(s.state)
	return s.state
}

// Refresh fetches every record, drops incomplete ones and replaces the
// grouping wholesale. Callers arriving while a refresh is in flight wait
// for it and share its result.
//
// The shared fetch is detached from the caller that started it, so one
// caller giving up never fails the others. A caller whose ctx ends first
// gets the current snapshot and ctx.Err().
func (s *DashboardService) Refresh(ctx context.Context) (domain.DashboardState, error) {
	ch := s.sf.DoChan("refresh", func() (any, error) {
		fetchCtx, cancel := s.fetchContext(ctx)
		defer cancel()
		return s.refresh(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			log.Debugf("Dashboard refresh shared with an in-flight fetch")
		}
		return res.Val.(domain.DashboardState), res.Err
	case <-ctx.Done():
		log.Debugf("Dashboard refresh abandoned by caller: %v", ctx.Err())
		return s.Snapshot(), ctx.Err()
	}
}

// fetchContext keeps the values of ctx but not its cancellation, bounded
// by fetchTimeout when set.
func (s *DashboardService) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if s.fetchTimeout > 0 {
		return context.WithTimeout(detached, s.fetchTimeout)
	}
	return context.WithCancel(detached)
}

func (s *DashboardService) refresh(ctx context.Context) (domain.DashboardState, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dashboard.refresh")
	defer span.End()

	s.transition(domain.DashboardState.FetchStarted)
	start := time.Now()

	records, err := s.source.ExportRecords(ctx, ports.ExportOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.record(start, "error")
		log.Errorf("Failed to fetch review records: %v", err)
		return s.transition(func(st domain.DashboardState) domain.DashboardState { return st.FetchFailed(err) }), err
	}

	fields := s.aggregator.Calculator().Profile().Fields
	complete := domain.CompleteRecords(records, fields)
	grouped := s.aggregator.Aggregate(complete)

	span.SetAttributes(
		attribute.Int("records.fetched", len(records)),
		attribute.Int("records.complete", len(complete)),
		attribute.Int("candidates", grouped.Len()),
	)
	s.record(start, "success")
	if s.metrics != nil {
		s.metrics.RecordGauge(MetricCandidates, float64(grouped.Len()), nil)
		s.metrics.RecordGauge(MetricReviews, float64(grouped.ReviewCount()), nil)
		s.metrics.RecordCounter(MetricIncompleteSkips, float64(len(records)-len(complete)), nil)
		for _, grp := range grouped.Candidates() {
			for _, r := range grp.Reviews {
				s.metrics.RecordHistogram(MetricReviewTotalScore, r.TotalScore, nil)
			}
		}
	}
	log.Infof("Dashboard refreshed: %d records, %d complete, %d candidates", len(records), len(complete), grouped.Len())

	at := s.now()
	return s.transition(func(st domain.DashboardState) domain.DashboardState { return st.FetchSucceeded(grouped, at) }), nil
}

func (s *DashboardService) record(start time.Time, status string) {
	if s.metrics == nil {
		return
	}
	labels := map[string]string{"status": status}
	s.metrics.RecordLatency(MetricRefresh, time.Since(start), labels)
	s.metrics.RecordCounter(MetricRefresh, 1, labels)
}

// DashboardView is what the dashboard renders for one filter.
type DashboardView struct {
	Candidates              []domain.CandidateGroup `json:"candidates"`
	Summary                 domain.Summary          `json:"summary"`
	ScoreDistribution       []domain.ChartPoint     `json:"scoreDistribution"`
	RecommendationBreakdown []domain.ChartPoint     `json:"recommendationBreakdown"`
	Phase                   domain.Phase            `json:"phase"`
	NoData                  bool                    `json:"noData"`
	Message                 string                  `json:"message,omitempty"`
	Error                   string                  `json:"error,omitempty"`
	FetchedAt               *time.Time              `json:"fetchedAt,omitempty"`
}

// View applies f to the current snapshot. The summary covers the whole
// grouping; candidates and charts cover the filtered subset.
func (s *DashboardService) View(f domain.Filter) DashboardView {
	st := s.Snapshot().WithFilter(f)
	visible := st.Visible()

	view := DashboardView{
		Candidates:              visible.Candidates(),
		Summary:                 st.Grouped().Summary(),
		ScoreDistribution:       visible.ScoreDistribution(),
		RecommendationBreakdown: visible.RecommendationBreakdown(),
		Phase:                   st.Phase(),
		NoData:                  st.NoData(),
		Message:                 st.Message(),
		Error:                   st.Error(),
	}
	if at := st.FetchedAt(); !at.IsZero() {
		view.FetchedAt = &at
	}
	return view
}

// ErrExportUnavailable is returned by Export when no exporter is wired.
var ErrExportUnavailable = errors.New("export is not configured")

// Export writes the current grouping as a workbook to w and returns the
// suggested file name. A service that never fetched refreshes first.
func (s *DashboardService) Export(ctx context.Context, w io.Writer) (string, error) {
	if s.exporter == nil {
		return "", ErrExportUnavailable
	}

	st := s.Snapshot()
	if st.FetchedAt().IsZero() {
		var err error
		if st, err = s.Refresh(ctx); err != nil {
			return "", err
		}
	}

	if err := s.exporter.Write(w, st.Grouped(), s.aggregator.Calculator()); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return s.exporter.FileName(s.now()), nil
}
