package domain

import "time"

// Phase is the lifecycle stage of a dashboard.
type Phase string

// Dashboard phases.
const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseEmpty   Phase = "empty"
	PhaseFailed  Phase = "failed"
)

// DashboardState is an immutable snapshot of what a dashboard shows.
// Every transition returns a new value and leaves the receiver untouched,
// so a state can be shared between goroutines without locking.
type DashboardState struct {
	phase     Phase
	grouped   *GroupedReviews
	filter    Filter
	err       string
	fetchedAt time.Time
}

// NewDashboardState returns the idle state with no data.
func NewDashboardState() DashboardState {
	return DashboardState{phase: PhaseIdle, grouped: EmptyGrouping()}
}

// FetchStarted marks a fetch in flight. Previous data stays visible.
func (s DashboardState) FetchStarted() DashboardState {
	s.phase = PhaseLoading
	return s
}

// FetchSucceeded replaces the grouping wholesale and clears any error.
// An empty grouping moves to PhaseEmpty rather than PhaseReady.
func (s DashboardState) FetchSucceeded(grouped *GroupedReviews, at time.Time) DashboardState {
	if grouped == nil {
		grouped = EmptyGrouping()
	}
	s.grouped = grouped
	s.err = ""
	s.fetchedAt = at
	s.phase = PhaseReady
	if grouped.Empty() {
		s.phase = PhaseEmpty
	}
	return s
}

// FetchFailed records a transport failure. The previous grouping is kept
// so the last good data remains available.
func (s DashboardState) FetchFailed(err error) DashboardState {
	s.phase = PhaseFailed
	s.err = FetchErrorPrefix
	if err != nil {
		s.err += err.Error()
	}
	return s
}

// WithFilter returns the state with f applied to the visible view.
func (s DashboardState) WithFilter(f Filter) DashboardState {
	s.filter = f
	return s
}

// Phase returns the current phase.
func (s DashboardState) Phase() Phase { return s.phase }

// Loading reports whether a fetch is in flight.
func (s DashboardState) Loading() bool { return s.phase == PhaseLoading }

// Grouped returns the full, unfiltered grouping.
func (s DashboardState) Grouped() *GroupedReviews {
	if s.grouped == nil {
		return EmptyGrouping()
	}
	return s.grouped
}

// Visible returns the grouping with the current filter applied.
func (s DashboardState) Visible() *GroupedReviews {
	if s.filter.IsZero() {
		return s.Grouped()
	}
	return s.Grouped().Filter(s.filter)
}

// Filter returns the active filter.
func (s DashboardState) Filter() Filter { return s.filter }

// Error returns the user facing fetch error, or "".
func (s DashboardState) Error() string { return s.err }

// FetchedAt returns when the grouping was last replaced.
func (s DashboardState) FetchedAt() time.Time { return s.fetchedAt }

// NoData reports whether the last successful fetch produced no complete
// reviews. It is false before the first fetch.
func (s DashboardState) NoData() bool {
	return !s.fetchedAt.IsZero() && s.Grouped().Empty()
}

// Message returns the no data message when NoData holds, otherwise "".
func (s DashboardState) Message() string {
	if s.NoData() {
		return NoDataMessage
	}
	return ""
}
