package application

import (
	"io"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/aphrc/proposal-review/internal/domain"
	"github.com/aphrc/proposal-review/internal/ports"
)

// AverageLabel marks the per-candidate summary row of an export.
const AverageLabel = "AVERAGE"

// NoImprovementText replaces an empty improvement field in exports.
const NoImprovementText = "None specified"

var criterionPctHeaders = [domain.CriterionCount]string{
	"Innovation %",
	"Relevance %",
	"Feasibility %",
	"Potential %",
	"Diversity %",
	"Collaboration %",
	"CV %",
}

// ExportColumns returns the column layout of the review export.
func ExportColumns() []ports.Column {
	cols := []ports.Column{
		{Header: "Candidate Name", Width: 30},
		{Header: "Reviewer #", Width: 10},
		{Header: "Reviewer Name", Width: 25},
		{Header: "Reviewer Email", Width: 30},
		{Header: "Review Date", Width: 15},
	}
	for _, c := range domain.Criteria() {
		cols = append(cols,
			ports.Column{Header: c.Label(), Width: 12},
			ports.Column{Header: criterionPctHeaders[c], Width: 10},
		)
	}
	return append(cols,
		ports.Column{Header: "Proposal Strength", Width: 12},
		ports.Column{Header: "Research Subtotal", Width: 12},
		ports.Column{Header: "Total Score", Width: 12},
		ports.Column{Header: "Total Score %", Width: 12},
		ports.Column{Header: "Final Recommendation", Width: 20},
		ports.Column{Header: "Areas for Improvement", Width: 60},
	)
}

// Exporter turns a grouping into spreadsheet rows.
type Exporter struct {
	writer     ports.SpreadsheetWriter
	stripper   ports.MarkupStripper
	sheetName  string
	filePrefix string
}

// NewExporter returns an Exporter. Empty names fall back to the defaults.
func NewExporter(writer ports.SpreadsheetWriter, stripper ports.MarkupStripper, sheetName, filePrefix string) *Exporter {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	if filePrefix == "" {
		filePrefix = DefaultExportPrefix
	}
	return &Exporter{writer: writer, stripper: stripper, sheetName: sheetName, filePrefix: filePrefix}
}

// FileName returns <prefix>_YYYY-MM-DD.xlsx for the day of at.
func (e *Exporter) FileName(at time.Time) string {
	return e.filePrefix + "_" + at.Format("2006-01-02") + ".xlsx"
}

// Write renders grouped through the spreadsheet writer.
func (e *Exporter) Write(w io.Writer, grouped *domain.GroupedReviews, calc *domain.Calculator) error {
	return e.writer.Write(w, ports.Sheet{
		Name:    e.sheetName,
		Columns: ExportColumns(),
		Rows:    e.Rows(grouped, calc),
	})
}

// Rows returns one row per review followed by an AVERAGE row for every
// candidate. Candidates are sorted by name and reviews keep their order.
func (e *Exporter) Rows(grouped *domain.GroupedReviews, calc *domain.Calculator) [][]any {
	names := grouped.Names()
	slices.Sort(names)

	numericStrength := calc.Profile().Fields.NumericStrength
	var rows [][]any
	for _, name := range names {
		grp, _ := grouped.Lookup(name)
		for i, r := range grp.Reviews {
			rows = append(rows, e.reviewRow(name, i+1, r, numericStrength))
		}
		rows = append(rows, averageRow(name, grp.Reviews, calc))
	}
	return rows
}

func (e *Exporter) reviewRow(candidate string, n int, r domain.ScoredReview, numericStrength bool) []any {
	row := []any{candidate, n, r.ReviewerName, r.ReviewerEmail, r.ReviewDate}
	for _, c := range domain.Criteria() {
		row = append(row, r.Score(c), percent(r.Percentage(c)))
	}

	var strength any = r.ProposalStrength
	if numericStrength {
		strength = domain.ParseFloat(r.ProposalStrength)
	}

	improvement := r.AreasForImprovement
	if e.stripper != nil {
		improvement = e.stripper.StripMarkup(improvement)
	}
	if improvement == "" {
		improvement = NoImprovementText
	}

	return append(row,
		strength,
		domain.Round1(r.ResearchSubtotal()),
		r.TotalScore,
		percent(r.TotalScorePct),
		r.Recommendation.Label(),
		improvement,
	)
}

func averageRow(candidate string, reviews []domain.ScoredReview, calc *domain.Calculator) []any {
	n := float64(len(reviews))
	if n == 0 {
		n = 1
	}

	var raw domain.CriterionValues
	var strength, total, pctSum float64
	for _, r := range reviews {
		for i := range raw {
			raw[i] += r.Scores[i]
		}
		strength += domain.ParseFloat(r.ProposalStrength)
		total += r.TotalScore
		pctSum += r.TotalScorePct
	}

	row := []any{candidate, AverageLabel, "", "", ""}
	var research float64
	for _, c := range domain.Criteria() {
		avg := domain.Round1(raw[c] / n)
		row = append(row, avg, percent(calc.Percentage(c, avg)))
		if c != domain.ApplicantCV {
			research += avg
		}
	}

	var avgStrength any = ""
	if calc.Profile().Fields.NumericStrength {
		avgStrength = domain.Round1(strength / n)
	}

	return append(row,
		avgStrength,
		domain.Round1(research),
		domain.Round1(total/n),
		percent(math.Round(pctSum/n)),
		"",
		"",
	)
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
