package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aphrc/proposal-review/infrastructure/markup"
	"github.com/aphrc/proposal-review/infrastructure/spreadsheet"
	"github.com/aphrc/proposal-review/internal/application"
	"github.com/aphrc/proposal-review/internal/domain"
)

// scoringFlags selects the profile and matcher of the offline commands.
type scoringFlags struct {
	input     string
	schema    string
	matcher   string
	threshold float64
}

func (f *scoringFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "REDCap flat JSON record export, - for stdin")
	cmd.Flags().StringVar(&f.schema, "schema", string(domain.SchemaLegacy), "marking sheet layout: legacy or revised")
	cmd.Flags().StringVar(&f.matcher, "matcher", string(domain.MatcherGreedy), "candidate matcher: greedy or similarity")
	cmd.Flags().Float64Var(&f.threshold, "threshold", domain.DefaultSimilarityThreshold, "similarity matcher threshold")
}

// load reads the export and groups its complete records.
func (f *scoringFlags) load(stdin io.Reader) (*domain.Aggregator, *domain.GroupedReviews, error) {
	agg, err := application.NewAggregator(application.ScoringConfig{
		Schema:              domain.Schema(f.schema),
		Matcher:             domain.MatcherKind(f.matcher),
		SimilarityThreshold: f.threshold,
	})
	if err != nil {
		return nil, nil, err
	}

	records, err := readRecords(f.input, stdin)
	if err != nil {
		return nil, nil, err
	}
	grouped := application.AggregateRecords(agg, records)
	log.Debugf("Aggregated %d records into %d candidates", len(records), grouped.Len())
	return agg, grouped, nil
}

func readRecords(path string, stdin io.Reader) ([]domain.RawRecord, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open records: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []domain.RawRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

type aggregateOutput struct {
	Summary                 domain.Summary          `json:"summary"`
	Candidates              []domain.CandidateGroup `json:"candidates"`
	ScoreDistribution       []domain.ChartPoint     `json:"scoreDistribution"`
	RecommendationBreakdown []domain.ChartPoint     `json:"recommendationBreakdown"`
	Message                 string                  `json:"message,omitempty"`
}

func newAggregateCmd() *cobra.Command {
	flags := &scoringFlags{}
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Group an exported record file and print the summary as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, grouped, err := flags.load(cmd.InOrStdin())
			if err != nil {
				return err
			}

			out := aggregateOutput{
				Summary:                 grouped.Summary(),
				Candidates:              grouped.Candidates(),
				ScoreDistribution:       grouped.ScoreDistribution(),
				RecommendationBreakdown: grouped.RecommendationBreakdown(),
			}
			if grouped.Empty() {
				out.Message = domain.NoDataMessage
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	flags := &scoringFlags{}
	var output, sheet, prefix string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an exported record file as the review spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			agg, grouped, err := flags.load(cmd.InOrStdin())
			if err != nil {
				return err
			}

			exporter := application.NewExporter(spreadsheet.ExcelWriter{}, markup.Stripper{}, sheet, prefix)
			path := output
			if path == "" {
				path = exporter.FileName(time.Now())
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, exporter.FileName(time.Now()))
			}

			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			if err := exporter.Write(f, grouped, agg.Calculator()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d candidates to %s\n", grouped.Len(), path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory; defaults to the dated file name")
	cmd.Flags().StringVar(&sheet, "sheet", application.DefaultSheetName, "worksheet name")
	cmd.Flags().StringVar(&prefix, "prefix", application.DefaultExportPrefix, "file name prefix")
	return cmd
}
