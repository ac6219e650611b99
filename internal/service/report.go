package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/extractor"
)

// Thresholds for flagging subjects in the comparative report.
const (
	lowPerformanceThreshold  = 50.0
	highAbsenteeismThreshold = 10.0
)

// WriteComparativeReport renders a plain-text summary of the stored
// historical data: per-subject rate trends, the largest performance swings
// and subjects whose latest rates warrant review.
func (s *AnalysisService) WriteComparativeReport(ctx context.Context, outputDir string) (string, error) {
	series, err := s.loadSeries(ctx)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	var b strings.Builder
	b.WriteString("ACADEMIC PERFORMANCE COMPARATIVE REPORT\n")
	b.WriteString("=======================================\n\n")

	writeRateTrends(&b, series)
	writeLargestChanges(&b, series)
	writeSubjectsForReview(&b, series)

	path := filepath.Join(outputDir, "comparative_report.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write comparative report: %w", err)
	}

	s.logger.Info("comparative report written", zap.String("path", path))
	return path, nil
}

// ExportCorrelationSummary aggregates the stored correlation rows into
// per-subject and global conditional averages and writes them as JSON to the
// output dir.
func (s *AnalysisService) ExportCorrelationSummary(ctx context.Context, outputDir string) (string, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	correlations, err := s.storage.GetCorrelations(dbCtx, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(correlations) == 0 {
		return "", ErrNoCorrelations
	}

	summary := analysis.SummarizeCorrelations(correlations)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode correlation summary: %w", err)
	}

	path := filepath.Join(outputDir, "performance_faculty_correlations.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write correlation summary: %w", err)
	}

	s.logger.Info("correlation summary written",
		zap.String("path", path),
		zap.Int("subjects", summary.NumSubjects),
		zap.Int("periods", summary.TotalPeriods))
	return path, nil
}

type subjectSeries struct {
	code  string
	name  string
	rates map[string][]extractor.HistoricalRate
}

func groupSeries(series []extractor.HistoricalRate) []subjectSeries {
	byCode := make(map[string]*subjectSeries)
	var codes []string

	for _, row := range series {
		group, ok := byCode[row.SubjectCode]
		if !ok {
			group = &subjectSeries{
				code:  row.SubjectCode,
				name:  row.SubjectName,
				rates: make(map[string][]extractor.HistoricalRate),
			}
			byCode[row.SubjectCode] = group
			codes = append(codes, row.SubjectCode)
		}
		group.rates[row.RateType] = append(group.rates[row.RateType], row)
	}
	sort.Strings(codes)

	grouped := make([]subjectSeries, 0, len(codes))
	for _, code := range codes {
		group := byCode[code]
		for _, points := range group.rates {
			sort.Slice(points, func(i, j int) bool {
				return points[i].AcademicYear < points[j].AcademicYear
			})
		}
		grouped = append(grouped, *group)
	}
	return grouped
}

func writeRateTrends(b *strings.Builder, series []extractor.HistoricalRate) {
	b.WriteString("SUBJECT RATE TRENDS\n")
	b.WriteString("-------------------\n\n")

	for _, subject := range groupSeries(series) {
		fmt.Fprintf(b, "Subject: %s\n", subject.name)

		rateTypes := make([]string, 0, len(subject.rates))
		for rateType := range subject.rates {
			rateTypes = append(rateTypes, rateType)
		}
		sort.Strings(rateTypes)

		for _, rateType := range rateTypes {
			points := subject.rates[rateType]
			if len(points) < 2 {
				continue
			}

			first, last := points[0], points[len(points)-1]
			change := last.Value - first.Value

			verdict := "held stable"
			if math.Abs(change) >= 1 {
				if change > 0 {
					verdict = "improved"
				} else {
					verdict = "worsened"
				}
			}

			fmt.Fprintf(b, "  - The %s rate has %s from %.2f%% to %.2f%% (%.2f percentage points) between %s and %s\n",
				rateType, verdict, first.Value, last.Value, math.Abs(change),
				first.AcademicYear, last.AcademicYear)
		}
		b.WriteString("\n")
	}
}

func writeLargestChanges(b *strings.Builder, series []extractor.HistoricalRate) {
	b.WriteString("MOST SIGNIFICANT CHANGES\n")
	b.WriteString("------------------------\n\n")

	type swing struct {
		name   string
		change float64
		first  extractor.HistoricalRate
		last   extractor.HistoricalRate
	}
	var swings []swing

	for _, subject := range groupSeries(series) {
		points := subject.rates[extractor.RatePerformance]
		if len(points) < 2 {
			continue
		}
		first, last := points[0], points[len(points)-1]
		swings = append(swings, swing{
			name:   subject.name,
			change: last.Value - first.Value,
			first:  first,
			last:   last,
		})
	}

	sort.Slice(swings, func(i, j int) bool {
		return math.Abs(swings[i].change) > math.Abs(swings[j].change)
	})
	if len(swings) > 3 {
		swings = swings[:3]
	}

	for i, sw := range swings {
		direction := "improvement"
		if sw.change < 0 {
			direction = "decline"
		}
		fmt.Fprintf(b, "%d. %s: %.2f percentage point %s\n", i+1, sw.name, math.Abs(sw.change), direction)
		fmt.Fprintf(b, "   From %.2f%% in %s to %.2f%% in %s\n\n",
			sw.first.Value, sw.first.AcademicYear, sw.last.Value, sw.last.AcademicYear)
	}
}

func writeSubjectsForReview(b *strings.Builder, series []extractor.HistoricalRate) {
	b.WriteString("SUBJECTS REQUIRING REVIEW\n")
	b.WriteString("-------------------------\n\n")

	flagged := 0
	for _, subject := range groupSeries(series) {
		perf := subject.rates[extractor.RatePerformance]
		absent := subject.rates[extractor.RateAbsenteeism]
		if len(perf) == 0 || len(absent) == 0 {
			continue
		}

		latestPerf := perf[len(perf)-1].Value
		latestAbsent := absent[len(absent)-1].Value

		var concerns []string
		if latestPerf < lowPerformanceThreshold {
			concerns = append(concerns, "low performance rate")
		}
		if latestAbsent > highAbsenteeismThreshold {
			concerns = append(concerns, "high absenteeism rate")
		}
		if len(concerns) == 0 {
			continue
		}

		flagged++
		fmt.Fprintf(b, "%d. %s:\n", flagged, subject.name)
		fmt.Fprintf(b, "   Performance rate: %.2f%%\n", latestPerf)
		fmt.Fprintf(b, "   Absenteeism rate: %.2f%%\n", latestAbsent)
		fmt.Fprintf(b, "   Concerns: %s\n\n", strings.Join(concerns, ", "))
	}

	if flagged == 0 {
		b.WriteString("No subjects with critical issues identified.\n\n")
	}
}
