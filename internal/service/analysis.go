// Package service orchestrates the pipeline: report ingestion, change
// detection against the external API, correlation and the statistical layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/extractor"
)

const (
	dbTimeout = 5 * time.Second
)

var (
	ErrNoSubjects       = errors.New("no subjects extracted from report")
	ErrNoHistoricalData = errors.New("no historical data available")
	ErrNoCorrelations   = errors.New("no correlation data available")
	ErrNoAPIClient      = errors.New("no API client configured")
	ErrStorageFailure   = errors.New("storage failure")
)

// AnalysisService runs the pipeline stages over the repository and the
// external subject API.
type AnalysisService struct {
	storage AcademicRepository
	fetcher SubjectDataFetcher
	logger  *zap.Logger
}

// NewAnalysisService creates an AnalysisService. The fetcher may be nil, in
// which case the API-integrated stage is unavailable.
func NewAnalysisService(storage AcademicRepository, fetcher SubjectDataFetcher, logger *zap.Logger) *AnalysisService {
	if storage == nil {
		panic("storage must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}
	return &AnalysisService{
		storage: storage,
		fetcher: fetcher,
		logger:  logger,
	}
}

// IngestReportText extracts one report from raw text and persists it. A
// report from which no subjects can be extracted is rejected.
func (s *AnalysisService) IngestReportText(ctx context.Context, text string) (*extractor.ReportData, error) {
	data := extractor.New(text, s.logger).Extract()

	if len(data.Subjects) == 0 {
		return nil, ErrNoSubjects
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.storage.StoreReport(dbCtx, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("report ingested",
		zap.String("academic_year", data.CourseInfo.AcademicYear),
		zap.String("semester", data.CourseInfo.Semester),
		zap.Int("subjects", len(data.Subjects)))

	return data, nil
}

// RunAPIIntegratedAnalysis fetches per-year API data for every subject with
// historical rates, diffs faculty and evaluation methods across years, joins
// the diffs against performance changes and runs the significance tests over
// the result. Everything is persisted as it is produced.
func (s *AnalysisService) RunAPIIntegratedAnalysis(ctx context.Context, planCode string) ([]analysis.CorrelationRow, []analysis.SignificanceResult, error) {
	if s.fetcher == nil {
		return nil, nil, ErrNoAPIClient
	}

	series, err := s.loadSeries(ctx)
	if err != nil {
		return nil, nil, err
	}

	codes, names := subjectIndex(series)
	years := academicYears(series)

	s.logger.Info("fetching API data",
		zap.Int("subjects", len(codes)),
		zap.Int("years", len(years)),
		zap.String("plan_code", planCode))

	apiData := s.fetcher.FetchMultiYear(ctx, codes, years, planCode)

	changes := make(map[string]analysis.ChangeAnalysis)
	for _, code := range codes {
		yearData := apiData[code]
		if len(yearData) == 0 {
			continue
		}
		changes[code] = analysis.AnalyzeChanges(code, names[code], yearData)
	}

	correlations := analysis.Correlate(series, changes)
	significance := analysis.TestSignificance(correlations)

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.storage.StoreChangeAnalyses(dbCtx, changes); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := s.storage.StoreCorrelations(dbCtx, correlations); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if err := s.storage.StoreSignificanceResults(dbCtx, significance); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("API-integrated analysis stored",
		zap.Int("correlation_rows", len(correlations)),
		zap.Int("significance_results", len(significance)))

	return correlations, significance, nil
}

// RunTrendAnalysis fits trends on every subject's performance series and
// persists the results.
func (s *AnalysisService) RunTrendAnalysis(ctx context.Context) ([]analysis.TrendResult, error) {
	series, err := s.loadSeries(ctx)
	if err != nil {
		return nil, err
	}

	trends := analysis.AnalyzeTrends(series)

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.storage.StoreTrendResults(dbCtx, trends); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.logger.Info("trend analysis stored", zap.Int("subjects", len(trends)))
	return trends, nil
}

// RunSignificanceTests reruns the t-tests over previously stored correlation
// rows, without touching the external API.
func (s *AnalysisService) RunSignificanceTests(ctx context.Context) ([]analysis.SignificanceResult, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	correlations, err := s.storage.GetCorrelations(dbCtx, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(correlations) == 0 {
		return nil, ErrNoCorrelations
	}

	significance := analysis.TestSignificance(correlations)

	if err := s.storage.StoreSignificanceResults(dbCtx, significance); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return significance, nil
}

func (s *AnalysisService) loadSeries(ctx context.Context) ([]extractor.HistoricalRate, error) {
	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	series, err := s.storage.GetAllHistoricalRates(dbCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(series) == 0 {
		return nil, ErrNoHistoricalData
	}
	return series, nil
}

func subjectIndex(series []extractor.HistoricalRate) (codes []string, names map[string]string) {
	names = make(map[string]string)
	for _, row := range series {
		if _, seen := names[row.SubjectCode]; seen {
			continue
		}
		codes = append(codes, row.SubjectCode)
		names[row.SubjectCode] = row.SubjectName
	}
	sort.Strings(codes)
	return codes, names
}

func academicYears(series []extractor.HistoricalRate) []string {
	seen := make(map[string]struct{})
	var years []string
	for _, row := range series {
		if _, ok := seen[row.AcademicYear]; !ok {
			seen[row.AcademicYear] = struct{}{}
			years = append(years, row.AcademicYear)
		}
	}
	sort.Strings(years)
	return years
}
