package mocks

import (
	"context"
	"errors"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/extractor"
	"github.com/godilite/academic-insights/internal/upmapi"
)

// MockAcademicRepository is a mock implementation of the AcademicRepository
// interface for testing the service layer.
type MockAcademicRepository struct {
	StoreReportFunc              func(ctx context.Context, data *extractor.ReportData) error
	GetAllHistoricalRatesFunc    func(ctx context.Context) ([]extractor.HistoricalRate, error)
	StoreChangeAnalysesFunc      func(ctx context.Context, analyses map[string]analysis.ChangeAnalysis) error
	StoreCorrelationsFunc        func(ctx context.Context, rows []analysis.CorrelationRow) error
	GetCorrelationsFunc          func(ctx context.Context, subjectCode string) ([]analysis.CorrelationRow, error)
	StoreSignificanceResultsFunc func(ctx context.Context, results []analysis.SignificanceResult) error
	StoreTrendResultsFunc        func(ctx context.Context, results []analysis.TrendResult) error
}

func (m *MockAcademicRepository) StoreReport(ctx context.Context, data *extractor.ReportData) error {
	if m.StoreReportFunc != nil {
		return m.StoreReportFunc(ctx, data)
	}
	return errors.New("StoreReportFunc not implemented")
}

func (m *MockAcademicRepository) GetAllHistoricalRates(ctx context.Context) ([]extractor.HistoricalRate, error) {
	if m.GetAllHistoricalRatesFunc != nil {
		return m.GetAllHistoricalRatesFunc(ctx)
	}
	return nil, errors.New("GetAllHistoricalRatesFunc not implemented")
}

func (m *MockAcademicRepository) StoreChangeAnalyses(ctx context.Context, analyses map[string]analysis.ChangeAnalysis) error {
	if m.StoreChangeAnalysesFunc != nil {
		return m.StoreChangeAnalysesFunc(ctx, analyses)
	}
	return errors.New("StoreChangeAnalysesFunc not implemented")
}

func (m *MockAcademicRepository) StoreCorrelations(ctx context.Context, rows []analysis.CorrelationRow) error {
	if m.StoreCorrelationsFunc != nil {
		return m.StoreCorrelationsFunc(ctx, rows)
	}
	return errors.New("StoreCorrelationsFunc not implemented")
}

func (m *MockAcademicRepository) GetCorrelations(ctx context.Context, subjectCode string) ([]analysis.CorrelationRow, error) {
	if m.GetCorrelationsFunc != nil {
		return m.GetCorrelationsFunc(ctx, subjectCode)
	}
	return nil, errors.New("GetCorrelationsFunc not implemented")
}

func (m *MockAcademicRepository) StoreSignificanceResults(ctx context.Context, results []analysis.SignificanceResult) error {
	if m.StoreSignificanceResultsFunc != nil {
		return m.StoreSignificanceResultsFunc(ctx, results)
	}
	return errors.New("StoreSignificanceResultsFunc not implemented")
}

func (m *MockAcademicRepository) StoreTrendResults(ctx context.Context, results []analysis.TrendResult) error {
	if m.StoreTrendResultsFunc != nil {
		return m.StoreTrendResultsFunc(ctx, results)
	}
	return errors.New("StoreTrendResultsFunc not implemented")
}

// MockSubjectDataFetcher is a mock implementation of the SubjectDataFetcher
// interface for testing the service layer.
type MockSubjectDataFetcher struct {
	FetchMultiYearFunc func(ctx context.Context, subjectCodes, years []string, planCode string) map[string]map[string]*upmapi.YearRecord
}

func (m *MockSubjectDataFetcher) FetchMultiYear(ctx context.Context, subjectCodes, years []string, planCode string) map[string]map[string]*upmapi.YearRecord {
	if m.FetchMultiYearFunc != nil {
		return m.FetchMultiYearFunc(ctx, subjectCodes, years, planCode)
	}
	return nil
}
