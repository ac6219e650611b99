package service

import (
	"context"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/extractor"
	"github.com/godilite/academic-insights/internal/upmapi"
)

// AcademicRepository defines the persistence operations the service needs.
type AcademicRepository interface {
	StoreReport(ctx context.Context, data *extractor.ReportData) error
	GetAllHistoricalRates(ctx context.Context) ([]extractor.HistoricalRate, error)
	StoreChangeAnalyses(ctx context.Context, analyses map[string]analysis.ChangeAnalysis) error
	StoreCorrelations(ctx context.Context, rows []analysis.CorrelationRow) error
	GetCorrelations(ctx context.Context, subjectCode string) ([]analysis.CorrelationRow, error)
	StoreSignificanceResults(ctx context.Context, results []analysis.SignificanceResult) error
	StoreTrendResults(ctx context.Context, results []analysis.TrendResult) error
}

// SubjectDataFetcher defines the external API surface the service needs.
type SubjectDataFetcher interface {
	FetchMultiYear(ctx context.Context, subjectCodes, years []string, planCode string) map[string]map[string]*upmapi.YearRecord
}
