package server

import (
	"context"
	"time"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/repository/models"
)

// Store defines the read operations the HTTP handlers need.
type Store interface {
	GetSubjects(ctx context.Context, academicYear, semester string) ([]models.Subject, error)
	GetSubject(ctx context.Context, subjectCode, academicYear string) (models.Subject, error)
	GetHistoricalRates(ctx context.Context, subjectCode, rateType string) ([]models.HistoricalRate, error)
	GetFacultyChanges(ctx context.Context, subjectCode string) ([]models.FacultyChange, error)
	GetEvaluationChanges(ctx context.Context, subjectCode string) ([]models.EvaluationChange, error)
	GetCorrelations(ctx context.Context, subjectCode string) ([]analysis.CorrelationRow, error)
	GetSignificanceResults(ctx context.Context, subjectCode string) ([]analysis.SignificanceResult, error)
	GetTrendResults(ctx context.Context, subjectCode string) ([]analysis.TrendResult, error)
	SearchSubjects(ctx context.Context, term string) ([]models.Subject, error)
	GetStats(ctx context.Context) (models.StatsSummary, error)
}

// Cacher is the minimal cache surface used for read-through caching.
type Cacher interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}
