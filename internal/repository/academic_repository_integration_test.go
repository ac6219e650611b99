package repository_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/extractor"
	"github.com/godilite/academic-insights/internal/repository"
)

func setupTestDB(t *testing.T) *repository.AcademicRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewAcademicRepository(db)
	require.NoError(t, repo.Setup(context.Background()))

	return repo
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func stringPtr(v string) *string  { return &v }

func sampleReportData() *extractor.ReportData {
	return &extractor.ReportData{
		CourseInfo: extractor.CourseInfo{
			AcademicYear: "2022/23",
			Semester:     "Segundo",
			PlanCode:     "10II",
			PlanTitle:    "Grado en Ingenieria Informatica",
		},
		Subjects: map[string]*extractor.SubjectRecord{
			"105000005": {
				Code:              "105000005",
				Name:              "Cálculo",
				Credits:           6,
				Enrolled:          455,
				TotalEnrolled:     intPtr(455),
				FirstTime:         intPtr(390),
				PartialDedication: intPtr(12),
				PerformanceRate:   floatPtr(65.5),
				SuccessRate:       floatPtr(78.2),
				AbsenteeismRate:   floatPtr(8.1),
				Historical: map[string]map[string]float64{
					extractor.RatePerformance: {"2019-20": 55.1, "2020-21": 60.3, "2021-22": 65.5},
					extractor.RateSuccess:     {"2020-21": 74.1, "2021-22": 78.2},
				},
			},
			"105000007": {
				Code:    "105000007",
				Name:    "Probabilidades y Estadística I",
				Credits: 6,
			},
		},
	}
}

func TestStoreReport_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreReport(ctx, sampleReportData()))

	t.Run("list all subjects", func(t *testing.T) {
		subjects, err := repo.GetSubjects(ctx, "", "")
		require.NoError(t, err)
		require.Len(t, subjects, 2)

		// Ordered by name.
		assert.Equal(t, "Cálculo", subjects[0].SubjectName)
		assert.Equal(t, "Probabilidades y Estadística I", subjects[1].SubjectName)

		calc := subjects[0]
		assert.Equal(t, "105000005", calc.SubjectCode)
		assert.Equal(t, "2022/23", calc.AcademicYear)
		require.NotNil(t, calc.TotalEnrolled)
		assert.EqualValues(t, 455, *calc.TotalEnrolled)
		require.NotNil(t, calc.PerformanceRate)
		assert.InDelta(t, 65.5, *calc.PerformanceRate, 1e-9)
	})

	t.Run("subject without enrollment keeps nil fields", func(t *testing.T) {
		prob, err := repo.GetSubject(ctx, "105000007", "")
		require.NoError(t, err)

		assert.Nil(t, prob.TotalEnrolled)
		assert.Nil(t, prob.PerformanceRate)
		assert.Nil(t, prob.AbsenteeismRate)
	})

	t.Run("year filter", func(t *testing.T) {
		subjects, err := repo.GetSubjects(ctx, "2022/23", "Segundo")
		require.NoError(t, err)
		assert.Len(t, subjects, 2)

		subjects, err = repo.GetSubjects(ctx, "2010/11", "")
		require.NoError(t, err)
		assert.Empty(t, subjects)
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := repo.GetSubject(ctx, "999999999", "")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("re-storing replaces rows", func(t *testing.T) {
		data := sampleReportData()
		data.Subjects["105000005"].PerformanceRate = floatPtr(70.0)
		require.NoError(t, repo.StoreReport(ctx, data))

		calc, err := repo.GetSubject(ctx, "105000005", "2022/23")
		require.NoError(t, err)
		require.NotNil(t, calc.PerformanceRate)
		assert.InDelta(t, 70.0, *calc.PerformanceRate, 1e-9)

		subjects, err := repo.GetSubjects(ctx, "", "")
		require.NoError(t, err)
		assert.Len(t, subjects, 2)
	})
}

func TestHistoricalRates(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreReport(ctx, sampleReportData()))

	t.Run("all rate types for one subject", func(t *testing.T) {
		rates, err := repo.GetHistoricalRates(ctx, "105000005", "")
		require.NoError(t, err)
		assert.Len(t, rates, 5)
	})

	t.Run("rate type filter and ordering", func(t *testing.T) {
		rates, err := repo.GetHistoricalRates(ctx, "105000005", extractor.RatePerformance)
		require.NoError(t, err)
		require.Len(t, rates, 3)

		assert.Equal(t, "2019-20", rates[0].AcademicYear)
		assert.Equal(t, "2021-22", rates[2].AcademicYear)
		assert.InDelta(t, 55.1, rates[0].Value, 1e-9)
	})

	t.Run("no data", func(t *testing.T) {
		rates, err := repo.GetHistoricalRates(ctx, "105000007", "")
		require.NoError(t, err)
		assert.Empty(t, rates)
	})

	t.Run("full series with resolved names", func(t *testing.T) {
		rows, err := repo.GetAllHistoricalRates(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 5)

		assert.Equal(t, extractor.HistoricalRate{
			SubjectCode:  "105000005",
			SubjectName:  "Cálculo",
			RateType:     extractor.RatePerformance,
			AcademicYear: "2019-20",
			Value:        55.1,
		}, rows[0])
	})
}

func TestSearchSubjects(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreReport(ctx, sampleReportData()))

	t.Run("by name substring", func(t *testing.T) {
		results, err := repo.SearchSubjects(ctx, "Estadística")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "105000007", results[0].SubjectCode)
	})

	t.Run("by code substring", func(t *testing.T) {
		results, err := repo.SearchSubjects(ctx, "105000005")
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Cálculo", results[0].SubjectName)
	})

	t.Run("no match", func(t *testing.T) {
		results, err := repo.SearchSubjects(ctx, "Termodinámica")
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestGetStats(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		stats, err := repo.GetStats(ctx)
		require.NoError(t, err)

		assert.Zero(t, stats.TotalSubjects)
		assert.Zero(t, stats.TotalHistoricalRates)
		assert.False(t, stats.HasAPIAnalysis)
	})

	require.NoError(t, repo.StoreReport(ctx, sampleReportData()))

	t.Run("after ingestion", func(t *testing.T) {
		stats, err := repo.GetStats(ctx)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.TotalSubjects)
		assert.Equal(t, 1, stats.TotalAcademicYears)
		assert.Equal(t, []string{"2022/23"}, stats.AcademicYears)
		assert.Equal(t, 5, stats.TotalHistoricalRates)
		assert.False(t, stats.HasAPIAnalysis)
	})

	t.Run("api analysis flag", func(t *testing.T) {
		analyses := map[string]analysis.ChangeAnalysis{
			"105000005": {
				SubjectCode: "105000005",
				Faculty: []analysis.FacultyChange{
					{Year1: "2020-21", Year2: "2021-22", TotalAdded: 1, PercentChanged: 50.0},
				},
			},
		}
		require.NoError(t, repo.StoreChangeAnalyses(ctx, analyses))

		stats, err := repo.GetStats(ctx)
		require.NoError(t, err)
		assert.True(t, stats.HasAPIAnalysis)
	})
}

func TestChangeAnalyses_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, repo.StoreReport(ctx, sampleReportData()))

	analyses := map[string]analysis.ChangeAnalysis{
		"105000005": {
			SubjectCode: "105000005",
			SubjectName: "Cálculo",
			Faculty: []analysis.FacultyChange{
				{Year1: "2019-20", Year2: "2020-21", Added: []string{"Martín"}, Removed: []string{"López"}, TotalAdded: 1, TotalRemoved: 1, PercentChanged: 100.0},
				{Year1: "2020-21", Year2: "2021-22"},
			},
			Evaluation: []analysis.EvaluationChange{
				{Year1: "2019-20", Year2: "2020-21", Added: []string{"trabajo"}, Changed: true},
			},
		},
		"999999999": {
			SubjectCode: "999999999",
			Faculty: []analysis.FacultyChange{
				{Year1: "2020-21", Year2: "2021-22", TotalAdded: 2, PercentChanged: 40.0},
			},
		},
	}
	require.NoError(t, repo.StoreChangeAnalyses(ctx, analyses))

	t.Run("faculty changes for one subject", func(t *testing.T) {
		changes, err := repo.GetFacultyChanges(ctx, "105000005")
		require.NoError(t, err)
		require.Len(t, changes, 2)

		first := changes[0]
		assert.Equal(t, "2019-20", first.Year1)
		assert.Equal(t, 1, first.FacultyAdded)
		assert.Equal(t, 1, first.FacultyRemoved)
		assert.InDelta(t, 100.0, first.PercentChanged, 1e-9)
		require.NotNil(t, first.SubjectName)
		assert.Equal(t, "Cálculo", *first.SubjectName)
	})

	t.Run("unknown subject name stays nil", func(t *testing.T) {
		changes, err := repo.GetFacultyChanges(ctx, "999999999")
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Nil(t, changes[0].SubjectName)
	})

	t.Run("all faculty changes", func(t *testing.T) {
		changes, err := repo.GetFacultyChanges(ctx, "")
		require.NoError(t, err)
		assert.Len(t, changes, 3)
	})

	t.Run("evaluation changes store counts", func(t *testing.T) {
		changes, err := repo.GetEvaluationChanges(ctx, "105000005")
		require.NoError(t, err)
		require.Len(t, changes, 1)

		assert.Equal(t, 1, changes[0].MethodsAdded)
		assert.Zero(t, changes[0].MethodsRemoved)
	})
}

func TestCorrelations_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	rows := []analysis.CorrelationRow{
		{
			SubjectCode:           "105000005",
			SubjectName:           "Cálculo",
			Year1:                 "2019-20",
			Year2:                 "2020-21",
			PerformanceChange:     5.2,
			FacultyChanged:        true,
			FacultyPercentChanged: 50.0,
			FacultyAdded:          1,
		},
		{
			SubjectCode:            "105000007",
			SubjectName:            "Probabilidades y Estadística I",
			Year1:                  "2020-21",
			Year2:                  "2021-22",
			PerformanceChange:      -1.5,
			EvaluationChanged:      true,
			EvaluationMethodsAdded: 2,
		},
	}
	require.NoError(t, repo.StoreCorrelations(ctx, rows))

	stored, err := repo.GetCorrelations(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, rows[0], stored[0])
	assert.Equal(t, rows[1], stored[1])

	filtered, err := repo.GetCorrelations(ctx, "105000007")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.True(t, filtered[0].EvaluationChanged)
}

func TestSignificanceResults_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	results := []analysis.SignificanceResult{
		{
			SubjectCode:              "105000005",
			SubjectName:              "Cálculo",
			ImpactType:               analysis.ImpactFaculty,
			PeriodsWithChange:        2,
			PeriodsWithoutChange:     2,
			MeanWithChange:           floatPtr(5.0),
			MeanWithoutChange:        floatPtr(2.0),
			Difference:               floatPtr(3.0),
			TStatistic:               floatPtr(2.12),
			PValue:                   floatPtr(0.168),
			StatisticallySignificant: boolPtr(false),
			CohensD:                  floatPtr(2.12),
			EffectSizeCategory:       stringPtr("Large"),
		},
		{
			// Groups too small for the t-test: statistical fields stay NULL.
			SubjectCode:          "105000007",
			SubjectName:          "Probabilidades y Estadística I",
			ImpactType:           analysis.ImpactEvaluation,
			PeriodsWithChange:    1,
			PeriodsWithoutChange: 1,
			MeanWithChange:       floatPtr(1.0),
			MeanWithoutChange:    floatPtr(-1.0),
			Difference:           floatPtr(2.0),
		},
	}
	require.NoError(t, repo.StoreSignificanceResults(ctx, results))

	stored, err := repo.GetSignificanceResults(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, results[0], stored[0])
	assert.Equal(t, results[1], stored[1])

	assert.Nil(t, stored[1].TStatistic)
	assert.Nil(t, stored[1].StatisticallySignificant)
	assert.Nil(t, stored[1].EffectSizeCategory)

	filtered, err := repo.GetSignificanceResults(ctx, "105000005")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, analysis.ImpactFaculty, filtered[0].ImpactType)
}

func TestTrendResults_RoundTrip(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	results := []analysis.TrendResult{
		{
			SubjectCode:         "105000005",
			SubjectName:         "Cálculo",
			NumYears:            3,
			FirstYear:           "2019-20",
			LastYear:            "2021-22",
			FirstValue:          55.1,
			LastValue:           65.5,
			TotalChange:         10.4,
			AverageAnnualChange: 5.2,
			LinearSlope:         5.2,
			LinearIntercept:     55.1,
			RSquared:            0.999,
			RegressionPValue:    0.01,
			SlopeSignificant:    true,
			MKTrend:             "increasing",
			MKStatistic:         3,
			MKPValue:            0.04,
			MKSignificant:       true,
			TheilSenSlope:       5.2,
			TheilSenIntercept:   55.1,
			TheilSenLowSlope:    5.0,
			TheilSenHighSlope:   5.4,
			TrendDirection:      analysis.TrendImproving,
		},
	}
	require.NoError(t, repo.StoreTrendResults(ctx, results))

	stored, err := repo.GetTrendResults(ctx, "")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, results[0], stored[0])

	// Re-storing the same subject replaces the row.
	results[0].TrendDirection = analysis.TrendStable
	require.NoError(t, repo.StoreTrendResults(ctx, results))

	stored, err = repo.GetTrendResults(ctx, "105000005")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, analysis.TrendStable, stored[0].TrendDirection)
}
