package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/academic-insights/internal/extractor"
)

func performanceSeries(code, name string, values ...float64) []extractor.HistoricalRate {
	years := []string{"2018-19", "2019-20", "2020-21", "2021-22", "2022-23"}
	rows := make([]extractor.HistoricalRate, 0, len(values))
	for i, v := range values {
		rows = append(rows, extractor.HistoricalRate{
			SubjectCode:  code,
			SubjectName:  name,
			RateType:     extractor.RatePerformance,
			AcademicYear: years[i],
			Value:        v,
		})
	}
	return rows
}

func TestAnalyzeTrends(t *testing.T) {
	t.Run("perfect linear improvement", func(t *testing.T) {
		series := performanceSeries("105000005", "Cálculo", 50, 60, 70, 80, 90)

		results := AnalyzeTrends(series)
		require.Len(t, results, 1)
		r := results[0]

		assert.Equal(t, 5, r.NumYears)
		assert.Equal(t, "2018-19", r.FirstYear)
		assert.Equal(t, "2022-23", r.LastYear)
		assert.InDelta(t, 40.0, r.TotalChange, 1e-9)
		assert.InDelta(t, 10.0, r.AverageAnnualChange, 1e-9)

		assert.InDelta(t, 10.0, r.LinearSlope, 1e-9)
		assert.InDelta(t, 50.0, r.LinearIntercept, 1e-9)
		assert.InDelta(t, 1.0, r.RSquared, 1e-9)
		assert.Zero(t, r.RegressionPValue)
		assert.True(t, r.SlopeSignificant)

		// S counts all ten concordant pairs.
		assert.Equal(t, "increasing", r.MKTrend)
		assert.InDelta(t, 10.0, r.MKStatistic, 1e-9)
		assert.InDelta(t, 0.0275, r.MKPValue, 1e-3)
		assert.True(t, r.MKSignificant)

		assert.InDelta(t, 10.0, r.TheilSenSlope, 1e-9)
		assert.InDelta(t, 50.0, r.TheilSenIntercept, 1e-9)
		assert.InDelta(t, 10.0, r.TheilSenLowSlope, 1e-9)
		assert.InDelta(t, 10.0, r.TheilSenHighSlope, 1e-9)

		assert.Equal(t, TrendImproving, r.TrendDirection)
	})

	t.Run("steady decline", func(t *testing.T) {
		series := performanceSeries("105000005", "Cálculo", 90, 80, 70, 60, 50)

		results := AnalyzeTrends(series)
		require.Len(t, results, 1)
		r := results[0]

		assert.InDelta(t, -10.0, r.LinearSlope, 1e-9)
		assert.Equal(t, "decreasing", r.MKTrend)
		assert.InDelta(t, -10.0, r.MKStatistic, 1e-9)
		assert.True(t, r.MKSignificant)
		assert.Equal(t, TrendDeclining, r.TrendDirection)
	})

	t.Run("small fluctuations are stable", func(t *testing.T) {
		series := performanceSeries("105000005", "Cálculo", 60, 60.5, 59.8)

		results := AnalyzeTrends(series)
		require.Len(t, results, 1)
		r := results[0]

		assert.Equal(t, "no trend", r.MKTrend)
		assert.False(t, r.MKSignificant)
		assert.False(t, r.SlopeSignificant)
		assert.Equal(t, TrendStable, r.TrendDirection)
	})

	t.Run("insignificant fit falls back to annual change", func(t *testing.T) {
		series := performanceSeries("105000005", "Cálculo", 50, 58, 53)

		results := AnalyzeTrends(series)
		require.Len(t, results, 1)
		r := results[0]

		assert.False(t, r.MKSignificant)
		assert.False(t, r.SlopeSignificant)
		assert.InDelta(t, 1.5, r.AverageAnnualChange, 1e-9)
		assert.Equal(t, TrendImproving, r.TrendDirection)
	})

	t.Run("fewer than three years is skipped", func(t *testing.T) {
		series := performanceSeries("105000005", "Cálculo", 50, 60)

		assert.Empty(t, AnalyzeTrends(series))
	})

	t.Run("only performance rates contribute", func(t *testing.T) {
		series := []extractor.HistoricalRate{
			{SubjectCode: "105000005", SubjectName: "Cálculo", RateType: extractor.RateSuccess, AcademicYear: "2019-20", Value: 70},
			{SubjectCode: "105000005", SubjectName: "Cálculo", RateType: extractor.RateSuccess, AcademicYear: "2020-21", Value: 75},
			{SubjectCode: "105000005", SubjectName: "Cálculo", RateType: extractor.RateSuccess, AcademicYear: "2021-22", Value: 80},
		}

		assert.Empty(t, AnalyzeTrends(series))
	})
}

func TestMannKendall_Ties(t *testing.T) {
	trend, s, pValue := mannKendall([]float64{1, 2, 2, 3})

	assert.InDelta(t, 5.0, s, 1e-9)
	// Tie-corrected variance is (156 - 18) / 18.
	assert.InDelta(t, 0.14866, pValue, 1e-3)
	assert.Equal(t, "no trend", trend)
}

func TestMannKendall_Constant(t *testing.T) {
	trend, s, pValue := mannKendall([]float64{5, 5, 5, 5})

	assert.Zero(t, s)
	assert.InDelta(t, 1.0, pValue, 1e-9)
	assert.Equal(t, "no trend", trend)
}

func TestMedianOf(t *testing.T) {
	assert.InDelta(t, 2.0, medianOf([]float64{3, 1, 2}), 1e-9)
	assert.InDelta(t, 2.5, medianOf([]float64{4, 1, 3, 2}), 1e-9)
}
