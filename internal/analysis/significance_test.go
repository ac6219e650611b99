package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corrRow(code string, change float64, faculty, evaluation bool) CorrelationRow {
	return CorrelationRow{
		SubjectCode:       code,
		SubjectName:       "Subject " + code,
		PerformanceChange: change,
		FacultyChanged:    faculty,
		EvaluationChanged: evaluation,
	}
}

func findResult(t *testing.T, results []SignificanceResult, code, impact string) SignificanceResult {
	t.Helper()
	for _, r := range results {
		if r.SubjectCode == code && r.ImpactType == impact {
			return r
		}
	}
	t.Fatalf("no result for %s / %s", code, impact)
	return SignificanceResult{}
}

func TestTestSignificance(t *testing.T) {
	rows := []CorrelationRow{
		corrRow("105000005", 4.0, true, false),
		corrRow("105000005", 6.0, true, false),
		corrRow("105000005", 1.0, false, true),
		corrRow("105000005", 3.0, false, false),
	}

	results := TestSignificance(rows)

	// Two impact types for the subject plus two pooled rows.
	require.Len(t, results, 4)

	t.Run("per-subject faculty impact", func(t *testing.T) {
		r := findResult(t, results, "105000005", ImpactFaculty)

		assert.Equal(t, 2, r.PeriodsWithChange)
		assert.Equal(t, 2, r.PeriodsWithoutChange)

		require.NotNil(t, r.MeanWithChange)
		assert.InDelta(t, 5.0, *r.MeanWithChange, 1e-9)
		require.NotNil(t, r.MeanWithoutChange)
		assert.InDelta(t, 2.0, *r.MeanWithoutChange, 1e-9)
		require.NotNil(t, r.Difference)
		assert.InDelta(t, 3.0, *r.Difference, 1e-9)

		// Both group variances are 2, so t = 3 / sqrt(2) with 2 degrees
		// of freedom.
		require.NotNil(t, r.TStatistic)
		assert.InDelta(t, 3.0/math.Sqrt2, *r.TStatistic, 1e-9)
		require.NotNil(t, r.PValue)
		assert.InDelta(t, 0.16795, *r.PValue, 1e-4)
		require.NotNil(t, r.StatisticallySignificant)
		assert.False(t, *r.StatisticallySignificant)

		require.NotNil(t, r.CohensD)
		assert.InDelta(t, 3.0/math.Sqrt2, *r.CohensD, 1e-9)
		require.NotNil(t, r.EffectSizeCategory)
		assert.Equal(t, "Large", *r.EffectSizeCategory)
	})

	t.Run("small group leaves statistics unset", func(t *testing.T) {
		r := findResult(t, results, "105000005", ImpactEvaluation)

		assert.Equal(t, 1, r.PeriodsWithChange)
		assert.Equal(t, 3, r.PeriodsWithoutChange)

		require.NotNil(t, r.MeanWithChange)
		assert.InDelta(t, 1.0, *r.MeanWithChange, 1e-9)
		require.NotNil(t, r.Difference)

		assert.Nil(t, r.TStatistic)
		assert.Nil(t, r.PValue)
		assert.Nil(t, r.StatisticallySignificant)
		assert.Nil(t, r.CohensD)
		assert.Nil(t, r.EffectSizeCategory)
	})

	t.Run("pooled rows use the global pseudo-subject", func(t *testing.T) {
		r := findResult(t, results, GlobalSubjectCode, ImpactFaculty+" (Global)")

		assert.Equal(t, GlobalSubjectName, r.SubjectName)
		assert.Equal(t, 2, r.PeriodsWithChange)
		assert.Equal(t, 2, r.PeriodsWithoutChange)

		findResult(t, results, GlobalSubjectCode, ImpactEvaluation+" (Global)")
	})
}

func TestTestSignificance_Empty(t *testing.T) {
	assert.Nil(t, TestSignificance(nil))
	assert.Nil(t, TestSignificance([]CorrelationRow{}))
}

func TestTestSignificance_SignificantDifference(t *testing.T) {
	rows := []CorrelationRow{
		corrRow("105000005", 10.0, true, false),
		corrRow("105000005", 10.1, true, false),
		corrRow("105000005", 10.2, true, false),
		corrRow("105000005", 0.0, false, false),
		corrRow("105000005", 0.1, false, false),
		corrRow("105000005", 0.2, false, false),
	}

	results := TestSignificance(rows)
	r := findResult(t, results, "105000005", ImpactFaculty)

	require.NotNil(t, r.PValue)
	assert.Less(t, *r.PValue, 0.001)
	require.NotNil(t, r.StatisticallySignificant)
	assert.True(t, *r.StatisticallySignificant)
	require.NotNil(t, r.EffectSizeCategory)
	assert.Equal(t, "Large", *r.EffectSizeCategory)
}

func TestPooledTTest_ZeroSpread(t *testing.T) {
	tStat, pValue := pooledTTest([]float64{2, 2}, []float64{2, 2})

	assert.Zero(t, tStat)
	assert.InDelta(t, 1.0, pValue, 1e-9)
}

func TestCohensD_ZeroSpread(t *testing.T) {
	assert.Zero(t, cohensD([]float64{2, 2}, []float64{2, 2}))
}

func TestCategorizeEffectSize(t *testing.T) {
	cases := []struct {
		d    float64
		want string
	}{
		{0.0, "Negligible"},
		{0.19, "Negligible"},
		{0.2, "Small"},
		{-0.3, "Small"},
		{0.5, "Medium"},
		{-0.79, "Medium"},
		{0.8, "Large"},
		{-2.5, "Large"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, categorizeEffectSize(tc.d), "d=%v", tc.d)
	}
}
