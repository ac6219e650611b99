package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godilite/academic-insights/internal/extractor"
)

func perfRate(code, name, year string, value float64) extractor.HistoricalRate {
	return extractor.HistoricalRate{
		SubjectCode:  code,
		SubjectName:  name,
		RateType:     extractor.RatePerformance,
		AcademicYear: year,
		Value:        value,
	}
}

func TestCorrelate(t *testing.T) {
	series := []extractor.HistoricalRate{
		perfRate("105000005", "Cálculo", "2019-20", 55.1),
		perfRate("105000005", "Cálculo", "2020-21", 60.3),
		perfRate("105000005", "Cálculo", "2021-22", 65.5),
		// Success rates must not produce correlation rows.
		{SubjectCode: "105000005", SubjectName: "Cálculo", RateType: extractor.RateSuccess, AcademicYear: "2019-20", Value: 70.0},
	}

	changes := map[string]ChangeAnalysis{
		"105000005": {
			SubjectCode: "105000005",
			SubjectName: "Cálculo",
			Faculty: []FacultyChange{
				{Year1: "2019-20", Year2: "2020-21", Added: []string{"Martín"}, TotalAdded: 1, PercentChanged: 50.0},
				{Year1: "2020-21", Year2: "2021-22"},
			},
			Evaluation: []EvaluationChange{
				{Year1: "2019-20", Year2: "2020-21"},
				{Year1: "2020-21", Year2: "2021-22", Added: []string{"trabajo"}, Changed: true},
			},
		},
	}

	rows := Correlate(series, changes)

	// Three observed years produce two consecutive pairs.
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "2019-20", first.Year1)
	assert.Equal(t, "2020-21", first.Year2)
	assert.InDelta(t, 5.2, first.PerformanceChange, 1e-9)
	assert.True(t, first.FacultyChanged)
	assert.Equal(t, 1, first.FacultyAdded)
	assert.InDelta(t, 50.0, first.FacultyPercentChanged, 1e-9)
	assert.False(t, first.EvaluationChanged)

	second := rows[1]
	assert.False(t, second.FacultyChanged)
	assert.True(t, second.EvaluationChanged)
	assert.Equal(t, 1, second.EvaluationMethodsAdded)
}

func TestCorrelate_MissingChangeData(t *testing.T) {
	series := []extractor.HistoricalRate{
		perfRate("105000005", "Cálculo", "2019-20", 55.1),
		perfRate("105000005", "Cálculo", "2020-21", 60.3),
	}

	rows := Correlate(series, nil)

	require.Len(t, rows, 1)
	assert.False(t, rows[0].FacultyChanged)
	assert.Zero(t, rows[0].FacultyAdded)
	assert.Zero(t, rows[0].FacultyPercentChanged)
	assert.False(t, rows[0].EvaluationChanged)
}

func TestCorrelate_SingleYear(t *testing.T) {
	series := []extractor.HistoricalRate{
		perfRate("105000005", "Cálculo", "2021-22", 65.5),
	}

	assert.Empty(t, Correlate(series, nil))
}

func TestSummarizeCorrelations(t *testing.T) {
	rows := []CorrelationRow{
		{SubjectCode: "105000005", SubjectName: "Cálculo", PerformanceChange: 4.0, FacultyChanged: true},
		{SubjectCode: "105000005", SubjectName: "Cálculo", PerformanceChange: 2.0},
		{SubjectCode: "105000007", SubjectName: "Probabilidades y Estadística I", PerformanceChange: -1.0, EvaluationChanged: true},
	}

	summary := SummarizeCorrelations(rows)

	assert.Equal(t, 2, summary.NumSubjects)
	assert.Equal(t, 3, summary.TotalPeriods)
	assert.InDelta(t, 5.0/3.0, summary.AvgPerformanceChange, 1e-9)

	require.NotNil(t, summary.WithFacultyChanges)
	assert.InDelta(t, 4.0, *summary.WithFacultyChanges, 1e-9)
	require.NotNil(t, summary.WithoutFacultyChanges)
	assert.InDelta(t, 0.5, *summary.WithoutFacultyChanges, 1e-9)

	require.Len(t, summary.Subjects, 2)

	calc := summary.Subjects[0]
	assert.Equal(t, "105000005", calc.SubjectCode)
	assert.Equal(t, 2, calc.Periods)
	assert.InDelta(t, 3.0, calc.AvgPerformanceChange, 1e-9)
	// No evaluation changes for this subject: the conditional group is empty.
	assert.Nil(t, calc.WithEvaluationChanges)
	require.NotNil(t, calc.WithoutEvaluationChanges)
	assert.InDelta(t, 3.0, *calc.WithoutEvaluationChanges, 1e-9)
}

func TestSummarizeCorrelations_Empty(t *testing.T) {
	summary := SummarizeCorrelations(nil)

	assert.Zero(t, summary.NumSubjects)
	assert.Zero(t, summary.TotalPeriods)
	assert.Nil(t, summary.WithFacultyChanges)
	assert.Empty(t, summary.Subjects)
}
