package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/godilite/academic-insights/internal/extractor"
)

// CorrelationRow pairs the performance rate change over one consecutive year
// pair with whatever change data exists for that pair. Missing change data is
// recorded as no change.
type CorrelationRow struct {
	SubjectCode              string  `json:"subject_code"`
	SubjectName              string  `json:"subject_name"`
	Year1                    string  `json:"year1"`
	Year2                    string  `json:"year2"`
	PerformanceChange        float64 `json:"performance_change"`
	FacultyChanged           bool    `json:"faculty_changed"`
	FacultyAdded             int     `json:"faculty_added"`
	FacultyRemoved           int     `json:"faculty_removed"`
	FacultyPercentChanged    float64 `json:"faculty_percent_changed"`
	EvaluationChanged        bool    `json:"evaluation_changed"`
	EvaluationMethodsAdded   int     `json:"evaluation_methods_added"`
	EvaluationMethodsRemoved int     `json:"evaluation_methods_removed"`
}

// Correlate joins the performance rate series against per-subject change
// analyses. For every subject it walks consecutive year pairs of the
// performance series, so a subject with n observed years contributes n-1 rows.
func Correlate(series []extractor.HistoricalRate, changes map[string]ChangeAnalysis) []CorrelationRow {
	bySubject := make(map[string][]extractor.HistoricalRate)
	var order []string

	for _, row := range series {
		if row.RateType != extractor.RatePerformance {
			continue
		}
		if _, seen := bySubject[row.SubjectCode]; !seen {
			order = append(order, row.SubjectCode)
		}
		bySubject[row.SubjectCode] = append(bySubject[row.SubjectCode], row)
	}
	sort.Strings(order)

	var rows []CorrelationRow

	for _, code := range order {
		points := bySubject[code]
		sort.Slice(points, func(i, j int) bool {
			return points[i].AcademicYear < points[j].AcademicYear
		})

		analysis := changes[code]

		for i := 0; i < len(points)-1; i++ {
			p1, p2 := points[i], points[i+1]

			row := CorrelationRow{
				SubjectCode:       code,
				SubjectName:       p1.SubjectName,
				Year1:             p1.AcademicYear,
				Year2:             p2.AcademicYear,
				PerformanceChange: p2.Value - p1.Value,
			}

			if fc, ok := analysis.FacultyChangeFor(p1.AcademicYear, p2.AcademicYear); ok {
				row.FacultyChanged = fc.TotalAdded > 0 || fc.TotalRemoved > 0
				row.FacultyAdded = fc.TotalAdded
				row.FacultyRemoved = fc.TotalRemoved
				row.FacultyPercentChanged = fc.PercentChanged
			}

			if ec, ok := analysis.EvaluationChangeFor(p1.AcademicYear, p2.AcademicYear); ok {
				row.EvaluationChanged = ec.Changed
				row.EvaluationMethodsAdded = len(ec.Added)
				row.EvaluationMethodsRemoved = len(ec.Removed)
			}

			rows = append(rows, row)
		}
	}

	return rows
}

// SubjectCorrelationSummary aggregates a subject's correlation rows into
// conditional averages. A nil average means no periods fell in that group.
type SubjectCorrelationSummary struct {
	SubjectCode              string   `json:"subject_code"`
	SubjectName              string   `json:"subject_name"`
	Periods                  int      `json:"periods"`
	AvgPerformanceChange     float64  `json:"avg_performance_change"`
	WithFacultyChanges       *float64 `json:"performance_change_with_faculty_changes"`
	WithoutFacultyChanges    *float64 `json:"performance_change_without_faculty_changes"`
	WithEvaluationChanges    *float64 `json:"performance_change_with_evaluation_changes"`
	WithoutEvaluationChanges *float64 `json:"performance_change_without_evaluation_changes"`
}

// CorrelationSummary is the global view over every correlation row.
type CorrelationSummary struct {
	NumSubjects              int                         `json:"num_subjects"`
	TotalPeriods             int                         `json:"total_periods_analyzed"`
	AvgPerformanceChange     float64                     `json:"avg_performance_change_overall"`
	WithFacultyChanges       *float64                    `json:"avg_performance_change_with_faculty_changes"`
	WithoutFacultyChanges    *float64                    `json:"avg_performance_change_without_faculty_changes"`
	WithEvaluationChanges    *float64                    `json:"avg_performance_change_with_evaluation_changes"`
	WithoutEvaluationChanges *float64                    `json:"avg_performance_change_without_evaluation_changes"`
	Subjects                 []SubjectCorrelationSummary `json:"subjects"`
}

// SummarizeCorrelations computes per-subject and global conditional averages
// of the performance change, split by whether each change dimension fired.
func SummarizeCorrelations(rows []CorrelationRow) CorrelationSummary {
	summary := CorrelationSummary{}
	if len(rows) == 0 {
		return summary
	}

	bySubject := make(map[string][]CorrelationRow)
	var codes []string
	for _, row := range rows {
		if _, seen := bySubject[row.SubjectCode]; !seen {
			codes = append(codes, row.SubjectCode)
		}
		bySubject[row.SubjectCode] = append(bySubject[row.SubjectCode], row)
	}
	sort.Strings(codes)

	for _, code := range codes {
		subjectRows := bySubject[code]
		summary.Subjects = append(summary.Subjects, SubjectCorrelationSummary{
			SubjectCode:              code,
			SubjectName:              subjectRows[0].SubjectName,
			Periods:                  len(subjectRows),
			AvgPerformanceChange:     stat.Mean(performanceChanges(subjectRows), nil),
			WithFacultyChanges:       conditionalMean(subjectRows, func(r CorrelationRow) bool { return r.FacultyChanged }),
			WithoutFacultyChanges:    conditionalMean(subjectRows, func(r CorrelationRow) bool { return !r.FacultyChanged }),
			WithEvaluationChanges:    conditionalMean(subjectRows, func(r CorrelationRow) bool { return r.EvaluationChanged }),
			WithoutEvaluationChanges: conditionalMean(subjectRows, func(r CorrelationRow) bool { return !r.EvaluationChanged }),
		})
	}

	summary.NumSubjects = len(codes)
	summary.TotalPeriods = len(rows)
	summary.AvgPerformanceChange = stat.Mean(performanceChanges(rows), nil)
	summary.WithFacultyChanges = conditionalMean(rows, func(r CorrelationRow) bool { return r.FacultyChanged })
	summary.WithoutFacultyChanges = conditionalMean(rows, func(r CorrelationRow) bool { return !r.FacultyChanged })
	summary.WithEvaluationChanges = conditionalMean(rows, func(r CorrelationRow) bool { return r.EvaluationChanged })
	summary.WithoutEvaluationChanges = conditionalMean(rows, func(r CorrelationRow) bool { return !r.EvaluationChanged })

	return summary
}

func performanceChanges(rows []CorrelationRow) []float64 {
	values := make([]float64, len(rows))
	for i, row := range rows {
		values[i] = row.PerformanceChange
	}
	return values
}

func conditionalMean(rows []CorrelationRow, match func(CorrelationRow) bool) *float64 {
	var values []float64
	for _, row := range rows {
		if match(row) {
			values = append(values, row.PerformanceChange)
		}
	}
	if len(values) == 0 {
		return nil
	}
	mean := stat.Mean(values, nil)
	return &mean
}
