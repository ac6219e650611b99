package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// SignificanceLevel is the two-sided p-value threshold below which a result
// is reported as statistically significant.
const SignificanceLevel = 0.05

// Cohen's d magnitude boundaries.
const (
	effectSmall  = 0.2
	effectMedium = 0.5
	effectLarge  = 0.8
)

// Synthetic subject identity used for the pooled-across-subjects tests.
const (
	GlobalSubjectCode = "ALL"
	GlobalSubjectName = "All Subjects"
)

// Impact type labels.
const (
	ImpactFaculty    = "Faculty Change Impact"
	ImpactEvaluation = "Evaluation Change Impact"
)

// SignificanceResult compares performance changes in periods with and without
// a given kind of change. Statistical fields are nil when a group is too small
// for the corresponding computation.
type SignificanceResult struct {
	SubjectCode              string   `json:"subject_code"`
	SubjectName              string   `json:"subject_name"`
	ImpactType               string   `json:"impact_type"`
	PeriodsWithChange        int      `json:"periods_with_change"`
	PeriodsWithoutChange     int      `json:"periods_without_change"`
	MeanWithChange           *float64 `json:"mean_with_change"`
	MeanWithoutChange        *float64 `json:"mean_without_change"`
	Difference               *float64 `json:"difference"`
	TStatistic               *float64 `json:"t_statistic"`
	PValue                   *float64 `json:"p_value"`
	StatisticallySignificant *bool    `json:"statistically_significant"`
	CohensD                  *float64 `json:"cohens_d"`
	EffectSizeCategory       *string  `json:"effect_size_category"`
}

// TestSignificance runs both impact tests for every subject in the rows, then
// once more over the pooled rows under the ALL pseudo-subject. The pooled
// results carry a "(Global)" suffix on the impact type.
func TestSignificance(rows []CorrelationRow) []SignificanceResult {
	if len(rows) == 0 {
		return nil
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

	var results []SignificanceResult

	for _, code := range codes {
		subjectRows := bySubject[code]
		name := subjectRows[0].SubjectName

		results = append(results,
			testChangeImpact(subjectRows, code, name, ImpactFaculty,
				func(r CorrelationRow) bool { return r.FacultyChanged }),
			testChangeImpact(subjectRows, code, name, ImpactEvaluation,
				func(r CorrelationRow) bool { return r.EvaluationChanged }),
		)
	}

	results = append(results,
		testChangeImpact(rows, GlobalSubjectCode, GlobalSubjectName, ImpactFaculty+" (Global)",
			func(r CorrelationRow) bool { return r.FacultyChanged }),
		testChangeImpact(rows, GlobalSubjectCode, GlobalSubjectName, ImpactEvaluation+" (Global)",
			func(r CorrelationRow) bool { return r.EvaluationChanged }),
	)

	return results
}

func testChangeImpact(rows []CorrelationRow, subjectCode, subjectName, impactType string, changed func(CorrelationRow) bool) SignificanceResult {
	var withChange, withoutChange []float64
	for _, row := range rows {
		if changed(row) {
			withChange = append(withChange, row.PerformanceChange)
		} else {
			withoutChange = append(withoutChange, row.PerformanceChange)
		}
	}

	result := SignificanceResult{
		SubjectCode:          subjectCode,
		SubjectName:          subjectName,
		ImpactType:           impactType,
		PeriodsWithChange:    len(withChange),
		PeriodsWithoutChange: len(withoutChange),
	}

	if len(withChange) > 0 {
		m := stat.Mean(withChange, nil)
		result.MeanWithChange = &m
	}
	if len(withoutChange) > 0 {
		m := stat.Mean(withoutChange, nil)
		result.MeanWithoutChange = &m
	}
	if result.MeanWithChange != nil && result.MeanWithoutChange != nil {
		diff := *result.MeanWithChange - *result.MeanWithoutChange
		result.Difference = &diff
	}

	// The t-test needs a sample variance on each side.
	if len(withChange) < 2 || len(withoutChange) < 2 {
		return result
	}

	tStat, pValue := pooledTTest(withChange, withoutChange)
	significant := pValue < SignificanceLevel

	d := cohensD(withChange, withoutChange)
	category := categorizeEffectSize(d)

	result.TStatistic = &tStat
	result.PValue = &pValue
	result.StatisticallySignificant = &significant
	result.CohensD = &d
	result.EffectSizeCategory = &category

	return result
}

// pooledTTest is the two-sided independent two-sample t-test assuming equal
// variances. Both samples must have at least two elements. A zero pooled
// spread means the groups are indistinguishable, reported as t=0, p=1.
func pooledTTest(a, b []float64) (tStat, pValue float64) {
	n1, n2 := float64(len(a)), float64(len(b))
	mean1, mean2 := stat.Mean(a, nil), stat.Mean(b, nil)
	var1, var2 := stat.Variance(a, nil), stat.Variance(b, nil)

	df := n1 + n2 - 2
	pooledVar := ((n1-1)*var1 + (n2-1)*var2) / df
	se := math.Sqrt(pooledVar * (1/n1 + 1/n2))

	if se == 0 {
		return 0, 1
	}

	tStat = (mean1 - mean2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = 2 * dist.CDF(-math.Abs(tStat))
	return tStat, pValue
}

// cohensD is the standardized mean difference using the pooled sample
// standard deviation. Zero spread yields d=0.
func cohensD(a, b []float64) float64 {
	n1, n2 := float64(len(a)), float64(len(b))
	var1, var2 := stat.Variance(a, nil), stat.Variance(b, nil)

	pooledStd := math.Sqrt(((n1-1)*var1 + (n2-1)*var2) / (n1 + n2 - 2))
	if pooledStd == 0 {
		return 0
	}
	return (stat.Mean(a, nil) - stat.Mean(b, nil)) / pooledStd
}

func categorizeEffectSize(d float64) string {
	switch abs := math.Abs(d); {
	case abs >= effectLarge:
		return "Large"
	case abs >= effectMedium:
		return "Medium"
	case abs >= effectSmall:
		return "Small"
	default:
		return "Negligible"
	}
}
