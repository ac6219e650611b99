package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/godilite/academic-insights/internal/extractor"
)

// minTrendPoints is the smallest series length worth fitting a trend to.
const minTrendPoints = 3

// Trend direction labels.
const (
	TrendImproving = "Improving"
	TrendDeclining = "Declining"
	TrendStable    = "Stable"
)

// TrendResult holds every fitted trend measure for one subject's performance
// rate series: naive first-to-last change, least-squares fit, Mann-Kendall
// test and Theil-Sen estimate, plus the combined direction verdict.
type TrendResult struct {
	SubjectCode         string  `json:"subject_code"`
	SubjectName         string  `json:"subject_name"`
	NumYears            int     `json:"num_years"`
	FirstYear           string  `json:"first_year"`
	LastYear            string  `json:"last_year"`
	FirstValue          float64 `json:"first_value"`
	LastValue           float64 `json:"last_value"`
	TotalChange         float64 `json:"total_change"`
	AverageAnnualChange float64 `json:"average_annual_change"`

	LinearSlope      float64 `json:"linear_slope"`
	LinearIntercept  float64 `json:"linear_intercept"`
	RSquared         float64 `json:"r_squared"`
	RegressionPValue float64 `json:"regression_p_value"`
	SlopeSignificant bool    `json:"slope_significant"`

	MKTrend       string  `json:"mk_trend"`
	MKStatistic   float64 `json:"mk_statistic"`
	MKPValue      float64 `json:"mk_p_value"`
	MKSignificant bool    `json:"mk_significant"`

	TheilSenSlope     float64 `json:"ts_slope"`
	TheilSenIntercept float64 `json:"ts_intercept"`
	TheilSenLowSlope  float64 `json:"ts_low_slope"`
	TheilSenHighSlope float64 `json:"ts_high_slope"`

	TrendDirection string `json:"trend_direction"`
}

// AnalyzeTrends fits trends on each subject's performance rate series,
// regressing against the year index. Subjects with fewer than three observed
// years are skipped.
func AnalyzeTrends(series []extractor.HistoricalRate) []TrendResult {
	bySubject := make(map[string][]extractor.HistoricalRate)
	var codes []string

	for _, row := range series {
		if row.RateType != extractor.RatePerformance {
			continue
		}
		if _, seen := bySubject[row.SubjectCode]; !seen {
			codes = append(codes, row.SubjectCode)
		}
		bySubject[row.SubjectCode] = append(bySubject[row.SubjectCode], row)
	}
	sort.Strings(codes)

	var results []TrendResult

	for _, code := range codes {
		points := bySubject[code]
		if len(points) < minTrendPoints {
			continue
		}

		sort.Slice(points, func(i, j int) bool {
			return points[i].AcademicYear < points[j].AcademicYear
		})

		n := len(points)
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i, p := range points {
			xs[i] = float64(i)
			ys[i] = p.Value
		}

		result := TrendResult{
			SubjectCode:         code,
			SubjectName:         points[0].SubjectName,
			NumYears:            n,
			FirstYear:           points[0].AcademicYear,
			LastYear:            points[n-1].AcademicYear,
			FirstValue:          ys[0],
			LastValue:           ys[n-1],
			TotalChange:         ys[n-1] - ys[0],
			AverageAnnualChange: (ys[n-1] - ys[0]) / float64(n-1),
		}

		intercept, slope := stat.LinearRegression(xs, ys, nil, false)
		result.LinearSlope = slope
		result.LinearIntercept = intercept
		result.RSquared = stat.RSquared(xs, ys, nil, intercept, slope)
		result.RegressionPValue = slopePValue(xs, ys, intercept, slope)
		result.SlopeSignificant = result.RegressionPValue < SignificanceLevel

		result.MKTrend, result.MKStatistic, result.MKPValue = mannKendall(ys)
		result.MKSignificant = result.MKPValue < SignificanceLevel

		result.TheilSenSlope, result.TheilSenIntercept,
			result.TheilSenLowSlope, result.TheilSenHighSlope = theilSen(xs, ys)

		result.TrendDirection = trendDirection(result)

		results = append(results, result)
	}

	return results
}

// slopePValue is the two-sided p-value for the null hypothesis of zero slope
// in a simple least-squares regression. A perfect fit gives p=0.
func slopePValue(xs, ys []float64, intercept, slope float64) float64 {
	n := float64(len(xs))
	meanX := stat.Mean(xs, nil)

	var sse, sxx float64
	for i := range xs {
		residual := ys[i] - (intercept + slope*xs[i])
		sse += residual * residual
		dx := xs[i] - meanX
		sxx += dx * dx
	}

	se := math.Sqrt(sse / (n - 2) / sxx)
	if se == 0 {
		return 0
	}

	t := slope / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	return 2 * dist.CDF(-math.Abs(t))
}

// mannKendall is the non-parametric monotone trend test with the tie-corrected
// variance. It returns the trend label, the S statistic and the two-sided
// p-value from the normal approximation.
func mannKendall(values []float64) (trend string, s, pValue float64) {
	n := len(values)

	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case values[j] > values[i]:
				s++
			case values[j] < values[i]:
				s--
			}
		}
	}

	counts := make(map[float64]float64)
	for _, v := range values {
		counts[v]++
	}
	nf := float64(n)
	variance := nf * (nf - 1) * (2*nf + 5)
	for _, tp := range counts {
		variance -= tp * (tp - 1) * (2*tp + 5)
	}
	variance /= 18

	var z float64
	switch {
	case variance == 0:
		z = 0
	case s > 0:
		z = (s - 1) / math.Sqrt(variance)
	case s < 0:
		z = (s + 1) / math.Sqrt(variance)
	}

	pValue = 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))

	switch {
	case pValue < SignificanceLevel && z > 0:
		trend = "increasing"
	case pValue < SignificanceLevel && z < 0:
		trend = "decreasing"
	default:
		trend = "no trend"
	}

	return trend, s, pValue
}

// theilSen is the median-of-pairwise-slopes estimator with a 95% confidence
// band on the slope taken from the rank order of the pairwise slopes.
func theilSen(xs, ys []float64) (slope, intercept, lowSlope, highSlope float64) {
	var slopes []float64
	for i := 0; i < len(xs)-1; i++ {
		for j := i + 1; j < len(xs); j++ {
			if xs[j] != xs[i] {
				slopes = append(slopes, (ys[j]-ys[i])/(xs[j]-xs[i]))
			}
		}
	}
	sort.Float64s(slopes)

	slope = median(slopes)
	intercept = medianOf(ys) - slope*medianOf(xs)

	counts := make(map[float64]float64)
	for _, v := range ys {
		counts[v]++
	}
	nf := float64(len(ys))
	variance := nf * (nf - 1) * (2*nf + 5)
	for _, tp := range counts {
		variance -= tp * (tp - 1) * (2*tp + 5)
	}
	variance /= 18
	sigma := math.Sqrt(variance)

	total := float64(len(slopes))
	lower := int((total - 1.96*sigma) / 2)
	upper := int((total+1.96*sigma)/2) + 1

	if lower < 0 {
		lower = 0
	}
	if upper > len(slopes)-1 {
		upper = len(slopes) - 1
	}

	lowSlope = slopes[lower]
	highSlope = slopes[upper]
	return slope, intercept, lowSlope, highSlope
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return median(sorted)
}

// trendDirection combines the fitted measures: a significant Mann-Kendall
// result wins, then a significant regression slope, then a simple threshold
// on the average annual change.
func trendDirection(r TrendResult) string {
	if r.MKSignificant {
		switch r.MKTrend {
		case "increasing":
			return TrendImproving
		case "decreasing":
			return TrendDeclining
		default:
			return TrendStable
		}
	}

	if r.SlopeSignificant {
		if r.LinearSlope > 0 {
			return TrendImproving
		}
		if r.LinearSlope < 0 {
			return TrendDeclining
		}
	}

	if r.AverageAnnualChange > 1 {
		return TrendImproving
	}
	if r.AverageAnnualChange < -1 {
		return TrendDeclining
	}

	return TrendStable
}
