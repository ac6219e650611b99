package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/godilite/academic-insights/internal/analysis"
	"github.com/godilite/academic-insights/internal/repository/models"
)

// StoreChangeAnalyses persists the per-pair faculty and evaluation diffs for
// every analyzed subject.
func (r *AcademicRepository) StoreChangeAnalyses(ctx context.Context, analyses map[string]analysis.ChangeAnalysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin StoreChangeAnalyses tx: %w", err)
	}
	defer tx.Rollback()

	codes := make([]string, 0, len(analyses))
	for code := range analyses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		a := analyses[code]

		for _, fc := range a.Faculty {
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO faculty_changes (subject_code, year1, year2, faculty_added, faculty_removed, percent_changed)
				VALUES (?, ?, ?, ?, ?, ?)`,
				code, fc.Year1, fc.Year2, fc.TotalAdded, fc.TotalRemoved, fc.PercentChanged)
			if err != nil {
				return fmt.Errorf("insert faculty_changes %s: %w", code, err)
			}
		}

		for _, ec := range a.Evaluation {
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO evaluation_changes (subject_code, year1, year2, methods_added, methods_removed)
				VALUES (?, ?, ?, ?, ?)`,
				code, ec.Year1, ec.Year2, len(ec.Added), len(ec.Removed))
			if err != nil {
				return fmt.Errorf("insert evaluation_changes %s: %w", code, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit StoreChangeAnalyses tx: %w", err)
	}
	return nil
}

// GetFacultyChanges lists stored faculty diffs, optionally for one subject.
func (r *AcademicRepository) GetFacultyChanges(ctx context.Context, subjectCode string) ([]models.FacultyChange, error) {
	query := `
		SELECT f.subject_code,
		       (SELECT subject_name FROM subjects s WHERE s.subject_code = f.subject_code LIMIT 1),
		       f.year1, f.year2, f.faculty_added, f.faculty_removed, f.percent_changed
		FROM faculty_changes f`
	var args []any
	if subjectCode != "" {
		query += " WHERE f.subject_code = ?"
		args = append(args, subjectCode)
	}
	query += " ORDER BY f.subject_code, f.year1"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetFacultyChanges: %w", err)
	}
	defer rows.Close()

	var results []models.FacultyChange
	for rows.Next() {
		var fc models.FacultyChange
		var name sql.NullString
		if err := rows.Scan(&fc.SubjectCode, &name, &fc.Year1, &fc.Year2,
			&fc.FacultyAdded, &fc.FacultyRemoved, &fc.PercentChanged); err != nil {
			return nil, fmt.Errorf("scan GetFacultyChanges row: %w", err)
		}
		if name.Valid {
			fc.SubjectName = &name.String
		}
		results = append(results, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetFacultyChanges: %w", err)
	}
	return results, nil
}

// GetEvaluationChanges lists stored evaluation diffs, optionally for one subject.
func (r *AcademicRepository) GetEvaluationChanges(ctx context.Context, subjectCode string) ([]models.EvaluationChange, error) {
	query := `
		SELECT e.subject_code,
		       (SELECT subject_name FROM subjects s WHERE s.subject_code = e.subject_code LIMIT 1),
		       e.year1, e.year2, e.methods_added, e.methods_removed
		FROM evaluation_changes e`
	var args []any
	if subjectCode != "" {
		query += " WHERE e.subject_code = ?"
		args = append(args, subjectCode)
	}
	query += " ORDER BY e.subject_code, e.year1"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetEvaluationChanges: %w", err)
	}
	defer rows.Close()

	var results []models.EvaluationChange
	for rows.Next() {
		var ec models.EvaluationChange
		var name sql.NullString
		if err := rows.Scan(&ec.SubjectCode, &name, &ec.Year1, &ec.Year2,
			&ec.MethodsAdded, &ec.MethodsRemoved); err != nil {
			return nil, fmt.Errorf("scan GetEvaluationChanges row: %w", err)
		}
		if name.Valid {
			ec.SubjectName = &name.String
		}
		results = append(results, ec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetEvaluationChanges: %w", err)
	}
	return results, nil
}

// StoreCorrelations persists the joined change/performance rows.
func (r *AcademicRepository) StoreCorrelations(ctx context.Context, rows []analysis.CorrelationRow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin StoreCorrelations tx: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO performance_correlations
			(subject_code, subject_name, year1, year2, performance_change,
			 faculty_changed, faculty_percent_changed, faculty_added, faculty_removed,
			 evaluation_changed, evaluation_methods_added, evaluation_methods_removed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.SubjectCode, row.SubjectName, row.Year1, row.Year2, row.PerformanceChange,
			row.FacultyChanged, row.FacultyPercentChanged, row.FacultyAdded, row.FacultyRemoved,
			row.EvaluationChanged, row.EvaluationMethodsAdded, row.EvaluationMethodsRemoved)
		if err != nil {
			return fmt.Errorf("insert performance_correlations %s: %w", row.SubjectCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit StoreCorrelations tx: %w", err)
	}
	return nil
}

// GetCorrelations lists stored correlation rows, optionally for one subject.
func (r *AcademicRepository) GetCorrelations(ctx context.Context, subjectCode string) ([]analysis.CorrelationRow, error) {
	query := `
		SELECT subject_code, subject_name, year1, year2, performance_change,
		       faculty_changed, faculty_percent_changed, faculty_added, faculty_removed,
		       evaluation_changed, evaluation_methods_added, evaluation_methods_removed
		FROM performance_correlations`
	var args []any
	if subjectCode != "" {
		query += " WHERE subject_code = ?"
		args = append(args, subjectCode)
	}
	query += " ORDER BY subject_code, year1"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetCorrelations: %w", err)
	}
	defer rows.Close()

	var results []analysis.CorrelationRow
	for rows.Next() {
		var c analysis.CorrelationRow
		if err := rows.Scan(&c.SubjectCode, &c.SubjectName, &c.Year1, &c.Year2, &c.PerformanceChange,
			&c.FacultyChanged, &c.FacultyPercentChanged, &c.FacultyAdded, &c.FacultyRemoved,
			&c.EvaluationChanged, &c.EvaluationMethodsAdded, &c.EvaluationMethodsRemoved); err != nil {
			return nil, fmt.Errorf("scan GetCorrelations row: %w", err)
		}
		results = append(results, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetCorrelations: %w", err)
	}
	return results, nil
}

// StoreSignificanceResults persists t-test results, replacing any previous
// run for the same (subject, impact type).
func (r *AcademicRepository) StoreSignificanceResults(ctx context.Context, results []analysis.SignificanceResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin StoreSignificanceResults tx: %w", err)
	}
	defer tx.Rollback()

	for _, res := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO significance_results
			(subject_code, subject_name, impact_type, periods_with_change, periods_without_change,
			 mean_with_change, mean_without_change, difference, t_statistic, p_value,
			 statistically_significant, cohens_d, effect_size_category)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.SubjectCode, res.SubjectName, res.ImpactType,
			res.PeriodsWithChange, res.PeriodsWithoutChange,
			res.MeanWithChange, res.MeanWithoutChange, res.Difference,
			res.TStatistic, res.PValue, res.StatisticallySignificant,
			res.CohensD, res.EffectSizeCategory)
		if err != nil {
			return fmt.Errorf("insert significance_results %s: %w", res.SubjectCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit StoreSignificanceResults tx: %w", err)
	}
	return nil
}

// GetSignificanceResults lists stored t-test results, optionally for one subject.
func (r *AcademicRepository) GetSignificanceResults(ctx context.Context, subjectCode string) ([]analysis.SignificanceResult, error) {
	query := `
		SELECT subject_code, subject_name, impact_type, periods_with_change, periods_without_change,
		       mean_with_change, mean_without_change, difference, t_statistic, p_value,
		       statistically_significant, cohens_d, effect_size_category
		FROM significance_results`
	var args []any
	if subjectCode != "" {
		query += " WHERE subject_code = ?"
		args = append(args, subjectCode)
	}
	query += " ORDER BY subject_code, impact_type"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetSignificanceResults: %w", err)
	}
	defer rows.Close()

	var results []analysis.SignificanceResult
	for rows.Next() {
		var res analysis.SignificanceResult
		var meanWith, meanWithout, difference, tStat, pValue, cohensD sql.NullFloat64
		var significant sql.NullBool
		var category sql.NullString

		if err := rows.Scan(&res.SubjectCode, &res.SubjectName, &res.ImpactType,
			&res.PeriodsWithChange, &res.PeriodsWithoutChange,
			&meanWith, &meanWithout, &difference, &tStat, &pValue,
			&significant, &cohensD, &category); err != nil {
			return nil, fmt.Errorf("scan GetSignificanceResults row: %w", err)
		}

		if meanWith.Valid {
			res.MeanWithChange = &meanWith.Float64
		}
		if meanWithout.Valid {
			res.MeanWithoutChange = &meanWithout.Float64
		}
		if difference.Valid {
			res.Difference = &difference.Float64
		}
		if tStat.Valid {
			res.TStatistic = &tStat.Float64
		}
		if pValue.Valid {
			res.PValue = &pValue.Float64
		}
		if significant.Valid {
			res.StatisticallySignificant = &significant.Bool
		}
		if cohensD.Valid {
			res.CohensD = &cohensD.Float64
		}
		if category.Valid {
			res.EffectSizeCategory = &category.String
		}

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetSignificanceResults: %w", err)
	}
	return results, nil
}

// StoreTrendResults persists fitted trend measures, one row per subject.
func (r *AcademicRepository) StoreTrendResults(ctx context.Context, results []analysis.TrendResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin StoreTrendResults tx: %w", err)
	}
	defer tx.Rollback()

	for _, res := range results {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO trend_results
			(subject_code, subject_name, num_years, first_year, last_year,
			 first_value, last_value, total_change, average_annual_change,
			 linear_slope, linear_intercept, r_squared, regression_p_value, slope_significant,
			 mk_trend, mk_statistic, mk_p_value, mk_significant,
			 ts_slope, ts_intercept, ts_low_slope, ts_high_slope, trend_direction)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.SubjectCode, res.SubjectName, res.NumYears, res.FirstYear, res.LastYear,
			res.FirstValue, res.LastValue, res.TotalChange, res.AverageAnnualChange,
			res.LinearSlope, res.LinearIntercept, res.RSquared, res.RegressionPValue, res.SlopeSignificant,
			res.MKTrend, res.MKStatistic, res.MKPValue, res.MKSignificant,
			res.TheilSenSlope, res.TheilSenIntercept, res.TheilSenLowSlope, res.TheilSenHighSlope,
			res.TrendDirection)
		if err != nil {
			return fmt.Errorf("insert trend_results %s: %w", res.SubjectCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit StoreTrendResults tx: %w", err)
	}
	return nil
}

// GetTrendResults lists stored trend fits, optionally for one subject.
func (r *AcademicRepository) GetTrendResults(ctx context.Context, subjectCode string) ([]analysis.TrendResult, error) {
	query := `
		SELECT subject_code, subject_name, num_years, first_year, last_year,
		       first_value, last_value, total_change, average_annual_change,
		       linear_slope, linear_intercept, r_squared, regression_p_value, slope_significant,
		       mk_trend, mk_statistic, mk_p_value, mk_significant,
		       ts_slope, ts_intercept, ts_low_slope, ts_high_slope, trend_direction
		FROM trend_results`
	var args []any
	if subjectCode != "" {
		query += " WHERE subject_code = ?"
		args = append(args, subjectCode)
	}
	query += " ORDER BY subject_code"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetTrendResults: %w", err)
	}
	defer rows.Close()

	var results []analysis.TrendResult
	for rows.Next() {
		var res analysis.TrendResult
		if err := rows.Scan(&res.SubjectCode, &res.SubjectName, &res.NumYears, &res.FirstYear, &res.LastYear,
			&res.FirstValue, &res.LastValue, &res.TotalChange, &res.AverageAnnualChange,
			&res.LinearSlope, &res.LinearIntercept, &res.RSquared, &res.RegressionPValue, &res.SlopeSignificant,
			&res.MKTrend, &res.MKStatistic, &res.MKPValue, &res.MKSignificant,
			&res.TheilSenSlope, &res.TheilSenIntercept, &res.TheilSenLowSlope, &res.TheilSenHighSlope,
			&res.TrendDirection); err != nil {
			return nil, fmt.Errorf("scan GetTrendResults row: %w", err)
		}
		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetTrendResults: %w", err)
	}
	return results, nil
}
