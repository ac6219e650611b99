// Package repository persists extracted reports and analysis results in
// SQLite and serves the read models consumed by the HTTP API.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/godilite/academic-insights/internal/extractor"
	"github.com/godilite/academic-insights/internal/repository/models"
)

type AcademicRepository struct {
	db *sql.DB
}

func NewAcademicRepository(db *sql.DB) *AcademicRepository {
	return &AcademicRepository{db: db}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS course_info (
		academic_year TEXT,
		semester TEXT,
		plan_code TEXT,
		plan_title TEXT,
		report_date TEXT,
		PRIMARY KEY (academic_year, semester)
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		subject_code TEXT,
		subject_name TEXT,
		credits INTEGER,
		academic_year TEXT,
		semester TEXT,
		PRIMARY KEY (subject_code, academic_year, semester),
		FOREIGN KEY (academic_year, semester) REFERENCES course_info (academic_year, semester)
	)`,
	`CREATE TABLE IF NOT EXISTS enrollment (
		subject_code TEXT,
		academic_year TEXT,
		semester TEXT,
		total_enrolled INTEGER,
		first_time INTEGER,
		partial_dedication INTEGER,
		PRIMARY KEY (subject_code, academic_year, semester),
		FOREIGN KEY (subject_code, academic_year, semester) REFERENCES subjects (subject_code, academic_year, semester)
	)`,
	`CREATE TABLE IF NOT EXISTS performance_rates (
		subject_code TEXT,
		academic_year TEXT,
		semester TEXT,
		performance_rate REAL,
		success_rate REAL,
		absenteeism_rate REAL,
		PRIMARY KEY (subject_code, academic_year, semester),
		FOREIGN KEY (subject_code, academic_year, semester) REFERENCES subjects (subject_code, academic_year, semester)
	)`,
	`CREATE TABLE IF NOT EXISTS historical_rates (
		subject_code TEXT,
		academic_year TEXT,
		rate_type TEXT,
		value REAL,
		PRIMARY KEY (subject_code, academic_year, rate_type)
	)`,
	`CREATE TABLE IF NOT EXISTS faculty_changes (
		subject_code TEXT,
		year1 TEXT,
		year2 TEXT,
		faculty_added INTEGER,
		faculty_removed INTEGER,
		percent_changed REAL,
		PRIMARY KEY (subject_code, year1, year2)
	)`,
	`CREATE TABLE IF NOT EXISTS evaluation_changes (
		subject_code TEXT,
		year1 TEXT,
		year2 TEXT,
		methods_added INTEGER,
		methods_removed INTEGER,
		PRIMARY KEY (subject_code, year1, year2)
	)`,
	`CREATE TABLE IF NOT EXISTS performance_correlations (
		subject_code TEXT,
		subject_name TEXT,
		year1 TEXT,
		year2 TEXT,
		performance_change REAL,
		faculty_changed BOOLEAN,
		faculty_percent_changed REAL,
		faculty_added INTEGER,
		faculty_removed INTEGER,
		evaluation_changed BOOLEAN,
		evaluation_methods_added INTEGER,
		evaluation_methods_removed INTEGER,
		PRIMARY KEY (subject_code, year1, year2)
	)`,
	`CREATE TABLE IF NOT EXISTS significance_results (
		subject_code TEXT,
		subject_name TEXT,
		impact_type TEXT,
		periods_with_change INTEGER,
		periods_without_change INTEGER,
		mean_with_change REAL,
		mean_without_change REAL,
		difference REAL,
		t_statistic REAL,
		p_value REAL,
		statistically_significant BOOLEAN,
		cohens_d REAL,
		effect_size_category TEXT,
		PRIMARY KEY (subject_code, impact_type)
	)`,
	`CREATE TABLE IF NOT EXISTS trend_results (
		subject_code TEXT PRIMARY KEY,
		subject_name TEXT,
		num_years INTEGER,
		first_year TEXT,
		last_year TEXT,
		first_value REAL,
		last_value REAL,
		total_change REAL,
		average_annual_change REAL,
		linear_slope REAL,
		linear_intercept REAL,
		r_squared REAL,
		regression_p_value REAL,
		slope_significant BOOLEAN,
		mk_trend TEXT,
		mk_statistic REAL,
		mk_p_value REAL,
		mk_significant BOOLEAN,
		ts_slope REAL,
		ts_intercept REAL,
		ts_low_slope REAL,
		ts_high_slope REAL,
		trend_direction TEXT
	)`,
}

// Setup creates the full schema. Safe to call on an already initialized
// database.
func (r *AcademicRepository) Setup(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// StoreReport writes one extracted report atomically: course header, subject
// roster, enrollment profile, current rates and historical rates. Re-storing
// the same report replaces the previous rows.
func (r *AcademicRepository) StoreReport(ctx context.Context, data *extractor.ReportData) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin StoreReport tx: %w", err)
	}
	defer tx.Rollback()

	info := data.CourseInfo
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO course_info (academic_year, semester, plan_code, plan_title, report_date)
		VALUES (?, ?, ?, ?, ?)`,
		info.AcademicYear, info.Semester, info.PlanCode, info.PlanTitle,
		time.Now().Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("insert course_info: %w", err)
	}

	for code, subject := range data.Subjects {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO subjects (subject_code, subject_name, credits, academic_year, semester)
			VALUES (?, ?, ?, ?, ?)`,
			code, subject.Name, subject.Credits, info.AcademicYear, info.Semester)
		if err != nil {
			return fmt.Errorf("insert subject %s: %w", code, err)
		}

		if subject.TotalEnrolled != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO enrollment (subject_code, academic_year, semester, total_enrolled, first_time, partial_dedication)
				VALUES (?, ?, ?, ?, ?, ?)`,
				code, info.AcademicYear, info.Semester,
				*subject.TotalEnrolled, intOrZero(subject.FirstTime), intOrZero(subject.PartialDedication))
			if err != nil {
				return fmt.Errorf("insert enrollment %s: %w", code, err)
			}
		}

		if subject.PerformanceRate != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO performance_rates (subject_code, academic_year, semester, performance_rate, success_rate, absenteeism_rate)
				VALUES (?, ?, ?, ?, ?, ?)`,
				code, info.AcademicYear, info.Semester,
				subject.PerformanceRate, subject.SuccessRate, subject.AbsenteeismRate)
			if err != nil {
				return fmt.Errorf("insert performance_rates %s: %w", code, err)
			}
		}

		for rateType, yearValues := range subject.Historical {
			for year, value := range yearValues {
				_, err = tx.ExecContext(ctx, `
					INSERT OR REPLACE INTO historical_rates (subject_code, academic_year, rate_type, value)
					VALUES (?, ?, ?, ?)`,
					code, year, rateType, value)
				if err != nil {
					return fmt.Errorf("insert historical_rates %s: %w", code, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit StoreReport tx: %w", err)
	}
	return nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

const subjectSelect = `
	SELECT s.subject_code, s.subject_name, s.credits, s.academic_year, s.semester,
	       e.total_enrolled, e.first_time, e.partial_dedication,
	       p.performance_rate, p.success_rate, p.absenteeism_rate
	FROM subjects s
	LEFT JOIN enrollment e ON s.subject_code = e.subject_code AND s.academic_year = e.academic_year AND s.semester = e.semester
	LEFT JOIN performance_rates p ON s.subject_code = p.subject_code AND s.academic_year = p.academic_year AND s.semester = p.semester
`

// GetSubjects lists subjects joined with enrollment and current rates,
// optionally filtered by academic year and semester.
func (r *AcademicRepository) GetSubjects(ctx context.Context, academicYear, semester string) ([]models.Subject, error) {
	query := subjectSelect
	var conditions []string
	var args []any

	if academicYear != "" {
		conditions = append(conditions, "s.academic_year = ?")
		args = append(args, academicYear)
	}
	if semester != "" {
		conditions = append(conditions, "s.semester = ?")
		args = append(args, semester)
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY s.subject_name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetSubjects: %w", err)
	}
	defer rows.Close()

	return scanSubjects(rows)
}

// GetSubject fetches one subject by code, optionally pinned to a year.
// Returns sql.ErrNoRows when the code is unknown.
func (r *AcademicRepository) GetSubject(ctx context.Context, subjectCode, academicYear string) (models.Subject, error) {
	query := subjectSelect + " WHERE s.subject_code = ?"
	args := []any{subjectCode}
	if academicYear != "" {
		query += " AND s.academic_year = ?"
		args = append(args, academicYear)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.Subject{}, fmt.Errorf("query GetSubject: %w", err)
	}
	defer rows.Close()

	subjects, err := scanSubjects(rows)
	if err != nil {
		return models.Subject{}, err
	}
	if len(subjects) == 0 {
		return models.Subject{}, sql.ErrNoRows
	}
	return subjects[0], nil
}

func scanSubjects(rows *sql.Rows) ([]models.Subject, error) {
	var results []models.Subject
	for rows.Next() {
		var s models.Subject
		var totalEnrolled, firstTime, partialDedication sql.NullInt64
		var performance, success, absenteeism sql.NullFloat64

		if err := rows.Scan(&s.SubjectCode, &s.SubjectName, &s.Credits, &s.AcademicYear, &s.Semester,
			&totalEnrolled, &firstTime, &partialDedication,
			&performance, &success, &absenteeism); err != nil {
			return nil, fmt.Errorf("scan subject row: %w", err)
		}

		if totalEnrolled.Valid {
			s.TotalEnrolled = &totalEnrolled.Int64
		}
		if firstTime.Valid {
			s.FirstTime = &firstTime.Int64
		}
		if partialDedication.Valid {
			s.PartialDedication = &partialDedication.Int64
		}
		if performance.Valid {
			s.PerformanceRate = &performance.Float64
		}
		if success.Valid {
			s.SuccessRate = &success.Float64
		}
		if absenteeism.Valid {
			s.AbsenteeismRate = &absenteeism.Float64
		}

		results = append(results, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subject rows: %w", err)
	}
	return results, nil
}

// GetHistoricalRates returns one subject's historical rows ordered by year,
// optionally restricted to a single rate type.
func (r *AcademicRepository) GetHistoricalRates(ctx context.Context, subjectCode, rateType string) ([]models.HistoricalRate, error) {
	query := `
		SELECT subject_code, academic_year, rate_type, value
		FROM historical_rates
		WHERE subject_code = ?`
	args := []any{subjectCode}

	if rateType != "" {
		query += " AND rate_type = ?"
		args = append(args, rateType)
	}
	query += " ORDER BY academic_year"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query GetHistoricalRates: %w", err)
	}
	defer rows.Close()

	var results []models.HistoricalRate
	for rows.Next() {
		var h models.HistoricalRate
		if err := rows.Scan(&h.SubjectCode, &h.AcademicYear, &h.RateType, &h.Value); err != nil {
			return nil, fmt.Errorf("scan GetHistoricalRates row: %w", err)
		}
		results = append(results, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetHistoricalRates: %w", err)
	}
	return results, nil
}

// GetAllHistoricalRates loads the entire historical relation with subject
// names resolved, in the long form the analysis layer consumes.
func (r *AcademicRepository) GetAllHistoricalRates(ctx context.Context) ([]extractor.HistoricalRate, error) {
	const query = `
		SELECT h.subject_code,
		       COALESCE((SELECT subject_name FROM subjects s WHERE s.subject_code = h.subject_code LIMIT 1), ''),
		       h.rate_type, h.academic_year, h.value
		FROM historical_rates h
		ORDER BY h.subject_code, h.rate_type, h.academic_year
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query GetAllHistoricalRates: %w", err)
	}
	defer rows.Close()

	var results []extractor.HistoricalRate
	for rows.Next() {
		var h extractor.HistoricalRate
		if err := rows.Scan(&h.SubjectCode, &h.SubjectName, &h.RateType, &h.AcademicYear, &h.Value); err != nil {
			return nil, fmt.Errorf("scan GetAllHistoricalRates row: %w", err)
		}
		results = append(results, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetAllHistoricalRates: %w", err)
	}
	return results, nil
}

// SearchSubjects matches subjects by name or code substring, capped at 20.
func (r *AcademicRepository) SearchSubjects(ctx context.Context, term string) ([]models.Subject, error) {
	const query = `
		SELECT s.subject_code, s.subject_name, s.credits, s.academic_year, s.semester
		FROM subjects s
		WHERE s.subject_name LIKE ? OR s.subject_code LIKE ?
		ORDER BY s.subject_name
		LIMIT 20
	`
	pattern := "%" + term + "%"

	rows, err := r.db.QueryContext(ctx, query, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("query SearchSubjects: %w", err)
	}
	defer rows.Close()

	var results []models.Subject
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.SubjectCode, &s.SubjectName, &s.Credits, &s.AcademicYear, &s.Semester); err != nil {
			return nil, fmt.Errorf("scan SearchSubjects row: %w", err)
		}
		results = append(results, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate SearchSubjects: %w", err)
	}
	return results, nil
}

// GetStats summarizes the database contents.
func (r *AcademicRepository) GetStats(ctx context.Context) (models.StatsSummary, error) {
	var stats models.StatsSummary

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&stats.TotalSubjects); err != nil {
		return stats, fmt.Errorf("query subject count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT academic_year) FROM subjects`).Scan(&stats.TotalAcademicYears); err != nil {
		return stats, fmt.Errorf("query academic year count: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM historical_rates`).Scan(&stats.TotalHistoricalRates); err != nil {
		return stats, fmt.Errorf("query historical rate count: %w", err)
	}

	var facultyRows int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faculty_changes`).Scan(&facultyRows); err != nil {
		return stats, fmt.Errorf("query faculty change count: %w", err)
	}
	stats.HasAPIAnalysis = facultyRows > 0

	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT academic_year FROM subjects ORDER BY academic_year`)
	if err != nil {
		return stats, fmt.Errorf("query academic years: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var year string
		if err := rows.Scan(&year); err != nil {
			return stats, fmt.Errorf("scan academic year: %w", err)
		}
		stats.AcademicYears = append(stats.AcademicYears, year)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate academic years: %w", err)
	}

	return stats, nil
}
