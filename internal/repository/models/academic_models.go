package models

// Subject is the joined read model over the subject roster, its enrollment
// profile and its current-year rates. Pointer fields come from LEFT JOINs and
// are nil when the corresponding section was never extracted.
type Subject struct {
	SubjectCode       string   `json:"subject_code"`
	SubjectName       string   `json:"subject_name"`
	Credits           int      `json:"credits"`
	AcademicYear      string   `json:"academic_year"`
	Semester          string   `json:"semester"`
	TotalEnrolled     *int64   `json:"total_enrolled"`
	FirstTime         *int64   `json:"first_time"`
	PartialDedication *int64   `json:"partial_dedication"`
	PerformanceRate   *float64 `json:"performance_rate"`
	SuccessRate       *float64 `json:"success_rate"`
	AbsenteeismRate   *float64 `json:"absenteeism_rate"`
}

type HistoricalRate struct {
	SubjectCode  string  `json:"subject_code"`
	AcademicYear string  `json:"academic_year"`
	RateType     string  `json:"rate_type"`
	Value        float64 `json:"value"`
}

type FacultyChange struct {
	SubjectCode    string  `json:"subject_code"`
	SubjectName    *string `json:"subject_name"`
	Year1          string  `json:"year1"`
	Year2          string  `json:"year2"`
	FacultyAdded   int     `json:"faculty_added"`
	FacultyRemoved int     `json:"faculty_removed"`
	PercentChanged float64 `json:"percent_changed"`
}

type EvaluationChange struct {
	SubjectCode    string  `json:"subject_code"`
	SubjectName    *string `json:"subject_name"`
	Year1          string  `json:"year1"`
	Year2          string  `json:"year2"`
	MethodsAdded   int     `json:"methods_added"`
	MethodsRemoved int     `json:"methods_removed"`
}

type StatsSummary struct {
	TotalSubjects        int      `json:"total_subjects"`
	TotalAcademicYears   int      `json:"total_academic_years"`
	AcademicYears        []string `json:"academic_years"`
	TotalHistoricalRates int      `json:"total_historical_rates"`
	HasAPIAnalysis       bool     `json:"has_api_analysis"`
}
