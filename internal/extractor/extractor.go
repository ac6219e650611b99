package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// CourseInfo identifies the report: one row per (academic year, semester).
type CourseInfo struct {
	AcademicYear string
	Semester     string
	PlanCode     string
	PlanTitle    string
}

// SubjectRecord is one subject as extracted from a single report. Optional
// fields are nil when the corresponding report section did not match.
type SubjectRecord struct {
	Code              string
	Name              string
	Credits           int
	Enrolled          int
	TotalEnrolled     *int
	FirstTime         *int
	PartialDedication *int
	PerformanceRate   *float64
	SuccessRate       *float64
	AbsenteeismRate   *float64

	// Historical maps rate type -> academic year ("YYYY-YY") -> value.
	Historical map[string]map[string]float64
}

// ReportData is the full result of extracting one report.
type ReportData struct {
	CourseInfo CourseInfo
	Subjects   map[string]*SubjectRecord
}

// Rate types as they appear in the report's historical sections.
const (
	RatePerformance = "rendimiento"
	RateSuccess     = "éxito"
	RateAbsenteeism = "absentismo"
)

var historicalRateTypes = []string{RatePerformance, RateSuccess, RateAbsenteeism}

var (
	academicYearRe = regexp.MustCompile(`(\d{4}/\d{2})\s*-\s*([^\n]+)\s*Semestre`)
	planRe         = regexp.MustCompile(`PLAN DE ESTUDIOS\s*\n([^\n]+)\s*-\s*([^\n]+)`)

	matriculatedSectionRe = regexp.MustCompile(`(?s)A1\.1\. Matriculados(.*?)A1\.2\.`)
	subjectRowRe          = regexp.MustCompile(`(\d{9})\s*-\s*([^\n\d]+?)\s+(\d+)\s+(\d+)`)

	profileSectionRe = regexp.MustCompile(`(?s)A1\.2\. Perfil de los alumnos matriculados(.*?)ANEXO 2`)

	currentRatesSectionRe = regexp.MustCompile(`(?s)A2\.1\. Tasas de resultados académicos obtenidas en el curso objeto del Informe(.*?)A2\.2\. Tasas de resultados académicos obtenidas en cursos anteriores`)
	currentRatesRowRe     = regexp.MustCompile(`(\d{9})\s*-\s*([^\n]+?)\s*(\d+\.\d+)\s*(\d+\.\d+)\s*(\d+\.\d+)`)

	historicalYearRe = regexp.MustCompile(`(\d{4}-\d{2})`)
)

// Extractor parses the text of one semester report. Every extraction step is
// best-effort: a section that does not match leaves its fields absent and the
// remaining steps still run.
type Extractor struct {
	text   string
	logger *zap.Logger
}

// New creates an Extractor over the given report text.
func New(text string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{text: text, logger: logger}
}

// Extract runs the full extraction: header, subject roster, enrollment
// profile, current rates and historical rates. Order matters: the enrichment
// steps key off subjects found by the roster step.
func (e *Extractor) Extract() *ReportData {
	data := &ReportData{
		CourseInfo: e.extractCourseInfo(),
		Subjects:   e.extractSubjects(),
	}

	e.enrichStudentProfile(data.Subjects)
	e.enrichCurrentRates(data.Subjects)
	e.enrichHistoricalRates(data.Subjects)

	return data
}

func (e *Extractor) extractCourseInfo() CourseInfo {
	var info CourseInfo

	if m := academicYearRe.FindStringSubmatch(e.text); m != nil {
		info.AcademicYear = m[1]
		info.Semester = strings.TrimSpace(m[2])
	} else {
		e.logger.Debug("academic year header not found in report")
	}

	if m := planRe.FindStringSubmatch(e.text); m != nil {
		info.PlanCode = strings.TrimSpace(m[1])
		info.PlanTitle = strings.TrimSpace(m[2])
	} else {
		e.logger.Debug("study plan header not found in report")
	}

	return info
}

func (e *Extractor) extractSubjects() map[string]*SubjectRecord {
	subjects := make(map[string]*SubjectRecord)

	section := matriculatedSectionRe.FindStringSubmatch(e.text)
	if section == nil {
		e.logger.Warn("matriculated section not found in report")
		return subjects
	}

	for _, m := range subjectRowRe.FindAllStringSubmatch(section[1], -1) {
		credits, err := strconv.Atoi(m[3])
		if err != nil {
			continue
		}
		enrolled, err := strconv.Atoi(m[4])
		if err != nil {
			continue
		}

		code := m[1]
		subjects[code] = &SubjectRecord{
			Code:     code,
			Name:     strings.TrimSpace(m[2]),
			Credits:  credits,
			Enrolled: enrolled,
		}
	}

	return subjects
}

func (e *Extractor) enrichStudentProfile(subjects map[string]*SubjectRecord) {
	section := profileSectionRe.FindStringSubmatch(e.text)
	if section == nil {
		return
	}

	for code, subject := range subjects {
		// The profile table repeats code and name; the name must match the
		// roster exactly or the row is skipped.
		pattern := fmt.Sprintf(`%s\s*-\s*%s\s*(\d+)\s*(\d+)\s*(\d+)`, code, regexp.QuoteMeta(subject.Name))
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}

		m := re.FindStringSubmatch(section[1])
		if m == nil {
			e.logger.Debug("subject not found in profile section", zap.String("code", code))
			continue
		}

		if v, err := strconv.Atoi(m[1]); err == nil {
			subject.TotalEnrolled = &v
		}
		if v, err := strconv.Atoi(m[2]); err == nil {
			subject.FirstTime = &v
		}
		if v, err := strconv.Atoi(m[3]); err == nil {
			subject.PartialDedication = &v
		}
	}
}

func (e *Extractor) enrichCurrentRates(subjects map[string]*SubjectRecord) {
	section := currentRatesSectionRe.FindStringSubmatch(e.text)
	if section == nil {
		return
	}

	for _, m := range currentRatesRowRe.FindAllStringSubmatch(section[1], -1) {
		subject, ok := subjects[m[1]]
		if !ok {
			continue
		}

		if v, err := strconv.ParseFloat(m[3], 64); err == nil {
			subject.PerformanceRate = &v
		}
		if v, err := strconv.ParseFloat(m[4], 64); err == nil {
			subject.SuccessRate = &v
		}
		if v, err := strconv.ParseFloat(m[5], 64); err == nil {
			subject.AbsenteeismRate = &v
		}
	}
}

func (e *Extractor) enrichHistoricalRates(subjects map[string]*SubjectRecord) {
	for _, rateType := range historicalRateTypes {
		sectionRe, err := regexp.Compile(`(?s)A2\.2\.\d Tasa de ` + rateType + `(.*?)(?:A2\.2\.\d|A2\.3\.)`)
		if err != nil {
			continue
		}

		section := sectionRe.FindStringSubmatch(e.text)
		if section == nil {
			e.logger.Debug("historical rate section not found", zap.String("rate_type", rateType))
			continue
		}

		years := historicalYearRe.FindAllString(section[1], -1)
		if len(years) == 0 {
			continue
		}

		for code, subject := range subjects {
			// One float column per year label found in the subsection.
			pattern := fmt.Sprintf(`%s\s*-\s*%s%s`, code, regexp.QuoteMeta(subject.Name),
				strings.Repeat(`\s*([\d\.]+)`, len(years)))
			rowRe, err := regexp.Compile(pattern)
			if err != nil {
				continue
			}

			m := rowRe.FindStringSubmatch(section[1])
			if m == nil {
				continue
			}

			for i, year := range years {
				value, err := strconv.ParseFloat(m[i+1], 64)
				if err != nil {
					// A single malformed cell must not lose the rest of
					// the subject's historical values.
					e.logger.Debug("unparseable historical value",
						zap.String("code", code),
						zap.String("rate_type", rateType),
						zap.String("year", year))
					continue
				}

				if subject.Historical == nil {
					subject.Historical = make(map[string]map[string]float64)
				}
				if subject.Historical[rateType] == nil {
					subject.Historical[rateType] = make(map[string]float64)
				}
				subject.Historical[rateType][year] = value
			}
		}
	}
}
