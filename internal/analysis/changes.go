// Package analysis computes year-over-year change detection, correlation of
// those changes against performance rates, and the statistical layer on top
// (significance tests and trend estimation).
package analysis

import (
	"sort"

	"github.com/godilite/academic-insights/internal/upmapi"
)

// FacultyChange compares the faculty roster of two consecutive academic years.
type FacultyChange struct {
	Year1          string   `json:"year1"`
	Year2          string   `json:"year2"`
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	TotalAdded     int      `json:"total_added"`
	TotalRemoved   int      `json:"total_removed"`
	PercentChanged float64  `json:"percent_changed"`
}

// EvaluationChange compares the evaluation method set of two consecutive
// academic years.
type EvaluationChange struct {
	Year1   string   `json:"year1"`
	Year2   string   `json:"year2"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Changed bool     `json:"changed"`
}

// ChangeAnalysis holds both change dimensions for one subject.
type ChangeAnalysis struct {
	SubjectCode string             `json:"subject_code"`
	SubjectName string             `json:"subject_name"`
	Faculty     []FacultyChange    `json:"faculty_changes"`
	Evaluation  []EvaluationChange `json:"evaluation_changes"`
}

// FacultyChangeFor returns the faculty comparison for the given year pair.
func (a ChangeAnalysis) FacultyChangeFor(year1, year2 string) (FacultyChange, bool) {
	for _, c := range a.Faculty {
		if c.Year1 == year1 && c.Year2 == year2 {
			return c, true
		}
	}
	return FacultyChange{}, false
}

// EvaluationChangeFor returns the evaluation comparison for the given year pair.
func (a ChangeAnalysis) EvaluationChangeFor(year1, year2 string) (EvaluationChange, bool) {
	for _, c := range a.Evaluation {
		if c.Year1 == year1 && c.Year2 == year2 {
			return c, true
		}
	}
	return EvaluationChange{}, false
}

// AnalyzeChanges diffs faculty rosters and evaluation method sets across every
// pair of consecutive years present in the subject's API data. Fewer than two
// years yields empty comparison lists.
func AnalyzeChanges(subjectCode, subjectName string, years map[string]*upmapi.YearRecord) ChangeAnalysis {
	result := ChangeAnalysis{
		SubjectCode: subjectCode,
		SubjectName: subjectName,
	}

	labels := make([]string, 0, len(years))
	for year := range years {
		labels = append(labels, year)
	}
	sort.Strings(labels)

	if len(labels) < 2 {
		return result
	}

	for i := 0; i < len(labels)-1; i++ {
		year1, year2 := labels[i], labels[i+1]

		faculty1 := years[year1].FacultyNames()
		faculty2 := years[year2].FacultyNames()
		added, removed := diffSets(faculty1, faculty2)

		denominator := len(faculty1)
		if denominator < 1 {
			denominator = 1
		}

		result.Faculty = append(result.Faculty, FacultyChange{
			Year1:          year1,
			Year2:          year2,
			Added:          added,
			Removed:        removed,
			TotalAdded:     len(added),
			TotalRemoved:   len(removed),
			PercentChanged: float64(len(added)+len(removed)) / float64(denominator) * 100,
		})

		methods1 := years[year1].EvaluationTypes()
		methods2 := years[year2].EvaluationTypes()
		added, removed = diffSets(methods1, methods2)

		result.Evaluation = append(result.Evaluation, EvaluationChange{
			Year1:   year1,
			Year2:   year2,
			Added:   added,
			Removed: removed,
			Changed: len(added) > 0 || len(removed) > 0,
		})
	}

	return result
}

// diffSets returns the sorted elements that appear only in second (added) and
// only in first (removed).
func diffSets(first, second map[string]struct{}) (added, removed []string) {
	added = make([]string, 0)
	removed = make([]string, 0)

	for v := range second {
		if _, ok := first[v]; !ok {
			added = append(added, v)
		}
	}
	for v := range first {
		if _, ok := second[v]; !ok {
			removed = append(removed, v)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
