package extractor

import "sort"

// HistoricalRate is one observation of the long-form historical relation:
// one subject, one rate type, one academic year.
type HistoricalRate struct {
	SubjectCode  string
	SubjectName  string
	RateType     string
	AcademicYear string
	Value        float64
}

// BuildHistoricalSeries flattens the Historical sub-mapping of every subject
// into long-form rows, sorted by (code, rate type, year). Subjects without
// historical data contribute nothing; an empty input yields an empty slice.
func BuildHistoricalSeries(subjects map[string]*SubjectRecord) []HistoricalRate {
	var rows []HistoricalRate

	for _, subject := range subjects {
		for rateType, yearValues := range subject.Historical {
			for year, value := range yearValues {
				rows = append(rows, HistoricalRate{
					SubjectCode:  subject.Code,
					SubjectName:  subject.Name,
					RateType:     rateType,
					AcademicYear: year,
					Value:        value,
				})
			}
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SubjectCode != rows[j].SubjectCode {
			return rows[i].SubjectCode < rows[j].SubjectCode
		}
		if rows[i].RateType != rows[j].RateType {
			return rows[i].RateType < rows[j].RateType
		}
		return rows[i].AcademicYear < rows[j].AcademicYear
	})

	return rows
}
