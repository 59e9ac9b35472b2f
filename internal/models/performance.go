package models

import "time"

// PerformanceLogs is the raw performance data for a student.
type PerformanceLogs struct {
	AcademicResults []AcademicResult `json:"academicResults"`
	PEPerformance   []PEPerformance  `json:"pePerformance"`
	ReadingTime     []ReadingEntry   `json:"readingTime"`
}

// SubjectAnalytics aggregates every exam of one subject.
type SubjectAnalytics struct {
	TotalMarks        float64 `json:"totalMarks"`
	TotalMaxMarks     float64 `json:"totalMaxMarks"`
	ExamCount         int     `json:"examCount"`
	AveragePercentage float64 `json:"averagePercentage"`
}

// PEObservation is one performance label for an activity.
type PEObservation struct {
	Performance string    `json:"performance"`
	Date        time.Time `json:"date"`
}

// ReadingPoint is one sample on the reading trend.
type ReadingPoint struct {
	Date    time.Time `json:"date"`
	Minutes float64   `json:"minutes"`
}

// ReadingAnalytics summarises the reading log.
type ReadingAnalytics struct {
	TotalMinutes         float64        `json:"totalMinutes"`
	AverageMinutesPerDay float64        `json:"averageMinutesPerDay"`
	BooksRead            int            `json:"booksRead"`
	DailyReadingTrend    []ReadingPoint `json:"dailyReadingTrend"`
}

// PerformanceAnalytics is the aggregated view returned by the analytics endpoint.
type PerformanceAnalytics struct {
	Academic map[string]SubjectAnalytics `json:"academic"`
	PE       map[string][]PEObservation  `json:"pe"`
	Reading  ReadingAnalytics            `json:"reading"`
}
