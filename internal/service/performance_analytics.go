package service

import (
	"sort"
	"time"

	"github.com/noah-isme/student-erp-api/internal/models"
)

// readingAverageWindowDays is both the look-back window and the divisor of the reading average.
const readingAverageWindowDays = 30

// AggregatePerformance reduces a student's raw logs into grouped summaries. It is pure: the
// same logs and now always yield the same result.
func AggregatePerformance(logs models.PerformanceLogs, now time.Time) models.PerformanceAnalytics {
	return models.PerformanceAnalytics{
		Academic: aggregateAcademic(logs.AcademicResults),
		PE:       aggregatePE(logs.PEPerformance),
		Reading:  aggregateReading(logs.ReadingTime, now),
	}
}

// aggregateAcademic weights subjects by total marks: the average is sum(marks)/sum(totalMarks),
// not a mean of per-exam percentages.
func aggregateAcademic(results []models.AcademicResult) map[string]models.SubjectAnalytics {
	out := make(map[string]models.SubjectAnalytics)
	for _, result := range results {
		summary := out[result.Subject]
		summary.TotalMarks += result.Marks
		summary.TotalMaxMarks += result.TotalMarks
		summary.ExamCount++
		out[result.Subject] = summary
	}
	for subject, summary := range out {
		if summary.TotalMaxMarks != 0 {
			summary.AveragePercentage = summary.TotalMarks / summary.TotalMaxMarks * 100
		}
		out[subject] = summary
	}
	return out
}

func aggregatePE(entries []models.PEPerformance) map[string][]models.PEObservation {
	out := make(map[string][]models.PEObservation)
	for _, entry := range entries {
		out[entry.Activity] = append(out[entry.Activity], models.PEObservation{
			Performance: entry.Performance,
			Date:        entry.Date,
		})
	}
	return out
}

// aggregateReading divides recent minutes by a fixed 30 regardless of how many days have entries.
func aggregateReading(entries []models.ReadingEntry, now time.Time) models.ReadingAnalytics {
	analytics := models.ReadingAnalytics{
		DailyReadingTrend: make([]models.ReadingPoint, 0, len(entries)),
	}

	books := make(map[string]struct{}, len(entries))
	windowStart := now.AddDate(0, 0, -readingAverageWindowDays)
	var recentMinutes float64
	var recentCount int

	for _, entry := range entries {
		analytics.TotalMinutes += entry.Minutes
		books[entry.BookTitle] = struct{}{}
		analytics.DailyReadingTrend = append(analytics.DailyReadingTrend, models.ReadingPoint{
			Date:    entry.Date,
			Minutes: entry.Minutes,
		})
		if !entry.Date.Before(windowStart) {
			recentMinutes += entry.Minutes
			recentCount++
		}
	}

	analytics.BooksRead = len(books)
	sort.SliceStable(analytics.DailyReadingTrend, func(i, j int) bool {
		return analytics.DailyReadingTrend[i].Date.Before(analytics.DailyReadingTrend[j].Date)
	})
	if recentCount > 0 {
		analytics.AverageMinutesPerDay = recentMinutes / readingAverageWindowDays
	}
	return analytics
}
