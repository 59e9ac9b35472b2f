package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-erp-api/internal/models"
	"github.com/noah-isme/student-erp-api/internal/policy"
	appErrors "github.com/noah-isme/student-erp-api/pkg/errors"
	"github.com/noah-isme/student-erp-api/pkg/export"
)

// Supported report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

type performanceSummarizer interface {
	Summary(ctx context.Context, actor policy.Actor, studentID string) (*models.Student, models.PerformanceAnalytics, error)
}

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// ReportFile is a rendered report ready to be sent as an attachment.
type ReportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ReportService renders student performance reports.
type ReportService struct {
	performance performanceSummarizer
	csv         reportRenderer
	pdf         reportRenderer
	logger      *zap.Logger
}

// NewReportService constructs a ReportService. Nil renderers fall back to the defaults in pkg/export.
func NewReportService(performance performanceSummarizer, csv, pdf reportRenderer, logger *zap.Logger) *ReportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{performance: performance, csv: csv, pdf: pdf, logger: logger}
}

// Generate renders the performance report of a student. An empty format means csv.
func (s *ReportService) Generate(ctx context.Context, actor policy.Actor, studentID, format string) (*ReportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ReportFormatCSV
	}
	var (
		renderer    reportRenderer
		contentType string
	)
	switch format {
	case ReportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case ReportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	student, analytics, err := s.performance.Summary(ctx, actor, studentID)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(buildPerformanceReport(student, analytics))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("performance report generated",
		zap.String("student_id", student.ID),
		zap.String("format", format),
		zap.Int("bytes", len(body)))

	return &ReportFile{
		Filename:    fmt.Sprintf("performance_%s.%s", sanitizeFilename(student.StudentID), format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func buildPerformanceReport(student *models.Student, analytics models.PerformanceAnalytics) export.Report {
	subjects := make([]string, 0, len(analytics.Academic))
	for subject := range analytics.Academic {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	academic := export.Dataset{Headers: []string{"subject", "exams", "marks", "max_marks", "average_pct"}}
	for _, subject := range subjects {
		a := analytics.Academic[subject]
		academic.Rows = append(academic.Rows, map[string]string{
			"subject":     subject,
			"exams":       strconv.Itoa(a.ExamCount),
			"marks":       formatNumber(a.TotalMarks),
			"max_marks":   formatNumber(a.TotalMaxMarks),
			"average_pct": formatNumber(a.AveragePercentage),
		})
	}

	results := export.Dataset{Headers: []string{"date", "subject", "exam", "marks", "total", "remarks"}}
	for _, r := range student.AcademicResults {
		results.Rows = append(results.Rows, map[string]string{
			"date":    formatDay(r.Date),
			"subject": r.Subject,
			"exam":    r.ExamType,
			"marks":   formatNumber(r.Marks),
			"total":   formatNumber(r.TotalMarks),
			"remarks": r.TeacherRemarks,
		})
	}

	pe := export.Dataset{Headers: []string{"date", "activity", "performance", "remarks"}}
	for _, p := range student.PEPerformance {
		pe.Rows = append(pe.Rows, map[string]string{
			"date":        formatDay(p.Date),
			"activity":    p.Activity,
			"performance": p.Performance,
			"remarks":     p.TeacherRemarks,
		})
	}

	reading := export.Dataset{Headers: []string{"total_minutes", "avg_minutes_per_day", "books_read"}}
	reading.Rows = append(reading.Rows, map[string]string{
		"total_minutes":       formatNumber(analytics.Reading.TotalMinutes),
		"avg_minutes_per_day": formatNumber(analytics.Reading.AverageMinutesPerDay),
		"books_read":          strconv.Itoa(analytics.Reading.BooksRead),
	})

	return export.Report{
		Title: fmt.Sprintf("Performance report: %s %s (%s)", student.FirstName, student.LastName, student.StudentID),
		Sections: []export.Section{
			{Title: "Academic summary", Data: academic},
			{Title: "Academic results", Data: results},
			{Title: "Physical education", Data: pe},
			{Title: "Reading", Data: reading},
		},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "student"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
