package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/export"
)

type exportEnrollmentSource interface {
	List(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]*models.Enrollment, error)
}

type enrollmentDecrypter interface {
	decryptAll(enrollments []*models.Enrollment) []*models.Enrollment
}

// ExportService renders filtered enrollment lists as CSV or PDF.
type ExportService struct {
	source    exportEnrollmentSource
	decrypter enrollmentDecrypter
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewExportService constructs the service. The decrypter is the enrollment
// service, which owns the key material.
func NewExportService(source exportEnrollmentSource, decrypter enrollmentDecrypter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		source:    source,
		decrypter: decrypter,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// CSV renders the filtered list as CSV bytes.
func (s *ExportService) CSV(ctx context.Context, filter models.EnrollmentFilter) ([]byte, error) {
	dataset, err := s.dataset(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "csv export failed")
	}
	return data, nil
}

// PDF renders the filtered list as a tabular PDF.
func (s *ExportService) PDF(ctx context.Context, filter models.EnrollmentFilter) ([]byte, error) {
	dataset, err := s.dataset(ctx, filter)
	if err != nil {
		return nil, err
	}
	title := "Enrollments"
	if filter.SchoolYear != "" {
		title = fmt.Sprintf("Enrollments %s", filter.SchoolYear)
	}
	data, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "pdf export failed")
	}
	return data, nil
}

func (s *ExportService) dataset(ctx context.Context, filter models.EnrollmentFilter) (export.Dataset, error) {
	enrollments, err := s.source.List(ctx, filter, 0)
	if err != nil {
		return export.Dataset{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load enrollments")
	}
	enrollments = s.decrypter.decryptAll(enrollments)

	headers := []string{"LRN", "Full Name", "Type", "Grade", "Strand", "Status", "School Year", "Contact", "Submitted"}
	rows := make([]map[string]string, 0, len(enrollments))
	for _, e := range enrollments {
		rows = append(rows, map[string]string{
			"LRN":         e.LRN,
			"Full Name":   e.FullName,
			"Type":        string(e.Type),
			"Grade":       e.GradeLevel,
			"Strand":      e.Strand,
			"Status":      string(e.Status),
			"School Year": e.SchoolYear,
			"Contact":     e.ContactNumber,
			"Submitted":   e.SubmittedAt.Format("2006-01-02"),
		})
	}
	s.logger.Info("export rendered", zap.Int("rows", len(rows)), zap.String("status", string(filter.Status)))
	return export.Dataset{Headers: headers, Rows: rows}, nil
}
