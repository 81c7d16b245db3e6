package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/export"
	"github.com/noah-isme/camp-booking-api/pkg/storage"
)

const exportPageSize = 100

type exportUserSource interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type exportProgramSource interface {
	ListAll(ctx context.Context) ([]models.Program, error)
}

type exportEnrollmentSource interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(format export.Format, data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders admin datasets to files and hands out signed download links.
type ExportService struct {
	users       exportUserSource
	programs    exportProgramSource
	enrollments exportEnrollmentSource
	storage     fileStorage
	renderer    datasetRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService. A nil renderer uses every built-in exporter.
func NewExportService(users exportUserSource, programs exportProgramSource, enrollments exportEnrollmentSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, renderer datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if renderer == nil {
		renderer = export.NewRenderer()
	}
	return &ExportService{
		users:       users,
		programs:    programs,
		enrollments: enrollments,
		storage:     store,
		renderer:    renderer,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Export renders resource in the requested format and stores it.
func (s *ExportService) Export(ctx context.Context, actor models.Actor, resource models.ExportResource, rawFormat string) (*models.ExportResult, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can export data")
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	var (
		dataset export.Dataset
		title   string
	)
	switch resource {
	case models.ExportUsers:
		dataset, err = s.usersDataset(ctx)
		title = "Users"
	case models.ExportPrograms:
		dataset, err = s.programsDataset(ctx)
		title = "Programs"
	case models.ExportEnrollments:
		dataset, err = s.enrollmentsDataset(ctx)
		title = "Enrollments"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown export resource %q", resource))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect export data")
	}

	payload, err := s.renderer.Render(format, dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("%s_%s_%s.%s", resource, s.now().UTC().Format("20060102_150405"), id[:8], format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export generated",
		zap.String("resource", string(resource)),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
		zap.String("admin_id", actor.ID),
	)
	return &models.ExportResult{
		ID:          id,
		Resource:    string(resource),
		Format:      string(format),
		Rows:        len(dataset.Rows),
		DownloadURL: fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// Resolve validates a download token and opens the file it points at.
func (s *ExportService) Resolve(token string) (*os.File, export.Format, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link has expired")
		}
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "download link is invalid")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	ext := relPath[strings.LastIndex(relPath, ".")+1:]
	return f, export.Format(ext), nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) usersDataset(ctx context.Context) (export.Dataset, error) {
	headers := []string{"ID", "Email", "Name", "Phone", "Role", "Experience", "Level", "Title", "Created At"}
	rows := make([]map[string]string, 0)
	for page := 1; ; page++ {
		users, total, err := s.users.List(ctx, models.UserFilter{Page: page, PageSize: exportPageSize, SortBy: "created_at", SortOrder: "asc"})
		if err != nil {
			return export.Dataset{}, err
		}
		for _, u := range users {
			rows = append(rows, map[string]string{
				"ID":         u.ID,
				"Email":      u.Email,
				"Name":       u.Name,
				"Phone":      u.Phone,
				"Role":       string(u.Role),
				"Experience": strconv.Itoa(u.Experience),
				"Level":      strconv.Itoa(u.CommunityLevel),
				"Title":      u.CommunityTitle,
				"Created At": formatExportTime(u.CreatedAt),
			})
		}
		if len(users) == 0 || len(rows) >= total {
			break
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) programsDataset(ctx context.Context) (export.Dataset, error) {
	programs, err := s.programs.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	headers := []string{"ID", "Title", "Category", "City", "Start", "End", "Price", "Currency", "Capacity", "Enrolled", "Active"}
	rows := make([]map[string]string, 0, len(programs))
	for _, p := range programs {
		rows = append(rows, map[string]string{
			"ID":       p.ID,
			"Title":    p.Title,
			"Category": string(p.Category),
			"City":     p.City,
			"Start":    p.StartDate.Format("2006-01-02"),
			"End":      p.EndDate.Format("2006-01-02"),
			"Price":    p.Price.StringFixed(2),
			"Currency": p.Currency,
			"Capacity": strconv.Itoa(p.Capacity),
			"Enrolled": strconv.Itoa(p.EnrolledCount),
			"Active":   strconv.FormatBool(p.IsActive),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) enrollmentsDataset(ctx context.Context) (export.Dataset, error) {
	headers := []string{"ID", "Program", "Parent", "Email", "Student", "Age", "Status", "Payment", "Created At"}
	rows := make([]map[string]string, 0)
	for page := 1; ; page++ {
		items, total, err := s.enrollments.List(ctx, models.EnrollmentFilter{Page: page, PageSize: exportPageSize, SortOrder: "asc"})
		if err != nil {
			return export.Dataset{}, err
		}
		for _, e := range items {
			age := ""
			if e.StudentInfo.Age > 0 {
				age = strconv.Itoa(e.StudentInfo.Age)
			}
			rows = append(rows, map[string]string{
				"ID":         e.ID,
				"Program":    e.ProgramTitle,
				"Parent":     e.UserName,
				"Email":      e.UserEmail,
				"Student":    e.StudentInfo.Name,
				"Age":        age,
				"Status":     string(e.Status),
				"Payment":    string(e.PaymentStatus),
				"Created At": formatExportTime(e.CreatedAt),
			})
		}
		if len(items) == 0 || len(rows) >= total {
			break
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func formatExportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
