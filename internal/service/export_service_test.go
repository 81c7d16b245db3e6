package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
	"github.com/noah-isme/camp-booking-api/pkg/export"
	"github.com/noah-isme/camp-booking-api/pkg/storage"
)

type exportProgramsStub struct {
	programs []models.Program
	err      error
}

func (s exportProgramsStub) ListAll(ctx context.Context) ([]models.Program, error) {
	return s.programs, s.err
}

func newExportServiceForTest(t *testing.T, db *memDB, programs exportProgramsStub) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}
	svc := NewExportService(newMemUsers(db), programs, memEnrollments{db: db}, store, signer, cfg, zap.NewNop(), nil)
	return svc, store
}

func TestExportUsersCSV(t *testing.T) {
	db := newMemDB()
	for i := 0; i < 130; i++ {
		db.addUser(db.nextID("user"), models.RoleParent)
	}
	svc, _ := newExportServiceForTest(t, db, exportProgramsStub{})

	result, err := svc.Export(context.Background(), admin, models.ExportUsers, "CSV")
	require.NoError(t, err)
	assert.Equal(t, 130, result.Rows)
	assert.Equal(t, "csv", result.Format)
	assert.True(t, strings.HasPrefix(result.DownloadURL, "/api/v1/exports/"), result.DownloadURL)

	token := strings.TrimPrefix(result.DownloadURL, "/api/v1/exports/")
	f, format, err := svc.Resolve(token)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, export.FormatCSV, format)

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 131)
	assert.True(t, strings.HasPrefix(lines[0], "ID,Email,Name"))
}

func TestExportProgramsFormats(t *testing.T) {
	programs := exportProgramsStub{programs: []models.Program{
		{ID: "p1", Title: "Summer STEM", Category: models.CategorySummer, Price: decimal.RequireFromString("1511.1"), Currency: "USD", Capacity: 40, EnrolledCount: 3, IsActive: true},
	}}
	svc, _ := newExportServiceForTest(t, newMemDB(), programs)

	for _, format := range []string{"pdf", "xlsx"} {
		result, err := svc.Export(context.Background(), admin, models.ExportPrograms, format)
		require.NoError(t, err, format)
		assert.Equal(t, 1, result.Rows)
		assert.Equal(t, format, result.Format)
	}
}

func TestExportEnrollments(t *testing.T) {
	db := newMemDB()
	db.addUser("u1", models.RoleParent)
	db.addProgram(programA, 5, 1)
	memEnrollments{db: db}.put(models.Enrollment{ID: "e1", UserID: "u1", ProgramID: programA, Status: models.EnrollmentStatusPending, CapacityHeld: true})
	memEnrollments{db: db}.put(models.Enrollment{ID: "e2", UserID: "u1", ProgramID: programB, Status: models.EnrollmentStatusWishlist})
	svc, _ := newExportServiceForTest(t, db, exportProgramsStub{})

	result, err := svc.Export(context.Background(), admin, models.ExportEnrollments, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rows)
	assert.Equal(t, "csv", result.Format)
}

func TestExportRejections(t *testing.T) {
	svc, _ := newExportServiceForTest(t, newMemDB(), exportProgramsStub{err: errors.New("db down")})

	_, err := svc.Export(context.Background(), parent, models.ExportUsers, "csv")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Export(context.Background(), admin, models.ExportUsers, "docx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Export(context.Background(), admin, models.ExportResource("grades"), "csv")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Export(context.Background(), admin, models.ExportPrograms, "csv")
	assert.ErrorIs(t, err, appErrors.ErrInternal)

	_, _, err = svc.Resolve("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportCleanup(t *testing.T) {
	db := newMemDB()
	db.addUser("u1", models.RoleParent)
	svc, _ := newExportServiceForTest(t, db, exportProgramsStub{})

	result, err := svc.Export(context.Background(), admin, models.ExportUsers, "csv")
	require.NoError(t, err)

	removed, err := svc.Cleanup(time.Nanosecond)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	_, _, err = svc.Resolve(strings.TrimPrefix(result.DownloadURL, "/api/v1/exports/"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
