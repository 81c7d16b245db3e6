package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

type fakeProgramSrv struct {
	filter   models.ProgramFilter
	actor    models.Actor
	created  dto.ProgramRequest
	deleted  string
	err      error
	programs []models.Program
}

func (f *fakeProgramSrv) List(_ context.Context, actor models.Actor, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	f.actor, f.filter = actor, filter
	return f.programs, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(f.programs)}, f.err
}

func (f *fakeProgramSrv) Featured(context.Context) ([]models.Program, error) {
	return f.programs, f.err
}

func (f *fakeProgramSrv) Get(_ context.Context, _ models.Actor, id string) (*models.Program, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Program{ID: id, Title: "Summer STEM"}, nil
}

func (f *fakeProgramSrv) Create(_ context.Context, actor models.Actor, req dto.ProgramRequest) (*models.Program, error) {
	f.actor, f.created = actor, req
	return &models.Program{ID: "p-new", Title: req.Title}, f.err
}

func (f *fakeProgramSrv) Update(_ context.Context, _ models.Actor, id string, req dto.ProgramRequest) (*models.Program, error) {
	return &models.Program{ID: id, Title: req.Title}, f.err
}

func (f *fakeProgramSrv) Delete(_ context.Context, _ models.Actor, id string) error {
	f.deleted = id
	return f.err
}

func TestProgramListParsesFilters(t *testing.T) {
	srv := &fakeProgramSrv{programs: []models.Program{{ID: "p1"}, {ID: "p2"}}}
	handler := NewProgramHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/programs?category=summer&city=Seoul&featured=true&age=10&q=stem&include_draft=true&page=2&page_size=5", nil, models.Actor{})

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeList(t, rec)
	assert.Len(t, envelope.Data, 2)
	assert.Equal(t, float64(2), envelope.Pagination["total_count"])

	assert.Equal(t, models.ProgramCategory("summer"), srv.filter.Category)
	assert.Equal(t, "Seoul", srv.filter.City)
	require.NotNil(t, srv.filter.Featured)
	assert.True(t, *srv.filter.Featured)
	require.NotNil(t, srv.filter.Age)
	assert.Equal(t, 10, *srv.filter.Age)
	assert.Equal(t, "stem", srv.filter.Search)
	assert.True(t, srv.filter.IncludeDraft)
	assert.Equal(t, 2, srv.filter.Page)
	assert.Equal(t, 5, srv.filter.PageSize)
	assert.Empty(t, srv.actor.ID)
}

func TestProgramListRejectsBadAge(t *testing.T) {
	handler := NewProgramHandler(&fakeProgramSrv{})
	c, rec := newTestContext(http.MethodGet, "/programs?age=ten", nil, models.Actor{})

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgramGetNotFound(t *testing.T) {
	handler := NewProgramHandler(&fakeProgramSrv{err: appErrors.Clone(appErrors.ErrNotFound, "program not found")})
	c, rec := newTestContext(http.MethodGet, "/programs/p1", nil, models.Actor{})
	withID(c, "p1")

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "program not found", decode(t, rec).Error["message"])
}

func TestProgramCreate(t *testing.T) {
	srv := &fakeProgramSrv{}
	handler := NewProgramHandler(srv)
	body := []byte(`{"title":"Winter Ski","description":"Snow","category":"winter","location_name":"Lodge","city":"Pyeongchang","country":"KR","age_min":8,"age_max":14,"start_date":"2026-12-20T00:00:00Z","end_date":"2026-12-27T00:00:00Z","original_price":"1200.00","discount_percent":10,"capacity":30}`)
	c, rec := newTestContext(http.MethodPost, "/admin/programs", body, adminActor)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "p-new", decode(t, rec).Data["id"])
	assert.Equal(t, "Winter Ski", srv.created.Title)
	assert.Equal(t, "1200", srv.created.OriginalPrice.String())
	assert.Equal(t, adminActor, srv.actor)
}

func TestProgramCreateRejectsMalformedJSON(t *testing.T) {
	handler := NewProgramHandler(&fakeProgramSrv{})
	c, rec := newTestContext(http.MethodPost, "/admin/programs", []byte(`{"title":`), adminActor)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error["code"])
}

func TestProgramDeleteConflict(t *testing.T) {
	srv := &fakeProgramSrv{err: appErrors.Clone(appErrors.ErrConflict, "program still has enrollments")}
	handler := NewProgramHandler(srv)
	c, rec := newTestContext(http.MethodDelete, "/admin/programs/p1", nil, adminActor)
	withID(c, "p1")

	handler.Delete(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "p1", srv.deleted)
}
