package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/database"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

const featuredProgramsLimit = 6

type programReader interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type programWriter interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, id string) error
}

// snapshotForgetter drops deleted programs from the fallback snapshot.
type snapshotForgetter interface {
	Forget(id string)
}

type cachedProgramPage struct {
	Items []models.Program `json:"items"`
	Total int              `json:"total"`
}

// ProgramService serves the camp catalog.
type ProgramService struct {
	reader    programReader
	writer    programWriter
	snapshot  snapshotForgetter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewProgramService wires the catalog. reader is normally the fallback
// decorator over writer; snapshot may be nil.
func NewProgramService(reader programReader, writer programWriter, snapshot snapshotForgetter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProgramService{
		reader:    reader,
		writer:    writer,
		snapshot:  snapshot,
		cache:     cache,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns catalog programs ordered by sort order then start date.
// Drafts are only listed for admins who ask for them.
func (s *ProgramService) List(ctx context.Context, actor models.Actor, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	if !actor.IsAdmin() {
		filter.IncludeDraft = false
	}
	if filter.Age != nil && (*filter.Age < 0 || *filter.Age > 120) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "age filter is out of range")
	}
	page := pagination(filter.Page, filter.PageSize, 0)
	filter.Page, filter.PageSize = page.Page, page.PageSize

	key := programListKey(filter)
	if !filter.IncludeDraft {
		var cached cachedProgramPage
		if s.cache.Get(ctx, key, &cached) {
			return cached.Items, pagination(filter.Page, filter.PageSize, cached.Total), nil
		}
	}

	programs, total, err := s.reader.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	if !filter.IncludeDraft {
		s.cache.Set(ctx, key, cachedProgramPage{Items: programs, Total: total}, 0)
	}
	return programs, pagination(filter.Page, filter.PageSize, total), nil
}

// Featured returns the highlighted active programs for the landing page.
func (s *ProgramService) Featured(ctx context.Context) ([]models.Program, error) {
	featured := true
	programs, _, err := s.List(ctx, models.Actor{}, models.ProgramFilter{Featured: &featured, Page: 1, PageSize: featuredProgramsLimit})
	return programs, err
}

// Get returns one program. Inactive programs are hidden from everyone but
// admins. Detail reads skip the cache so the seat count is current.
func (s *ProgramService) Get(ctx context.Context, actor models.Actor, id string) (*models.Program, error) {
	program, err := s.reader.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if !program.IsActive && !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
	}
	return program, nil
}

// Create adds a program. The sale price is derived from the original price and discount.
func (s *ProgramService) Create(ctx context.Context, actor models.Actor, req dto.ProgramRequest) (*models.Program, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage programs")
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	program := &models.Program{IsActive: true}
	applyProgramRequest(program, req)
	if err := s.writer.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	s.cache.Invalidate(ctx, cacheKeyPrograms+"*")
	s.logger.Info("program created", zap.String("program_id", program.ID), zap.String("admin_id", actor.ID))
	return program, nil
}

// Update replaces a program's catalog fields. The enrolled count is left
// alone and capacity cannot drop below it.
func (s *ProgramService) Update(ctx context.Context, actor models.Actor, id string, req dto.ProgramRequest) (*models.Program, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can manage programs")
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}
	program, err := s.writer.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	if req.Capacity < program.EnrolledCount {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("capacity cannot be below the %d seats already taken", program.EnrolledCount))
	}

	applyProgramRequest(program, req)
	program.UpdatedAt = s.now().UTC()
	if err := s.writer.Update(ctx, program); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		// seats taken between the read above and the write
		if database.IsCheckViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity cannot be below the seats already taken")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	s.cache.Invalidate(ctx, cacheKeyPrograms+"*")
	return program, nil
}

// Delete removes a program that no enrollment references.
func (s *ProgramService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins can manage programs")
	}
	if err := s.writer.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		case database.IsForeignKeyViolation(err):
			return appErrors.Clone(appErrors.ErrConflict, "program still has enrollments")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	if s.snapshot != nil {
		s.snapshot.Forget(id)
	}
	s.cache.Invalidate(ctx, cacheKeyPrograms+"*")
	s.logger.Info("program deleted", zap.String("program_id", id), zap.String("admin_id", actor.ID))
	return nil
}

func (s *ProgramService) validate(req dto.ProgramRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	if req.OriginalPrice.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "original price cannot be negative")
	}
	return nil
}

func applyProgramRequest(p *models.Program, req dto.ProgramRequest) {
	p.Title = strings.TrimSpace(req.Title)
	p.Description = req.Description
	p.Category = req.Category
	p.LocationName = req.LocationName
	p.City = req.City
	p.Country = req.Country
	p.AgeMin = req.AgeMin
	p.AgeMax = req.AgeMax
	p.StartDate = req.StartDate
	p.EndDate = req.EndDate
	p.OriginalPrice = req.OriginalPrice.Round(2)
	p.DiscountPercent = req.DiscountPercent
	p.Price = models.DiscountedPrice(req.OriginalPrice, req.DiscountPercent)
	p.Currency = strings.ToUpper(req.Currency)
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.Capacity = req.Capacity
	p.Features = append([]string(nil), req.Features...)
	p.Photos = append([]string(nil), req.Photos...)
	p.Featured = req.Featured
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.SortOrder = req.SortOrder
}

func programListKey(f models.ProgramFilter) string {
	featured, age := "-", "-"
	if f.Featured != nil {
		featured = fmt.Sprint(*f.Featured)
	}
	if f.Age != nil {
		age = fmt.Sprint(*f.Age)
	}
	return fmt.Sprintf("%slist:%s:%s:%s:%s:%s:%d:%d", cacheKeyPrograms,
		f.Category, strings.ToLower(f.City), featured, age, strings.ToLower(f.Search), f.Page, f.PageSize)
}
