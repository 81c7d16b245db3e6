package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	appErrors "github.com/noah-isme/camp-booking-api/pkg/errors"
)

// ContactService accepts public contact form messages and queues them for the admin inbox.
type ContactService struct {
	jobs      jobSubmitter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewContactService constructs ContactService.
func NewContactService(jobs jobSubmitter, validate *validator.Validate, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ContactService{jobs: jobs, validator: validate, logger: logger}
}

// Submit validates the message and hands it to the notification queue.
func (s *ContactService) Submit(ctx context.Context, req dto.ContactRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact message")
	}
	if err := s.jobs.Submit(JobContactMessage, req); err != nil {
		s.logger.Error("contact message not queued", zap.String("email", req.Email), zap.Error(err))
		return appErrors.Clone(appErrors.ErrUnavailable, "message could not be sent, try again later")
	}
	return nil
}
