package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/camp-booking-api/internal/dto"
	"github.com/noah-isme/camp-booking-api/internal/models"
	"github.com/noah-isme/camp-booking-api/pkg/jobs"
	"github.com/noah-isme/camp-booking-api/pkg/notify"
)

// Background job types.
const (
	JobEnrollmentCreated   = "enrollment.created"
	JobEnrollmentConfirmed = "enrollment.confirmed"
	JobContactMessage      = "contact.message"
	JobPasswordReset       = "auth.password_reset"
	JobAuthorStatsRefresh  = "community.author_stats"
)

// EnrollmentNotice identifies the enrollment a notification is about.
type EnrollmentNotice struct {
	EnrollmentID string
}

// PasswordResetNotice carries the one-time reset link.
type PasswordResetNotice struct {
	Email string
	Name  string
	Link  string
}

type enrollmentDetailReader interface {
	FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

// NotificationService turns queued jobs into emails and Slack alerts. Every
// handler is best-effort: the queue retries and finally logs failures.
type NotificationService struct {
	enrollments enrollmentDetailReader
	mailer      notify.Mailer
	alerter     notify.Alerter
	adminInbox  mail.Address
	logger      *zap.Logger
}

// NewNotificationService constructs NotificationService.
func NewNotificationService(enrollments enrollmentDetailReader, mailer notify.Mailer, alerter notify.Alerter, adminInbox string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alerter == nil {
		alerter = notify.NopAlerter{}
	}
	return &NotificationService{
		enrollments: enrollments,
		mailer:      mailer,
		alerter:     alerter,
		adminInbox:  mail.Address{Name: "Camp Admin", Address: adminInbox},
		logger:      logger,
	}
}

// Register binds the notification handlers on mux.
func (s *NotificationService) Register(mux *jobs.Mux) {
	mux.Handle(JobEnrollmentCreated, s.handleEnrollmentCreated)
	mux.Handle(JobEnrollmentConfirmed, s.handleEnrollmentConfirmed)
	mux.Handle(JobContactMessage, s.handleContactMessage)
	mux.Handle(JobPasswordReset, s.handlePasswordReset)
}

func (s *NotificationService) handleEnrollmentCreated(ctx context.Context, job jobs.Job) error {
	detail, err := s.loadEnrollment(ctx, job)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Hello %s,\n\nWe received the enrollment of %s for %s starting %s. "+
		"Our team will review it and confirm shortly.\n\nReference: %s\n",
		detail.UserName, detail.StudentInfo.Name, detail.ProgramTitle, detail.ProgramStart.Format("January 2, 2006"), detail.ID)
	if err := s.mailer.Send(ctx, notify.Message{
		To:      []mail.Address{{Name: detail.UserName, Address: detail.UserEmail}},
		Subject: "Enrollment received: " + detail.ProgramTitle,
		Text:    text,
	}); err != nil {
		return fmt.Errorf("send enrollment receipt: %w", err)
	}

	admin := fmt.Sprintf("New enrollment for %s\nStudent: %s (age %d)\nAccount: %s <%s>\nEmergency contact: %s, %s\n",
		detail.ProgramTitle, detail.StudentInfo.Name, detail.StudentInfo.Age, detail.UserName, detail.UserEmail,
		detail.EmergencyContact.Name, detail.EmergencyContact.Phone)
	if err := s.mailer.Send(ctx, notify.Message{
		To:      []mail.Address{s.adminInbox},
		ReplyTo: &mail.Address{Name: detail.UserName, Address: detail.UserEmail},
		Subject: "[Enrollment] " + detail.ProgramTitle,
		Text:    admin,
	}); err != nil {
		return fmt.Errorf("send enrollment admin copy: %w", err)
	}

	if err := s.alerter.Alert(ctx, fmt.Sprintf(":tent: New enrollment: %s for %s", detail.StudentInfo.Name, detail.ProgramTitle)); err != nil {
		s.logger.Warn("slack alert failed", zap.String("enrollment_id", detail.ID), zap.Error(err))
	}
	return nil
}

func (s *NotificationService) handleEnrollmentConfirmed(ctx context.Context, job jobs.Job) error {
	detail, err := s.loadEnrollment(ctx, job)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Hello %s,\n\nThe enrollment of %s for %s is confirmed. See you on %s!\n",
		detail.UserName, detail.StudentInfo.Name, detail.ProgramTitle, detail.ProgramStart.Format("January 2, 2006"))
	if err := s.mailer.Send(ctx, notify.Message{
		To:      []mail.Address{{Name: detail.UserName, Address: detail.UserEmail}},
		Subject: "Enrollment confirmed: " + detail.ProgramTitle,
		Text:    text,
	}); err != nil {
		return fmt.Errorf("send enrollment confirmation: %w", err)
	}
	return nil
}

func (s *NotificationService) handleContactMessage(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(dto.ContactRequest)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s <%s>\n", msg.Name, msg.Email)
	if msg.Phone != "" {
		fmt.Fprintf(&body, "Phone: %s\n", msg.Phone)
	}
	body.WriteString("\n")
	body.WriteString(msg.Message)

	if err := s.mailer.Send(ctx, notify.Message{
		To:      []mail.Address{s.adminInbox},
		ReplyTo: &mail.Address{Name: msg.Name, Address: msg.Email},
		Subject: "[Contact] " + msg.Subject,
		Text:    body.String(),
	}); err != nil {
		return fmt.Errorf("forward contact message: %w", err)
	}
	if err := s.alerter.Alert(ctx, fmt.Sprintf(":email: Contact form: %q from %s", msg.Subject, msg.Email)); err != nil {
		s.logger.Warn("slack alert failed", zap.Error(err))
	}
	return nil
}

func (s *NotificationService) handlePasswordReset(ctx context.Context, job jobs.Job) error {
	notice, ok := job.Payload.(PasswordResetNotice)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	text := fmt.Sprintf("Hello %s,\n\nUse the link below to choose a new password. It expires in one hour.\n\n%s\n\n"+
		"If you did not ask for this, ignore this email.\n", notice.Name, notice.Link)
	if err := s.mailer.Send(ctx, notify.Message{
		To:      []mail.Address{{Name: notice.Name, Address: notice.Email}},
		Subject: "Reset your password",
		Text:    text,
	}); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

func (s *NotificationService) loadEnrollment(ctx context.Context, job jobs.Job) (*models.EnrollmentDetail, error) {
	notice, ok := job.Payload.(EnrollmentNotice)
	if !ok {
		return nil, fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	detail, err := s.enrollments.FindDetail(ctx, notice.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment %s: %w", notice.EnrollmentID, err)
	}
	return detail, nil
}
