package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"

	"github.com/nataclub/natation-api/pkg/config"
	"github.com/nataclub/natation-api/pkg/jobs"
)

const (
	jobEnrollmentConfirmed = "notification.enrollment_confirmed"
	jobPaymentApproved     = "notification.payment_approved"
	jobMembershipActivated = "notification.membership_activated"
)

type mailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// ResendMailer sends transactional mail through the Resend API.
type ResendMailer struct {
	client  *resend.Client
	from    string
	replyTo string
}

// NewResendMailer constructs a mailer from the notifications config.
func NewResendMailer(cfg config.NotificationsConfig) *ResendMailer {
	return &ResendMailer{
		client:  resend.NewClient(cfg.ResendAPIKey),
		from:    cfg.FromAddress,
		replyTo: cfg.ReplyTo,
	}
}

// Send delivers one email.
func (m *ResendMailer) Send(ctx context.Context, to, subject, html string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}
	if m.replyTo != "" {
		params.ReplyTo = m.replyTo
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	return nil
}

type notificationPayload struct {
	To      string
	Subject string
	HTML    string
}

// NotificationService delivers French transactional emails through a
// background queue. Deliveries are fire-and-forget: a failed send is
// logged, retried once by the queue, then dropped.
type NotificationService struct {
	mailer  mailSender
	queue   *jobs.Queue
	enabled bool
	logger  *zap.Logger
}

// NewNotificationService constructs NotificationService. When disabled or
// given a nil mailer every notification is a silent no-op.
func NewNotificationService(mailer mailSender, enabled bool, queueCfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{mailer: mailer, enabled: enabled && mailer != nil, logger: logger}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.handle, queueCfg)
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationPayload)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job", job.ID))
		return nil
	}
	return s.mailer.Send(ctx, payload.To, payload.Subject, payload.HTML)
}

func (s *NotificationService) enqueue(jobType string, payload notificationPayload) {
	if !s.enabled || payload.To == "" {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: payload,
	})
	if err != nil {
		s.logger.Warn("notification enqueue failed", zap.String("type", jobType), zap.Error(err))
	}
}

// NotifyEnrollmentConfirmed mails the invoice summary after enrolling.
func (s *NotificationService) NotifyEnrollmentConfirmed(to, fullName, courseName, reference string, amount float64) {
	html := fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Votre inscription au cours <strong>%s</strong> est confirmée.</p>
<p>Facture <strong>%s</strong> d'un montant de <strong>%.2f HTG</strong>, payable au secrétariat.</p>
<p>À bientôt à la piscine !</p>`, fullName, courseName, reference, amount)
	s.enqueue(jobEnrollmentConfirmed, notificationPayload{
		To:      to,
		Subject: "Confirmation d'inscription",
		HTML:    html,
	})
}

// NotifyPaymentApproved mails the paid-invoice confirmation.
func (s *NotificationService) NotifyPaymentApproved(to, fullName, reference string, amount float64) {
	html := fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Nous avons bien reçu votre paiement de <strong>%.2f HTG</strong> pour la facture <strong>%s</strong>.</p>
<p>Votre reçu est disponible dans votre espace membre.</p>`, fullName, amount, reference)
	s.enqueue(jobPaymentApproved, notificationPayload{
		To:      to,
		Subject: "Paiement reçu",
		HTML:    html,
	})
}

// NotifyMembershipActivated mails the activation confirmation.
func (s *NotificationService) NotifyMembershipActivated(to, fullName, kind string, endDate string) {
	html := fmt.Sprintf(`<p>Bonjour %s,</p>
<p>Votre adhésion <strong>%s</strong> est maintenant active jusqu'au <strong>%s</strong>.</p>
<p>Bienvenue au club !</p>`, fullName, kind, endDate)
	s.enqueue(jobMembershipActivated, notificationPayload{
		To:      to,
		Subject: "Adhésion activée",
		HTML:    html,
	})
}
