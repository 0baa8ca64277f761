package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"studiofit/internal/logger"
	"studiofit/internal/member"
	"studiofit/internal/metrics"
)

// Kind identifies the notification template.
type Kind string

const (
	KindBookingConfirmed Kind = "BOOKING_CONFIRMED"
	KindWaitlistPromoted Kind = "WAITLIST_PROMOTED"
	KindSessionCancelled Kind = "SESSION_CANCELLED"
	KindCheckInConfirmed Kind = "CHECK_IN_CONFIRMED"
)

const (
	queueKey  = "notifications"
	failedKey = "notifications:failed"

	maxTries = 3
)

type Job struct {
	MemberID int                    `json:"member_id"`
	Kind     Kind                   `json:"kind"`
	Payload  map[string]interface{} `json:"payload"`
	Tries    int                    `json:"tries"`
	Created  time.Time              `json:"created"`
}

// Service queues notification jobs in redis and delivers them by email from
// a background worker. Dispatch is fire-and-forget: enqueue failures are
// logged by callers, delivery failures are retried and eventually parked on
// a failed list. Nothing here ever runs inside a booking transaction.
type Service struct {
	redis      *redis.Client
	memberRepo member.Repository

	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(memberRepo member.Repository, fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		memberRepo: memberRepo,
		from:       fromEmail,
		fromName:   fromName,
		smtpHost:   smtpHost,
		smtpPort:   smtpPort,
		smtpUser:   smtpUser,
		smtpPass:   smtpPass,
	}
}

func (s *Service) Notify(ctx context.Context, memberID int, kind Kind, payload map[string]interface{}) error {
	job := Job{
		MemberID: memberID,
		Kind:     kind,
		Payload:  payload,
		Tries:    0,
		Created:  time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal notification job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue %s notification for member %d: %v", kind, memberID, err)
		metrics.RecordNotification(string(kind), "enqueue_failed")
		return err
	}

	metrics.RecordNotification(string(kind), "queued")
	logger.Infof("Notification queued: %s for member %d", kind, memberID)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Notification service started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Notification service stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad notification data: %v", err)
		return
	}

	job.Tries++
	if err := s.deliver(ctx, job); err != nil {
		logger.Errorf("Failed to deliver %s to member %d: %v", job.Kind, job.MemberID, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			logger.Infof("Retrying %s for member %d (attempt %d)", job.Kind, job.MemberID, job.Tries+1)
		} else {
			logger.Errorf("Notification %s for member %d failed after %d attempts", job.Kind, job.MemberID, maxTries)
			metrics.RecordNotification(string(job.Kind), "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordNotification(string(job.Kind), "delivered")
	logger.Infof("Notification %s delivered to member %d", job.Kind, job.MemberID)
}

func (s *Service) deliver(ctx context.Context, job Job) error {
	m, err := s.memberRepo.FindByID(ctx, job.MemberID)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	subject, body := render(job.Kind, m.Name, job.Payload)
	return s.sendMail(m.Email, subject, body)
}

func render(kind Kind, name string, payload map[string]interface{}) (subject, body string) {
	sessionName, _ := payload["session_name"].(string)

	switch kind {
	case KindBookingConfirmed:
		subject = fmt.Sprintf("Booking confirmed: %s", sessionName)
		body = fmt.Sprintf("Hi %s,\n\nYour spot in %s is confirmed. See you in class!", name, sessionName)
	case KindWaitlistPromoted:
		subject = fmt.Sprintf("You're in: %s", sessionName)
		body = fmt.Sprintf("Hi %s,\n\nA spot opened up in %s and you have been moved off the waitlist. See you there!", name, sessionName)
	case KindSessionCancelled:
		reason, _ := payload["reason"].(string)
		subject = fmt.Sprintf("Class cancelled: %s", sessionName)
		body = fmt.Sprintf("Hi %s,\n\nUnfortunately %s has been cancelled. Reason: %s.\nAny used credit has been returned.", name, sessionName, reason)
	case KindCheckInConfirmed:
		subject = fmt.Sprintf("Checked in: %s", sessionName)
		body = fmt.Sprintf("Hi %s,\n\nYou're checked in for %s. Enjoy the class!", name, sessionName)
	default:
		subject = "StudioFit notification"
		body = fmt.Sprintf("Hi %s,\n\nYou have a new notification.", name)
	}

	return subject, body
}

func (s *Service) sendMail(to, subject, body string) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", to)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += "\r\n" + body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
}

func (s *Service) saveFailed(job Job, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedKey, data)
	logger.Errorf("Notification moved to failed queue: %s for member %d", job.Kind, job.MemberID)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.NotificationQueueLength.Set(float64(length))
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}
