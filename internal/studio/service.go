package studio

import (
	"context"
	"errors"
	"time"

	"studiofit/internal/logger"
	"studiofit/internal/metrics"
	"studiofit/internal/notify"
)

var (
	ErrStudioNotFound  = errors.New("studio not found")
	ErrSessionNotFound = errors.New("class session not found")
	ErrSessionInvalid  = errors.New("invalid class session")
)

type Service interface {
	CreateStudio(ctx context.Context, req CreateStudioRequest) (*Studio, error)
	GetAllStudios(ctx context.Context) ([]Studio, error)
	GetStudioByID(ctx context.Context, id int) (*Studio, error)

	CreateSession(ctx context.Context, studioID int, req CreateSessionRequest) (*ClassSession, error)
	GetSessionByID(ctx context.Context, id int) (*ClassSession, error)
	GetSessions(ctx context.Context, studioID int, onlyUpcoming bool) ([]SessionWithAvailability, error)

	StartSession(ctx context.Context, sessionID int) error
	CompleteSession(ctx context.Context, sessionID int) error
	CancelSession(ctx context.Context, sessionID int, reason string) error
}

// Notifier is the post-commit notification edge. Dispatch failures are
// logged, never propagated.
type Notifier interface {
	Notify(ctx context.Context, memberID int, kind notify.Kind, payload map[string]interface{}) error
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
	}
}

func (s *service) CreateStudio(ctx context.Context, req CreateStudioRequest) (*Studio, error) {
	return s.repo.CreateStudio(ctx, req.Name, req.Location)
}

func (s *service) GetAllStudios(ctx context.Context) ([]Studio, error) {
	return s.repo.GetAllStudios(ctx)
}

func (s *service) GetStudioByID(ctx context.Context, id int) (*Studio, error) {
	studio, err := s.repo.GetStudioByID(ctx, id)
	if err != nil {
		return nil, ErrStudioNotFound
	}
	return studio, nil
}

func (s *service) CreateSession(ctx context.Context, studioID int, req CreateSessionRequest) (*ClassSession, error) {
	_, err := s.repo.GetStudioByID(ctx, studioID)
	if err != nil {
		return nil, ErrStudioNotFound
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	endsAt, err := time.Parse(time.RFC3339, req.EndsAt)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	if endsAt.Before(startsAt) || endsAt.Equal(startsAt) {
		return nil, ErrSessionInvalid
	}

	if req.Capacity <= 0 {
		return nil, ErrSessionInvalid
	}

	waitlistEnabled := true
	if req.WaitlistEnabled != nil {
		waitlistEnabled = *req.WaitlistEnabled
	}

	return s.repo.CreateSession(ctx, studioID, req.Name, req.Instructor, startsAt, endsAt, req.Capacity, waitlistEnabled)
}

func (s *service) GetSessionByID(ctx context.Context, id int) (*ClassSession, error) {
	session, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *service) GetSessions(ctx context.Context, studioID int, onlyUpcoming bool) ([]SessionWithAvailability, error) {
	_, err := s.repo.GetStudioByID(ctx, studioID)
	if err != nil {
		return nil, ErrStudioNotFound
	}

	return s.repo.GetSessions(ctx, studioID, onlyUpcoming)
}

func (s *service) StartSession(ctx context.Context, sessionID int) error {
	return s.repo.SetSessionStatus(ctx, sessionID, []SessionStatus{SessionScheduled}, SessionInProgress)
}

func (s *service) CompleteSession(ctx context.Context, sessionID int) error {
	return s.repo.SetSessionStatus(ctx, sessionID, []SessionStatus{SessionInProgress}, SessionCompleted)
}

func (s *service) CancelSession(ctx context.Context, sessionID int, reason string) error {
	session, err := s.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	cancelled, err := s.repo.CancelSession(ctx, sessionID, reason)
	if err != nil {
		return err
	}

	metrics.RecordSessionCancelled()

	// Notifications go out only after the transaction has committed.
	for _, cb := range cancelled {
		if err := s.notifier.Notify(ctx, cb.MemberID, notify.KindSessionCancelled, map[string]interface{}{
			"session_id":   sessionID,
			"session_name": session.Name,
			"starts_at":    session.StartsAt,
			"reason":       reason,
		}); err != nil {
			logger.Error("failed to queue session cancellation notification",
				"member_id", cb.MemberID, "session_id", sessionID, "error", err)
		}
	}

	return nil
}
