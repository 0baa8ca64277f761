package booking

import (
	"context"
	"errors"
	"time"

	"studiofit/internal/logger"
	"studiofit/internal/metrics"
	"studiofit/internal/notify"
	"studiofit/internal/studio"
)

var (
	ErrForbidden     = errors.New("members can only cancel their own bookings")
	ErrInvalidQRCode = errors.New("invalid QR code")
)

type Service interface {
	// CheckEligibility is the advisory read-only pre-check. The booking
	// transaction re-validates all of it under the session lock.
	CheckEligibility(ctx context.Context, memberID, sessionID int) (*Eligibility, error)

	CreateBooking(ctx context.Context, memberID, sessionID int) (*Booking, error)
	CancelBooking(ctx context.Context, memberID, bookingID int) (*CancelResult, error)

	CheckIn(ctx context.Context, bookingID int) (*Booking, error)
	CheckInWithQR(ctx context.Context, token string) (*Booking, error)
	MarkNoShow(ctx context.Context, bookingID int) (*Booking, error)

	PromoteFromWaitlist(ctx context.Context, sessionID, bookingID int) (*Booking, error)

	GetRoster(ctx context.Context, sessionID int) ([]RosterEntry, error)
	GetWaitlist(ctx context.Context, sessionID int) ([]WaitlistEntry, error)
	GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithSession, error)

	// IssueCheckInToken mints a QR token for the member's booked session.
	IssueCheckInToken(ctx context.Context, memberID, sessionID int) (string, error)
}

// SessionRepository is the slice of the studio repository this service reads.
type SessionRepository interface {
	GetSessionByID(ctx context.Context, id int) (*studio.ClassSession, error)
}

// EligibilityChecker is the membership/credit collaborator.
type EligibilityChecker interface {
	HasBookingEligibility(ctx context.Context, memberID int) (bool, string, error)
}

// TokenResolver maps QR tokens to and from (member, session) pairs.
type TokenResolver interface {
	Mint(memberID, sessionID int) (string, error)
	Resolve(token string) (memberID, sessionID int, err error)
}

// Notifier dispatches fire-and-forget notifications after commit.
type Notifier interface {
	Notify(ctx context.Context, memberID int, kind notify.Kind, payload map[string]interface{}) error
}

type service struct {
	repo        Repository
	sessionRepo SessionRepository
	eligibility EligibilityChecker
	tokens      TokenResolver
	notifier    Notifier
	cutoff      time.Duration
}

func NewService(
	repo Repository,
	sessionRepo SessionRepository,
	eligibility EligibilityChecker,
	tokens TokenResolver,
	notifier Notifier,
	cutoff time.Duration,
) Service {
	return &service{
		repo:        repo,
		sessionRepo: sessionRepo,
		eligibility: eligibility,
		tokens:      tokens,
		notifier:    notifier,
		cutoff:      cutoff,
	}
}

const (
	ReasonAlreadyBooked       = "ALREADY_BOOKED"
	ReasonSessionClosed       = "SESSION_CLOSED"
	ReasonSessionFullRaceLost = "SESSION_FULL_RACE_LOST"
)

func (s *service) CheckEligibility(ctx context.Context, memberID, sessionID int) (*Eligibility, error) {
	hasBooking, err := s.repo.HasActiveBooking(ctx, memberID, sessionID)
	if err != nil {
		return nil, err
	}
	if hasBooking {
		return &Eligibility{Eligible: false, Reason: ReasonAlreadyBooked}, nil
	}

	session, err := s.sessionRepo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != studio.SessionScheduled || !session.StartsAt.After(time.Now().Add(s.cutoff)) {
		return &Eligibility{Eligible: false, Reason: ReasonSessionClosed}, nil
	}

	eligible, reason, err := s.eligibility.HasBookingEligibility(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return &Eligibility{Eligible: false, Reason: reason}, nil
	}

	return &Eligibility{Eligible: true}, nil
}

func (s *service) CreateBooking(ctx context.Context, memberID, sessionID int) (*Booking, error) {
	b, err := s.repo.CreateBooking(ctx, memberID, sessionID, s.cutoff)
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking(string(b.Status))

	if b.Status == StatusBooked {
		s.notifyWithSession(ctx, b.MemberID, sessionID, notify.KindBookingConfirmed, nil)
	}

	return b, nil
}

func (s *service) CancelBooking(ctx context.Context, memberID, bookingID int) (*CancelResult, error) {
	b, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if b.MemberID != memberID {
		return nil, ErrForbidden
	}

	result, err := s.repo.CancelBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingCancellation()

	if result.Promoted != nil {
		metrics.RecordPromotion("auto")
		s.notifyWithSession(ctx, result.Promoted.MemberID, result.Promoted.SessionID, notify.KindWaitlistPromoted, nil)
	}

	return result, nil
}

func (s *service) CheckIn(ctx context.Context, bookingID int) (*Booking, error) {
	b, err := s.repo.CheckIn(ctx, bookingID, MethodManual)
	if err != nil {
		return nil, err
	}

	metrics.RecordCheckIn(string(MethodManual))
	s.notifyWithSession(ctx, b.MemberID, b.SessionID, notify.KindCheckInConfirmed, nil)

	return b, nil
}

func (s *service) CheckInWithQR(ctx context.Context, token string) (*Booking, error) {
	memberID, sessionID, err := s.tokens.Resolve(token)
	if err != nil {
		return nil, ErrInvalidQRCode
	}

	b, err := s.repo.FindBookedBySessionAndMember(ctx, memberID, sessionID)
	if err != nil {
		return nil, err
	}

	// Double scans resolve to the same checked-in record, no error.
	checkedIn, err := s.repo.CheckIn(ctx, b.ID, MethodQRScan)
	if err != nil {
		return nil, err
	}

	metrics.RecordCheckIn(string(MethodQRScan))
	s.notifyWithSession(ctx, checkedIn.MemberID, checkedIn.SessionID, notify.KindCheckInConfirmed, nil)

	return checkedIn, nil
}

func (s *service) MarkNoShow(ctx context.Context, bookingID int) (*Booking, error) {
	// No-show keeps the seat occupied: no counter change, no promotion.
	b, err := s.repo.MarkNoShow(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	metrics.RecordNoShow()

	return b, nil
}

func (s *service) PromoteFromWaitlist(ctx context.Context, sessionID, bookingID int) (*Booking, error) {
	b, err := s.repo.Promote(ctx, sessionID, bookingID)
	if err != nil {
		return nil, err
	}

	metrics.RecordPromotion("manual")
	s.notifyWithSession(ctx, b.MemberID, b.SessionID, notify.KindWaitlistPromoted, nil)

	return b, nil
}

func (s *service) GetRoster(ctx context.Context, sessionID int) ([]RosterEntry, error) {
	return s.repo.GetRoster(ctx, sessionID)
}

func (s *service) GetWaitlist(ctx context.Context, sessionID int) ([]WaitlistEntry, error) {
	return s.repo.GetWaitlist(ctx, sessionID)
}

func (s *service) GetMemberBookings(ctx context.Context, memberID int) ([]BookingWithSession, error) {
	return s.repo.GetMemberBookings(ctx, memberID)
}

func (s *service) IssueCheckInToken(ctx context.Context, memberID, sessionID int) (string, error) {
	if _, err := s.repo.FindBookedBySessionAndMember(ctx, memberID, sessionID); err != nil {
		return "", err
	}

	return s.tokens.Mint(memberID, sessionID)
}

// notifyWithSession decorates the payload with session details and queues
// the notification. Failures are logged only; dispatch never gates the
// operation that triggered it.
func (s *service) notifyWithSession(ctx context.Context, memberID, sessionID int, kind notify.Kind, payload map[string]interface{}) {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["session_id"] = sessionID

	if session, err := s.sessionRepo.GetSessionByID(ctx, sessionID); err == nil {
		payload["session_name"] = session.Name
		payload["starts_at"] = session.StartsAt
	}

	if err := s.notifier.Notify(ctx, memberID, kind, payload); err != nil {
		logger.Error("failed to queue notification",
			"kind", string(kind), "member_id", memberID, "session_id", sessionID, "error", err)
	}
}
