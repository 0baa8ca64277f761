package member

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"studiofit/internal/auth"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownPlan        = errors.New("unknown membership plan")
)

// Eligibility reasons surfaced to the booking flow.
const (
	ReasonNoValidMembership  = "NO_VALID_MEMBERSHIP"
	ReasonNoCreditsRemaining = "NO_CREDITS_REMAINING"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Member, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*Member, string, string, error)
	GetByID(ctx context.Context, memberID int) (*Member, error)
	RefreshToken(ctx context.Context, refreshToken, jwtSecret string) (string, *Member, error)

	PurchaseMembership(ctx context.Context, memberID int, req PurchaseMembershipRequest) (*Membership, error)
	GetMemberships(ctx context.Context, memberID int) ([]Membership, error)

	// HasBookingEligibility reports whether the member may book a class right
	// now, with the rejection reason when not.
	HasBookingEligibility(ctx context.Context, memberID int) (bool, string, error)
}

type service struct {
	repo      Repository
	jwtSecret string
}

func NewService(repo Repository, jwtSecret string) Service {
	return &service{
		repo:      repo,
		jwtSecret: jwtSecret,
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Member, string, string, error) {
	exists, err := s.repo.EmailExists(ctx, req.Email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	m, err := s.repo.Create(ctx, req.Name, req.Email, passwordHash, "member")
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		m.ID,
		m.Email,
		m.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return m, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Member, string, string, error) {
	m, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(m.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(
		m.ID,
		m.Email,
		m.Role,
		s.jwtSecret,
		s.jwtSecret,
	)
	if err != nil {
		return nil, "", "", err
	}

	return m, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, memberID int) (*Member, error) {
	m, err := s.repo.FindByID(ctx, memberID)
	if err != nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

func (s *service) RefreshToken(ctx context.Context, refreshToken, jwtSecret string) (string, *Member, error) {
	newAccessToken, claims, err := auth.RefreshAccessToken(refreshToken, jwtSecret, jwtSecret)
	if err != nil {
		return "", nil, err
	}

	m, err := s.repo.FindByID(ctx, claims.MemberID)
	if err != nil {
		return "", nil, ErrMemberNotFound
	}

	return newAccessToken, m, nil
}

// Plan catalogue. Class packs carry a fixed credit budget, standard plans a
// monthly one, unlimited plans none.
type Plan struct {
	Type        PlanType `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	VisitLimit  *int     `json:"visit_limit,omitempty"`
	Months      int      `json:"months"`
}

func Plans() []Plan {
	packLimit := 10
	standardLimit := 8

	return []Plan{
		{
			Type:        PlanClassPack,
			Name:        "Class Pack",
			Description: "10 class credits, valid for three months",
			VisitLimit:  &packLimit,
			Months:      3,
		},
		{
			Type:        PlanStandard,
			Name:        "Standard",
			Description: "8 classes per month",
			VisitLimit:  &standardLimit,
			Months:      1,
		},
		{
			Type:        PlanUnlimitedPro,
			Name:        "Unlimited Pro",
			Description: "Unlimited classes for a month",
			VisitLimit:  nil,
			Months:      1,
		},
	}
}

func findPlan(planType string) (Plan, error) {
	for _, p := range Plans() {
		if string(p.Type) == planType {
			return p, nil
		}
	}
	return Plan{}, ErrUnknownPlan
}

func (s *service) PurchaseMembership(ctx context.Context, memberID int, req PurchaseMembershipRequest) (*Membership, error) {
	plan, err := findPlan(req.Plan)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return s.repo.CreateMembership(ctx, memberID, plan.Type, plan.VisitLimit, now, now.AddDate(0, plan.Months, 0))
}

func (s *service) GetMemberships(ctx context.Context, memberID int) ([]Membership, error) {
	return s.repo.ListMemberships(ctx, memberID)
}

func (s *service) HasBookingEligibility(ctx context.Context, memberID int) (bool, string, error) {
	m, err := s.repo.GetActiveMembership(ctx, memberID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ReasonNoValidMembership, nil
		}
		return false, "", err
	}

	if !m.HasCredits() {
		return false, ReasonNoCreditsRemaining, nil
	}

	return true, "", nil
}
