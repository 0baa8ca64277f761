package member

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"studiofit/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMemberRepo struct{ mock.Mock }

func (m *MockMemberRepo) Create(ctx context.Context, name, email, passwordHash, role string) (*Member, error) {
	args := m.Called(ctx, name, email, passwordHash, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockMemberRepo) FindByEmail(ctx context.Context, email string) (*Member, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockMemberRepo) FindByID(ctx context.Context, id int) (*Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Member), args.Error(1)
}

func (m *MockMemberRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberRepo) CreateMembership(ctx context.Context, memberID int, plan PlanType, visitLimit *int, validFrom, validUntil time.Time) (*Membership, error) {
	args := m.Called(ctx, memberID, plan, visitLimit, validFrom, validUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Membership), args.Error(1)
}

func (m *MockMemberRepo) GetActiveMembership(ctx context.Context, memberID int) (*Membership, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Membership), args.Error(1)
}

func (m *MockMemberRepo) ListMemberships(ctx context.Context, memberID int) ([]Membership, error) {
	args := m.Called(ctx, memberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Membership), args.Error(1)
}

func TestService_Register(t *testing.T) {
	repo := new(MockMemberRepo)

	repo.On("EmailExists", mock.Anything, "new@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, "New Member", "new@example.com", mock.Anything, "member").Return(&Member{
		ID:    1,
		Name:  "New Member",
		Email: "new@example.com",
		Role:  "member",
	}, nil)

	svc := NewService(repo, "test-secret")

	m, access, refresh, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "New Member",
		Email:    "new@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	repo.AssertExpectations(t)
}

func TestService_Register_EmailTaken(t *testing.T) {
	repo := new(MockMemberRepo)
	repo.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)

	svc := NewService(repo, "test-secret")

	_, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Someone",
		Email:    "taken@example.com",
		Password: "password123",
	})
	require.ErrorIs(t, err, ErrEmailExists)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Login(t *testing.T) {
	hash, err := auth.HashPassword("correct-password")
	require.NoError(t, err)

	repo := new(MockMemberRepo)
	repo.On("FindByEmail", mock.Anything, "m@example.com").Return(&Member{
		ID:           1,
		Email:        "m@example.com",
		PasswordHash: hash,
		Role:         "member",
	}, nil)

	svc := NewService(repo, "test-secret")

	m, access, _, err := svc.Login(context.Background(), LoginRequest{
		Email:    "m@example.com",
		Password: "correct-password",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID)
	assert.NotEmpty(t, access)

	_, _, _, err = svc.Login(context.Background(), LoginRequest{
		Email:    "m@example.com",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_PurchaseMembership(t *testing.T) {
	repo := new(MockMemberRepo)

	limit := 10
	repo.On("CreateMembership", mock.Anything, 1, PlanClassPack, mock.Anything, mock.Anything, mock.Anything).Return(&Membership{
		ID:         5,
		MemberID:   1,
		Plan:       PlanClassPack,
		Status:     MembershipActive,
		VisitLimit: &limit,
	}, nil)

	svc := NewService(repo, "test-secret")

	ms, err := svc.PurchaseMembership(context.Background(), 1, PurchaseMembershipRequest{Plan: "class_pack"})
	require.NoError(t, err)
	assert.Equal(t, PlanClassPack, ms.Plan)

	_, err = svc.PurchaseMembership(context.Background(), 1, PurchaseMembershipRequest{Plan: "gold"})
	require.ErrorIs(t, err, ErrUnknownPlan)
}

func TestService_HasBookingEligibility(t *testing.T) {
	limit := 10

	tests := []struct {
		name       string
		membership *Membership
		repoErr    error
		eligible   bool
		reason     string
	}{
		{
			name:       "credits remaining",
			membership: &Membership{VisitLimit: &limit, VisitsUsed: 3},
			eligible:   true,
		},
		{
			name:       "unlimited plan",
			membership: &Membership{VisitLimit: nil, VisitsUsed: 100},
			eligible:   true,
		},
		{
			name:       "no credits left",
			membership: &Membership{VisitLimit: &limit, VisitsUsed: 10},
			eligible:   false,
			reason:     ReasonNoCreditsRemaining,
		},
		{
			name:     "no membership",
			repoErr:  sql.ErrNoRows,
			eligible: false,
			reason:   ReasonNoValidMembership,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMemberRepo)
			if tt.repoErr != nil {
				repo.On("GetActiveMembership", mock.Anything, 1).Return(nil, tt.repoErr)
			} else {
				repo.On("GetActiveMembership", mock.Anything, 1).Return(tt.membership, nil)
			}

			svc := NewService(repo, "test-secret")

			eligible, reason, err := svc.HasBookingEligibility(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, eligible)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestPlans(t *testing.T) {
	plans := Plans()
	require.Len(t, plans, 3)

	byType := map[PlanType]Plan{}
	for _, p := range plans {
		byType[p.Type] = p
	}

	require.NotNil(t, byType[PlanClassPack].VisitLimit)
	assert.Equal(t, 10, *byType[PlanClassPack].VisitLimit)
	require.NotNil(t, byType[PlanStandard].VisitLimit)
	assert.Equal(t, 8, *byType[PlanStandard].VisitLimit)
	assert.Nil(t, byType[PlanUnlimitedPro].VisitLimit)
}
