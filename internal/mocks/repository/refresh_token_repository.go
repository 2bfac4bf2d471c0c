// Package repository holds testify mocks of the repository ports for fault injection in tests.
package repository

import (
	"context"

	"forum/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockRefreshTokenRepository is a testify mock of repository.RefreshTokenRepository.
type MockRefreshTokenRepository struct {
	mock.Mock
}

// NewMockRefreshTokenRepository creates the mock and asserts its expectations when the test ends.
func NewMockRefreshTokenRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockRefreshTokenRepository {
	m := &MockRefreshTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *MockRefreshTokenRepository) Upsert(ctx context.Context, token *entity.RefreshToken) error {
	args := m.Called(ctx, token)

	return args.Error(0)
}

func (m *MockRefreshTokenRepository) Rotate(ctx context.Context, oldToken string, next *entity.RefreshToken) error {
	args := m.Called(ctx, oldToken, next)

	return args.Error(0)
}

func (m *MockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	args := m.Called(ctx, token)

	return refreshTokenArg(args, 0), args.Error(1)
}

func (m *MockRefreshTokenRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.RefreshToken, error) {
	args := m.Called(ctx, accountID)

	return refreshTokenArg(args, 0), args.Error(1)
}

func (m *MockRefreshTokenRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	args := m.Called(ctx, accountID)

	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteByToken(ctx context.Context, accountID uuid.UUID, token string) error {
	args := m.Called(ctx, accountID, token)

	return args.Error(0)
}

func (m *MockRefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

func refreshTokenArg(args mock.Arguments, index int) *entity.RefreshToken {
	if token, ok := args.Get(index).(*entity.RefreshToken); ok {
		return token
	}

	return nil
}
