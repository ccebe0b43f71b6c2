package auth

import (
	"context"
	"time"

	"devlog/internal/domain"
	"devlog/internal/repository"
)

// MemberRepositoryInterface covers only the member-record methods the auth
// flows need from the member-management side.
type MemberRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Member) error
	GetByID(ctx context.Context, id int64) (*domain.Member, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Member, error)
	GetByLookupHash(ctx context.Context, hash string) (*domain.Member, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.Member, error)
	GetByResetToken(ctx context.Context, token string) (*domain.Member, error)
	ExistsByLookupHash(ctx context.Context, hash string) (bool, error)
	ReadTokenVersion(ctx context.Context, id int64) (int, error)
	IncrementTokenVersion(ctx context.Context, id int64) error
	UpdateLockoutState(ctx context.Context, id int64, failedCount int, lockedUntil, lastLoginAt *time.Time) error
	UpdateCredentials(ctx context.Context, id int64, resetToken, passwordHash string) error
	SetVerificationToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id int64) error
	SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error
}

// SessionRepositoryInterface is the refresh-token storage and rotation surface.
type SessionRepositoryInterface interface {
	Issue(ctx context.Context, memberID int64, keepAlive bool, ttl time.Duration, deviceInfo, ipAddress *string, mint repository.MintFunc) (*domain.Session, string, error)
	Rotate(ctx context.Context, tokenHash string, ttl func(keepAlive bool) time.Duration, validate repository.ValidateFunc, mint repository.MintFunc) (*domain.Session, string, error)
	GetByHash(ctx context.Context, tokenHash string) (*domain.Session, error)
	Revoke(ctx context.Context, tokenHash string, reason domain.RevokeReason) (bool, error)
	RevokeAllForMember(ctx context.Context, memberID int64, reason domain.RevokeReason) (int64, error)
}
