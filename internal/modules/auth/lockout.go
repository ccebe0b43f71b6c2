package auth

import (
	"context"
	"time"

	"devlog/internal/domain"
)

const (
	maxFailedLoginAttempts = 5
	lockoutDuration        = 30 * time.Minute
)

// LockoutPolicy keeps the failed-login counter and lock window on the member
// row. The lock check runs after identity lookup and before the password
// comparison is trusted, so a locked account never leaks whether the password
// would have matched.
type LockoutPolicy struct {
	members MemberRepositoryInterface
}

func NewLockoutPolicy(members MemberRepositoryInterface) *LockoutPolicy {
	return &LockoutPolicy{members: members}
}

func (p *LockoutPolicy) CheckLocked(m *domain.Member) error {
	if m.IsLocked(time.Now()) {
		return ErrAccountLocked
	}
	return nil
}

// RecordFailure increments the counter and, at the threshold, opens the lock
// window. The crossing attempt itself reports ErrAccountLocked; earlier
// failures leave the caller to answer with ErrInvalidCredentials.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, m *domain.Member) error {
	failed := m.FailedLoginCount + 1
	var lockedUntil *time.Time
	if m.LockedUntil != nil {
		lockedUntil = m.LockedUntil
	}
	if failed >= maxFailedLoginAttempts {
		until := time.Now().Add(lockoutDuration)
		lockedUntil = &until
	}

	if err := p.members.UpdateLockoutState(ctx, m.ID, failed, lockedUntil, m.LastLoginAt); err != nil {
		return err
	}

	if failed >= maxFailedLoginAttempts {
		return ErrAccountLocked
	}
	return nil
}

func (p *LockoutPolicy) RecordSuccess(ctx context.Context, m *domain.Member) error {
	now := time.Now()
	return p.members.UpdateLockoutState(ctx, m.ID, 0, nil, &now)
}
