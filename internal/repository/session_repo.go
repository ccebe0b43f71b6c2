package repository

import (
	"context"
	"time"

	"devlog/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MintFunc signs a refresh token for the member as seen inside the issuing
// transaction, so the embedded token version can never be stale. It returns
// the raw token for the client and the storage hash.
type MintFunc func(m *domain.Member) (raw string, hash string, err error)

// ValidateFunc runs the caller's policy checks on a locked session and its
// owning member before rotation. Returning an error aborts the transaction.
type ValidateFunc func(m *domain.Member, s *domain.Session) error

// SessionRepository owns the sessions table and the rotation algorithm:
// revoke-all-then-insert-one inside a single transaction, keeping at most one
// active session per member.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Issue creates a fresh session for the member, atomically revoking every
// prior active one.
//
// The member row is re-read (and locked, on postgres) inside the transaction
// so the token version snapshot cannot race a concurrent password change. The
// revoke step is a single set-based UPDATE, not a per-row loop, so two
// concurrent issuances cannot lose each other's revocations.
func (r *SessionRepository) Issue(ctx context.Context, memberID int64, keepAlive bool, ttl time.Duration, deviceInfo, ipAddress *string, mint MintFunc) (*domain.Session, string, error) {
	var (
		session domain.Session
		raw     string
	)
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var member domain.Member
		if err := lockForUpdate(tx).First(&member, memberID).Error; err != nil {
			return err
		}

		raw2, hash, err := mint(&member)
		if err != nil {
			return err
		}
		raw = raw2

		if err := revokeActive(tx, member.ID, domain.RevokeSuperseded, now); err != nil {
			return err
		}

		session = domain.Session{
			MemberID:            member.ID,
			TokenHash:           hash,
			TokenVersionAtIssue: member.TokenVersion,
			KeepAlive:           keepAlive,
			ExpiresAt:           now.Add(ttl),
			DeviceInfo:          deviceInfo,
			IPAddress:           ipAddress,
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, "", err
	}
	return &session, raw, nil
}

// Rotate consumes the session identified by tokenHash and replaces it, same
// algorithm as Issue. The session row is locked first, so of two concurrent
// refresh calls with the same token exactly one observes it unrevoked; the
// loser sees the superseded row and fails in validate.
func (r *SessionRepository) Rotate(ctx context.Context, tokenHash string, ttl func(keepAlive bool) time.Duration, validate ValidateFunc, mint MintFunc) (*domain.Session, string, error) {
	var (
		session domain.Session
		raw     string
	)
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.Session
		if err := lockForUpdate(tx).Where("token_hash = ?", tokenHash).First(&current).Error; err != nil {
			return err
		}

		var member domain.Member
		if err := lockForUpdate(tx).First(&member, current.MemberID).Error; err != nil {
			return err
		}

		if err := validate(&member, &current); err != nil {
			return err
		}

		rawToken, hash, err := mint(&member)
		if err != nil {
			return err
		}
		raw = rawToken

		if err := revokeActive(tx, member.ID, domain.RevokeSuperseded, now); err != nil {
			return err
		}

		session = domain.Session{
			MemberID:            member.ID,
			TokenHash:           hash,
			TokenVersionAtIssue: member.TokenVersion,
			KeepAlive:           current.KeepAlive,
			ExpiresAt:           now.Add(ttl(current.KeepAlive)),
			DeviceInfo:          current.DeviceInfo,
			IPAddress:           current.IPAddress,
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, "", err
	}
	return &session, raw, nil
}

func (r *SessionRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var s domain.Session
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// Revoke flips one session to revoked. Already-revoked or missing sessions
// report false with no error; logout treats that as idempotent success.
func (r *SessionRepository) Revoke(ctx context.Context, tokenHash string, reason domain.RevokeReason) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("token_hash = ? AND revoked = ?", tokenHash, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RevokeAllForMember bulk-revokes every active session. Callers handling a
// security event must pair this with a token-version bump on the member.
func (r *SessionRepository) RevokeAllForMember(ctx context.Context, memberID int64, reason domain.RevokeReason) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("member_id = ? AND revoked = ?", memberID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) CountActiveForMember(ctx context.Context, memberID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("member_id = ? AND revoked = ?", memberID, false).
		Count(&count).Error
	return count, err
}

// DeleteStale purges sessions past expiry and sessions revoked longer than
// the retention window ago. Run by cmd/auth_cleanup, never by request flow.
func (r *SessionRepository) DeleteStale(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Or("revoked = ? AND revoked_at < ?", true, now.Add(-retention)).
		Delete(&domain.Session{})
	return res.RowsAffected, res.Error
}

func revokeActive(tx *gorm.DB, memberID int64, reason domain.RevokeReason, now time.Time) error {
	return tx.Model(&domain.Session{}).
		Where("member_id = ? AND revoked = ?", memberID, false).
		Updates(map[string]any{
			"revoked":        true,
			"revoked_at":     now,
			"revoked_reason": reason,
		}).Error
}

// lockForUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
// sqlite serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
