package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"devlog/internal/domain"

	"gorm.io/gorm"
)

// RequestPasswordReset issues a single-use reset token. At most one unexpired
// token may be in flight per member; a second request fails rather than
// invalidating the first, which would let anyone spam a member out of their
// own reset mail.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	lookupHash, err := s.vault.LookupHash(email)
	if err != nil {
		return err
	}

	member, err := s.members.GetByLookupHash(ctx, lookupHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("reset/request: email not found (masked)")
			return nil
		}
		return err
	}

	if !member.CanPasswordLogin() {
		return ErrSocialLoginRequired
	}
	if member.HasPendingReset(time.Now()) {
		return ErrResetAlreadyPending
	}

	token, err := generateSecurityToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.resetTokenTTL)
	if err := s.members.SetResetToken(ctx, member.ID, token, expiresAt); err != nil {
		return err
	}

	plain, err := s.vault.Decrypt(member.EmailEncrypted)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordResetMail(ctx, plain, token)
}

// ConsumePasswordReset installs the new password, clears the token and bumps
// the member's token version; a completed reset forces re-login everywhere.
// The version bump happens at consumption, not request time, so an abandoned
// reset request never kills live sessions.
func (s *Service) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	member, err := s.members.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if member.PasswordResetExpiresAt == nil || !member.PasswordResetExpiresAt.After(time.Now()) {
		return ErrTokenExpired
	}

	passwordHash, err := s.vault.HashPassword(newPassword)
	if err != nil {
		return err
	}

	// One conditional UPDATE: new hash, token cleared, version bumped, guarded
	// on the token still being present. A concurrent consume of the same token
	// loses the guard and fails here instead of succeeding twice.
	if err := s.members.UpdateCredentials(ctx, member.ID, token, passwordHash); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	revoked, err := s.sessions.RevokeAllForMember(ctx, member.ID, domain.RevokePasswordChanged)
	if err != nil {
		return err
	}
	log.Printf("reset/consume member=%s sessions_revoked=%d", member.ExternalID, revoked)
	return nil
}
