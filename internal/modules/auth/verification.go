package auth

import (
	"context"
	"errors"
	"log"
	"time"

	"devlog/internal/domain"

	"gorm.io/gorm"
)

// VerifyEmail consumes an email-verification token. An expired token is
// replaced and re-sent before the call fails, so the caller can tell the
// member a fresh mail is on the way.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	member, err := s.members.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if member.Status == domain.StatusActive {
		// Active members must not carry a verification token; reaching this
		// branch means the clear-on-verify step was lost somewhere.
		log.Printf("verify: already-active member still holds token member=%s", member.ExternalID)
		return ErrAlreadyVerified
	}

	now := time.Now()
	if member.EmailVerificationExpiresAt == nil || !member.EmailVerificationExpiresAt.After(now) {
		email, decErr := s.vault.Decrypt(member.EmailEncrypted)
		if decErr != nil {
			return decErr
		}
		if issueErr := s.issueVerificationToken(ctx, member.ID, email); issueErr != nil {
			return issueErr
		}
		return ErrTokenExpired
	}

	return s.members.MarkVerified(ctx, member.ID)
}

// ResendVerification regenerates and re-sends the token for a still-pending
// member. Unknown emails are accepted silently.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	lookupHash, err := s.vault.LookupHash(email)
	if err != nil {
		return err
	}
	member, err := s.members.GetByLookupHash(ctx, lookupHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("verify/resend: email not found (masked)")
			return nil
		}
		return err
	}
	if member.Status != domain.StatusPendingVerification {
		log.Printf("verify/resend: member not pending member=%s", member.ExternalID)
		return nil
	}
	plain, err := s.vault.Decrypt(member.EmailEncrypted)
	if err != nil {
		return err
	}
	return s.issueVerificationToken(ctx, member.ID, plain)
}

func (s *Service) issueVerificationToken(ctx context.Context, memberID int64, email string) error {
	token, err := generateSecurityToken()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.verifyTokenTTL)
	if err := s.members.SetVerificationToken(ctx, memberID, token, expiresAt); err != nil {
		return err
	}
	return s.mailer.SendVerificationMail(ctx, email, token)
}
