package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"devlog/internal/domain"
	"devlog/internal/pkg/jwt"
	"devlog/internal/pkg/vault"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const accessTokenTTL = 15 * time.Minute

// Service orchestrates credential verification, lockout, session issuance
// and the verification/reset token flows.
type Service struct {
	members  MemberRepositoryInterface
	sessions SessionRepositoryInterface
	vault    *vault.Vault
	codec    *jwt.Service
	lockout  *LockoutPolicy
	mailer   Mailer

	refreshTokenPepper  string
	refreshTTL          time.Duration
	refreshKeepAliveTTL time.Duration
	verifyTokenTTL      time.Duration
	resetTokenTTL       time.Duration
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type LoginResult struct {
	Member *domain.Member
	Email  string
	Tokens TokenPair
}

func NewService(
	members MemberRepositoryInterface,
	sessions SessionRepositoryInterface,
	v *vault.Vault,
	codec *jwt.Service,
	mailer Mailer,
	refreshTokenPepper string,
	refreshTTL time.Duration,
	refreshKeepAliveTTL time.Duration,
	verifyTokenTTL time.Duration,
	resetTokenTTL time.Duration,
) *Service {
	return &Service{
		members:             members,
		sessions:            sessions,
		vault:               v,
		codec:               codec,
		lockout:             NewLockoutPolicy(members),
		mailer:              mailer,
		refreshTokenPepper:  refreshTokenPepper,
		refreshTTL:          refreshTTL,
		refreshKeepAliveTTL: refreshKeepAliveTTL,
		verifyTokenTTL:      verifyTokenTTL,
		resetTokenTTL:       resetTokenTTL,
	}
}

// Register creates a local pending-verification member and sends the first
// verification token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.Member, error) {
	lookupHash, err := s.vault.LookupHash(req.Email)
	if err != nil {
		return nil, err
	}

	exists, err := s.members.ExistsByLookupHash(ctx, lookupHash)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	passwordHash, err := s.vault.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	encryptedEmail, err := s.vault.Encrypt(req.Email)
	if err != nil {
		return nil, err
	}

	member := &domain.Member{
		ExternalID:      uuid.NewString(),
		EmailLookupHash: lookupHash,
		EmailEncrypted:  encryptedEmail,
		PasswordHash:    &passwordHash,
		Provider:        domain.ProviderLocal,
		Nickname:        req.Nickname,
		Role:            domain.RoleMember,
		Status:          domain.StatusPendingVerification,
		TokenVersion:    1,
	}
	if err := s.members.Create(ctx, member); err != nil {
		return nil, err
	}

	if err := s.issueVerificationToken(ctx, member.ID, vault.NormalizeEmail(req.Email)); err != nil {
		return nil, err
	}
	return member, nil
}

// Login verifies credentials and issues a fresh access/refresh pair.
// Unknown email and wrong password collapse into the same error.
func (s *Service) Login(ctx context.Context, req LoginRequest, deviceInfo, ipAddress string) (*LoginResult, error) {
	lookupHash, err := s.vault.LookupHash(req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	member, err := s.members.GetByLookupHash(ctx, lookupHash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.lockout.CheckLocked(member); err != nil {
		return nil, err
	}
	if err := checkStatus(member); err != nil {
		return nil, err
	}
	if !member.CanPasswordLogin() {
		return nil, ErrSocialLoginRequired
	}

	if !s.vault.VerifyPassword(req.Password, *member.PasswordHash) {
		if recordErr := s.lockout.RecordFailure(ctx, member); recordErr != nil {
			return nil, recordErr
		}
		return nil, ErrInvalidCredentials
	}
	if err := s.lockout.RecordSuccess(ctx, member); err != nil {
		return nil, err
	}

	tokens, err := s.issueSessionTokens(ctx, member.ID, req.KeepAlive, deviceInfo, ipAddress)
	if err != nil {
		return nil, err
	}

	// Decrypted for the response only; it is never persisted in the clear.
	email, err := s.vault.Decrypt(member.EmailEncrypted)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Member: member, Email: email, Tokens: tokens}, nil
}

// Refresh rotates the presented refresh token. An old token that has already
// been superseded fails with ErrSessionRevoked; that is the replay signal.
func (s *Service) Refresh(ctx context.Context, refreshRaw string) (*TokenPair, error) {
	claims, err := s.codec.Decode(refreshRaw)
	if err != nil {
		return nil, err
	}

	hash := hashTokenWithPepper(refreshRaw, s.refreshTokenPepper)

	session, raw, err := s.sessions.Rotate(ctx, hash,
		s.refreshTTLFor,
		func(m *domain.Member, cur *domain.Session) error {
			if cur.Revoked {
				return ErrSessionRevoked
			}
			if cur.IsExpired(time.Now()) {
				return ErrInvalidRefreshToken
			}
			if cur.TokenVersionAtIssue != m.TokenVersion {
				return ErrSessionRevoked
			}
			if claims.Subject != m.ExternalID {
				return ErrTokenOwnership
			}
			return checkStatus(m)
		},
		s.mintRefresh(claims.KeepAlive),
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	member, err := s.members.GetByID(ctx, session.MemberID)
	if err != nil {
		return nil, err
	}
	access, err := s.codec.Issue(member.ExternalID, string(member.Role), session.TokenVersionAtIssue, session.KeepAlive, accessTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// Logout revokes the presented refresh token. Already-revoked and unknown
// tokens succeed; logout must be idempotent.
func (s *Service) Logout(ctx context.Context, refreshRaw, callerExternalID string) error {
	hash := hashTokenWithPepper(refreshRaw, s.refreshTokenPepper)

	session, err := s.sessions.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	owner, err := s.members.GetByID(ctx, session.MemberID)
	if err != nil {
		return err
	}
	if owner.ExternalID != callerExternalID {
		return ErrTokenOwnership
	}

	_, err = s.sessions.Revoke(ctx, hash, domain.RevokeUserLogout)
	return err
}

// LogoutAll invalidates every outstanding token for the caller. The version
// bump alone kills unexpired access tokens; the bulk revoke cleans up the
// session rows.
func (s *Service) LogoutAll(ctx context.Context, callerExternalID string) error {
	return s.invalidateAll(ctx, callerExternalID, domain.RevokeUserLogoutAll)
}

// ForceLogoutAll is the admin/security entrypoint for the same invalidation.
func (s *Service) ForceLogoutAll(ctx context.Context, externalID string) error {
	return s.invalidateAll(ctx, externalID, domain.RevokeAdminAction)
}

func (s *Service) invalidateAll(ctx context.Context, externalID string, reason domain.RevokeReason) error {
	member, err := s.members.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}

	if err := s.members.IncrementTokenVersion(ctx, member.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return err
	}

	revoked, err := s.sessions.RevokeAllForMember(ctx, member.ID, reason)
	if err != nil {
		return err
	}
	log.Printf("logout-all member=%s reason=%s sessions_revoked=%d", externalID, reason, revoked)
	return nil
}

func (s *Service) issueSessionTokens(ctx context.Context, memberID int64, keepAlive bool, deviceInfo, ipAddress string) (TokenPair, error) {
	session, raw, err := s.sessions.Issue(ctx, memberID, keepAlive, s.refreshTTLFor(keepAlive),
		nullableString(deviceInfo), nullableString(ipAddress), s.mintRefresh(keepAlive))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, ErrMemberNotFound
		}
		return TokenPair{}, err
	}

	member, err := s.members.GetByID(ctx, session.MemberID)
	if err != nil {
		return TokenPair{}, err
	}
	access, err := s.codec.Issue(member.ExternalID, string(member.Role), session.TokenVersionAtIssue, keepAlive, accessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// mintRefresh signs a refresh token against the member row as locked inside
// the issuing transaction, so the embedded version is authoritative.
func (s *Service) mintRefresh(keepAlive bool) func(m *domain.Member) (string, string, error) {
	return func(m *domain.Member) (string, string, error) {
		raw, err := s.codec.Issue(m.ExternalID, string(m.Role), m.TokenVersion, keepAlive, s.refreshTTLFor(keepAlive))
		if err != nil {
			return "", "", err
		}
		return raw, hashTokenWithPepper(raw, s.refreshTokenPepper), nil
	}
}

func (s *Service) refreshTTLFor(keepAlive bool) time.Duration {
	if keepAlive {
		return s.refreshKeepAliveTTL
	}
	return s.refreshTTL
}

func checkStatus(m *domain.Member) error {
	switch m.Status {
	case domain.StatusActive:
		return nil
	case domain.StatusPendingVerification:
		return ErrEmailNotVerified
	default:
		return ErrAccountDisabled
	}
}

func hashTokenWithPepper(raw, pepper string) string {
	sum := sha256.Sum256([]byte(raw + pepper))
	return hex.EncodeToString(sum[:])
}

func generateSecurityToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
