package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"devlog/internal/database"
	"devlog/internal/domain"
	jwtsvc "devlog/internal/pkg/jwt"
	"devlog/internal/pkg/vault"
	"devlog/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingMailer struct {
	mu           sync.Mutex
	verifyTokens []string
	resetTokens  []string
}

func (m *recordingMailer) SendVerificationMail(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifyTokens = append(m.verifyTokens, token)
	return nil
}

func (m *recordingMailer) SendPasswordResetMail(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTokens = append(m.resetTokens, token)
	return nil
}

func (m *recordingMailer) lastVerifyToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verifyTokens) == 0 {
		return ""
	}
	return m.verifyTokens[len(m.verifyTokens)-1]
}

func (m *recordingMailer) lastResetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetTokens) == 0 {
		return ""
	}
	return m.resetTokens[len(m.resetTokens)-1]
}

type testEnv struct {
	svc      *Service
	members  *repository.MemberRepository
	sessions *repository.SessionRepository
	vault    *vault.Vault
	codec    *jwtsvc.Service
	mailer   *recordingMailer
	db       *gorm.DB
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.Member{}, &domain.Session{}))

	v, err := vault.New("test-enc-key", "test-enc-salt", "test-lookup-pepper")
	require.NoError(t, err)

	members := repository.NewMemberRepository(db)
	sessions := repository.NewSessionRepository(db)
	codec := jwtsvc.New("test-jwt-secret")
	mailer := &recordingMailer{}

	svc := NewService(
		members, sessions, v, codec, mailer,
		"test-refresh-pepper",
		24*time.Hour,
		7*24*time.Hour,
		24*time.Hour,
		time.Hour,
	)
	return &testEnv{svc: svc, members: members, sessions: sessions, vault: v, codec: codec, mailer: mailer, db: db}
}

// registerActive creates a member and walks it through verification.
func registerActive(t *testing.T, env *testEnv, email, password string) *domain.Member {
	t.Helper()
	ctx := context.Background()

	member, err := env.svc.Register(ctx, RegisterRequest{Email: email, Password: password, Nickname: "tester"})
	require.NoError(t, err)
	require.NoError(t, env.svc.VerifyEmail(ctx, env.mailer.lastVerifyToken()))

	fresh, err := env.members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	return fresh
}

func seedSocialMember(t *testing.T, env *testEnv, email string) *domain.Member {
	t.Helper()
	hash, err := env.vault.LookupHash(email)
	require.NoError(t, err)
	enc, err := env.vault.Encrypt(email)
	require.NoError(t, err)

	m := &domain.Member{
		ExternalID:      "social-" + hash[:8],
		EmailLookupHash: hash,
		EmailEncrypted:  enc,
		Provider:        domain.ProviderGoogle,
		Nickname:        "social",
		Role:            domain.RoleMember,
		Status:          domain.StatusActive,
		TokenVersion:    1,
	}
	require.NoError(t, env.members.Create(context.Background(), m))
	return m
}

func TestRegister(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	member, err := env.svc.Register(ctx, RegisterRequest{
		Email:    "New.User@Example.com",
		Password: "password-123",
		Nickname: "newbie",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingVerification, member.Status)
	assert.NotEmpty(t, member.ExternalID)
	assert.NotEmpty(t, env.mailer.lastVerifyToken())

	// Stored representations never contain the plaintext address.
	assert.NotContains(t, member.EmailLookupHash, "example.com")
	assert.NotContains(t, member.EmailEncrypted, "example.com")

	// Same address, different case: still a duplicate.
	_, err = env.svc.Register(ctx, RegisterRequest{
		Email:    "new.user@example.com",
		Password: "password-456",
		Nickname: "other",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLogin_Success(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "User@Example.com ", Password: "password-123"}, "agent", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", result.Email)

	claims, err := env.codec.Decode(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, member.ExternalID, claims.Subject)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, 1, claims.TokenVersion)

	active, err := env.sessions.CountActiveForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	fresh, err := env.members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.NotNil(t, fresh.LastLoginAt)
}

func TestLogin_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	registerActive(t, env, "user@example.com", "password-123")

	_, errUnknown := env.svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: "whatever-123"}, "", "")
	_, errWrong := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "wrong-password"}, "", "")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
}

func TestLogin_LockoutAfterFiveFailures(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	for i := 0; i < 4; i++ {
		_, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "wrong"}, "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Fifth failure crosses the threshold.
	_, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "wrong"}, "", "")
	assert.ErrorIs(t, err, ErrAccountLocked)

	fresh, err := env.members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.LockedUntil)
	assert.True(t, fresh.LockedUntil.After(time.Now().Add(29*time.Minute)))

	// Even the correct password is rejected while locked.
	_, err = env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLogin_SuccessResetsFailureCounter(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	for i := 0; i < 3; i++ {
		_, _ = env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "wrong"}, "", "")
	}

	_, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)

	fresh, err := env.members.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.FailedLoginCount)
	assert.Nil(t, fresh.LockedUntil)
}

func TestLogin_SocialAccount(t *testing.T) {
	env := setupEnv(t)
	seedSocialMember(t, env, "social@example.com")

	_, err := env.svc.Login(context.Background(), LoginRequest{Email: "social@example.com", Password: "anything-123"}, "", "")
	assert.ErrorIs(t, err, ErrSocialLoginRequired)
}

func TestLogin_PendingVerification(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	_, err := env.svc.Register(ctx, RegisterRequest{Email: "pending@example.com", Password: "password-123", Nickname: "p"})
	require.NoError(t, err)

	_, err = env.svc.Login(ctx, LoginRequest{Email: "pending@example.com", Password: "password-123"}, "", "")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
}

func TestLogin_RotationKeepsOneActiveSession(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	for i := 0; i < 3; i++ {
		_, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
		require.NoError(t, err)
	}

	active, err := env.sessions.CountActiveForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}

func TestRefresh_RotatesAndDetectsReplay(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123", KeepAlive: true}, "", "")
	require.NoError(t, err)
	oldRefresh := result.Tokens.RefreshToken

	pair, err := env.svc.Refresh(ctx, oldRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, oldRefresh, pair.RefreshToken)

	// The consumed token is dead; presenting it again is the replay signal.
	_, err = env.svc.Refresh(ctx, oldRefresh)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	// The rotated token still works.
	_, err = env.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_ConcurrentSameTokenSingleWinner(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)
	refresh := result.Tokens.RefreshToken

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Refresh(ctx, refresh)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// The rotation transaction locks the session row first: one call consumes
	// the token, the other observes the superseded row and fails.
	var wins int
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrSessionRevoked)
	}
	assert.Equal(t, 1, wins, "exactly one rotation of the same token may succeed")

	active, err := env.sessions.CountActiveForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}

func TestRefresh_BadTokens(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	_, err := env.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// Well-signed token without a backing session row.
	orphan, err := env.codec.Issue(member.ExternalID, "member", 1, false, time.Hour)
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, orphan)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_TokenVersionBumpInvalidatesUnrevokedSession(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)

	// Version bump without touching the session rows: the session still reads
	// revoked=false, yet the snapshot no longer matches.
	require.NoError(t, env.members.IncrementTokenVersion(ctx, member.ID))

	_, err = env.svc.Refresh(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLogout(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)
	refresh := result.Tokens.RefreshToken

	err = env.svc.Logout(ctx, refresh, "someone-else")
	assert.ErrorIs(t, err, ErrTokenOwnership)

	require.NoError(t, env.svc.Logout(ctx, refresh, member.ExternalID))

	active, err := env.sessions.CountActiveForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, active)

	// Logging out twice, or with an unknown token, is idempotent success.
	require.NoError(t, env.svc.Logout(ctx, refresh, member.ExternalID))
	require.NoError(t, env.svc.Logout(ctx, "unknown-token", member.ExternalID))
}

func TestLogoutAll(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	result, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.LogoutAll(ctx, member.ExternalID))

	version, err := env.members.ReadTokenVersion(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	active, err := env.sessions.CountActiveForMember(ctx, member.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, active)

	_, err = env.svc.Refresh(ctx, result.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestForceLogoutAll_UnknownMember(t *testing.T) {
	env := setupEnv(t)
	err := env.svc.ForceLogoutAll(context.Background(), "no-such-member")
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestForceLogoutAll_RevokesWithAdminReason(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	member := registerActive(t, env, "user@example.com", "password-123")

	_, err := env.svc.Login(ctx, LoginRequest{Email: "user@example.com", Password: "password-123"}, "", "")
	require.NoError(t, err)

	require.NoError(t, env.svc.ForceLogoutAll(ctx, member.ExternalID))

	var s domain.Session
	require.NoError(t, env.db.Where("member_id = ?", member.ID).Order("id desc").First(&s).Error)
	assert.True(t, s.Revoked)
	require.NotNil(t, s.RevokedReason)
	assert.Equal(t, domain.RevokeAdminAction, *s.RevokedReason)
}
