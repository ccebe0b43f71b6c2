package domain

import "time"

type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

type MemberStatus string

const (
	StatusPendingVerification MemberStatus = "pending_verification"
	StatusActive              MemberStatus = "active"
	StatusSuspended           MemberStatus = "suspended"
	StatusDormant             MemberStatus = "dormant"
	StatusBlocked             MemberStatus = "blocked"
	StatusWithdrawing         MemberStatus = "withdrawing"
)

type AuthProvider string

const (
	ProviderLocal  AuthProvider = "local"
	ProviderGoogle AuthProvider = "google"
	ProviderKakao  AuthProvider = "kakao"
)

// Member is the durable account record.
//
// Privacy notes:
// - The plaintext email is never stored. EmailLookupHash is a deterministic
//   digest used as the only login search key; EmailEncrypted is reversible
//   ciphertext decrypted for display/notification only.
// - TokenVersion is the single authority for mass session invalidation: every
//   access or refresh token minted before the current value is dead, whatever
//   its expiry or revocation row says.
type Member struct {
	ID         int64  `json:"-" gorm:"primaryKey"`
	ExternalID string `json:"id" gorm:"size:36;uniqueIndex;not null"`

	EmailLookupHash string `json:"-" gorm:"column:email_lookup_hash;size:64;uniqueIndex;not null"`
	EmailEncrypted  string `json:"-" gorm:"column:email_encrypted;not null"`

	// Nil for federated accounts; those can never password-login.
	PasswordHash *string      `json:"-"`
	Provider     AuthProvider `json:"-" gorm:"size:16;not null;default:local"`

	Nickname string       `json:"nickname"`
	Role     MemberRole   `json:"role" gorm:"size:16;not null;default:member"`
	Status   MemberStatus `json:"status" gorm:"size:24;not null;default:pending_verification"`

	TokenVersion int `json:"-" gorm:"not null;default:1"`

	FailedLoginCount int        `json:"-" gorm:"not null;default:0"`
	LockedUntil      *time.Time `json:"-" gorm:"index"`
	LastLoginAt      *time.Time `json:"-"`

	EmailVerificationToken     *string    `json:"-" gorm:"size:64;index"`
	EmailVerificationExpiresAt *time.Time `json:"-"`

	PasswordResetToken     *string    `json:"-" gorm:"size:64;index"`
	PasswordResetExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Member) TableName() string { return "members" }

// CanPasswordLogin reports whether this account carries a local credential.
// Federated accounts (Google, Kakao) must go through their provider.
func (m *Member) CanPasswordLogin() bool {
	return m.Provider == ProviderLocal && m.PasswordHash != nil
}

func (m *Member) IsLocked(now time.Time) bool {
	return m.LockedUntil != nil && m.LockedUntil.After(now)
}

func (m *Member) HasPendingReset(now time.Time) bool {
	return m.PasswordResetToken != nil &&
		m.PasswordResetExpiresAt != nil &&
		m.PasswordResetExpiresAt.After(now)
}
