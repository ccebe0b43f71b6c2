package domain

import "time"

type RevokeReason string

const (
	RevokeUserLogout      RevokeReason = "user_logout"
	RevokeUserLogoutAll   RevokeReason = "user_logout_all"
	RevokeSuperseded      RevokeReason = "superseded_by_new_token"
	RevokeExpired         RevokeReason = "expired"
	RevokeSecurityConcern RevokeReason = "security_concern"
	RevokePasswordChanged RevokeReason = "password_changed"
	RevokeAdminAction     RevokeReason = "admin_action"
)

// Session is one refresh-token record, one logical login instance.
//
// Security notes:
// - We never store the raw refresh token, only its SHA-256 hash (TokenHash).
// - Rotation: every login/refresh revokes all prior active sessions for the
//   member and inserts exactly one replacement, so at most one row per member
//   has Revoked=false at any instant.
// - TokenVersionAtIssue snapshots Member.TokenVersion at mint time; a version
//   bump on the member invalidates the session before any row is touched.
type Session struct {
	ID int64 `json:"id" gorm:"primaryKey"`

	MemberID int64  `json:"member_id" gorm:"index;not null"`
	Member   Member `json:"-" gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE"`

	TokenHash string `json:"-" gorm:"size:64;uniqueIndex;not null"`

	TokenVersionAtIssue int  `json:"-" gorm:"not null"`
	KeepAlive           bool `json:"keep_alive" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index;not null"`

	Revoked       bool          `json:"revoked" gorm:"index;not null;default:false"`
	RevokedAt     *time.Time    `json:"revoked_at"`
	RevokedReason *RevokeReason `json:"revoked_reason" gorm:"size:32"`

	DeviceInfo *string `json:"-"`
	IPAddress  *string `json:"-"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Usable reports whether the session may still be presented for refresh.
// The token-version comparison is the caller's job; it needs the live member row.
func (s *Session) Usable(now time.Time) bool {
	return !s.Revoked && !s.IsExpired(now)
}
