package repository

import (
	"context"
	"time"

	"devlog/internal/domain"

	"gorm.io/gorm"
)

// MemberRepository is the boundary onto the member-management tables that the
// auth subsystem reads and writes. Everything else about members (profiles,
// posts, withdrawal bookkeeping) belongs to other modules.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func (r *MemberRepository) Create(ctx context.Context, m *domain.Member) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByLookupHash is the only way login finds an account; there is no
// plaintext email column to search.
func (r *MemberRepository) GetByLookupHash(ctx context.Context, hash string) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Where("email_lookup_hash = ?", hash).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) GetByVerificationToken(ctx context.Context, token string) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Where("email_verification_token = ?", token).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) GetByResetToken(ctx context.Context, token string) (*domain.Member, error) {
	var m domain.Member
	if err := r.db.WithContext(ctx).Where("password_reset_token = ?", token).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) ExistsByLookupHash(ctx context.Context, hash string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("email_lookup_hash = ?", hash).
		Count(&count).Error
	return count > 0, err
}

func (r *MemberRepository) ReadTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.db.WithContext(ctx).Model(&domain.Member{}).
		Select("token_version").
		Where("id = ?", id).
		Scan(&version).Error
	return version, err
}

// IncrementTokenVersion is a single atomic UPDATE, never read-modify-write:
// concurrent bumps must each take effect.
func (r *MemberRepository) IncrementTokenVersion(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Update("token_version", gorm.Expr("token_version + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MemberRepository) UpdateLockoutState(ctx context.Context, id int64, failedCount int, lockedUntil, lastLoginAt *time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_count": failedCount,
			"locked_until":       lockedUntil,
			"last_login_at":      lastLoginAt,
		}).Error
}

// UpdateCredentials installs a new password hash, clears the in-flight reset
// token and bumps the token version, all in one statement so a concurrent
// consume cannot observe the new password with the old version. The WHERE
// clause re-checks the token: of two concurrent consumes exactly one matches
// the row, the other affects zero rows and reports gorm.ErrRecordNotFound.
func (r *MemberRepository) UpdateCredentials(ctx context.Context, id int64, resetToken, passwordHash string) error {
	res := r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ? AND password_reset_token = ?", id, resetToken).
		Updates(map[string]any{
			"password_hash":             passwordHash,
			"password_reset_token":      nil,
			"password_reset_expires_at": nil,
			"token_version":             gorm.Expr("token_version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *MemberRepository) SetVerificationToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"email_verification_token":      token,
			"email_verification_expires_at": expiresAt,
		}).Error
}

// MarkVerified flips the account active and clears the verification token,
// preserving the invariant that active members carry no verification state.
func (r *MemberRepository) MarkVerified(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":                        domain.StatusActive,
			"email_verification_token":      nil,
			"email_verification_expires_at": nil,
		}).Error
}

func (r *MemberRepository) SetResetToken(ctx context.Context, id int64, token string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.Member{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_reset_token":      token,
			"password_reset_expires_at": expiresAt,
		}).Error
}
