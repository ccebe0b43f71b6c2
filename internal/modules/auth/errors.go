package auth

import (
	"errors"

	"devlog/internal/pkg/jwt"
)

var (
	// ErrInvalidCredentials deliberately covers both unknown email and wrong
	// password so callers can never enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrAccountDisabled     = errors.New("account disabled")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrSocialLoginRequired = errors.New("account uses social login")
	ErrEmailAlreadyExists  = errors.New("email already registered")

	ErrSessionRevoked      = errors.New("session revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrTokenOwnership      = errors.New("token does not match session owner")

	// Verification / reset token errors. ErrTokenExpired is shared with the
	// codec so the whole subsystem has one expiry sentinel.
	ErrInvalidToken        = errors.New("unknown or consumed token")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrResetAlreadyPending = errors.New("password reset already pending")

	ErrMemberNotFound = errors.New("member not found")
)

var (
	ErrTokenExpired = jwt.ErrTokenExpired
	ErrTokenInvalid = jwt.ErrTokenInvalid
)
