package auth

import (
	"errors"
	"net/http"

	"devlog/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler exposes the auth flows over HTTP. It stays thin: bind, call the
// service, map the error. All policy lives in the service.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(v1 *gin.RouterGroup) {
	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/verify-email", h.VerifyEmail)
		authGroup.POST("/verify-email/resend", h.ResendVerification)
		authGroup.POST("/password-reset/request", h.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", h.ConfirmPasswordReset)
	}
}

func (h *Handler) RegisterProtectedRoutes(protected *gin.RouterGroup) {
	authGroup := protected.Group("/auth")
	{
		authGroup.POST("/logout", h.Logout)
		authGroup.POST("/logout-all", h.LogoutAll)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	member, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "This email is already registered")
			return
		}
		response.Error(c, http.StatusInternalServerError, "REGISTRATION_FAILED", "Failed to register")
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"member": MemberPublic{
			ID:       member.ExternalID,
			Nickname: member.Nickname,
			Role:     string(member.Role),
			Status:   string(member.Status),
		},
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	result, err := h.service.Login(c.Request.Context(), req, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		case errors.Is(err, ErrAccountLocked):
			response.Error(c, http.StatusLocked, "ACCOUNT_LOCKED", "Too many failed attempts, try again later")
		case errors.Is(err, ErrEmailNotVerified):
			response.Error(c, http.StatusForbidden, "EMAIL_NOT_VERIFIED", "Verify your email first")
		case errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is not active")
		case errors.Is(err, ErrSocialLoginRequired):
			response.Error(c, http.StatusConflict, "SOCIAL_LOGIN_REQUIRED", "Use your social provider to sign in")
		default:
			response.Error(c, http.StatusInternalServerError, "LOGIN_FAILED", "Failed to log in")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"member": MemberPublic{
			ID:       result.Member.ExternalID,
			Email:    result.Email,
			Nickname: result.Member.Nickname,
			Role:     string(result.Member.Role),
			Status:   string(result.Member.Status),
		},
		"tokens": TokenResponse{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
		},
	})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			response.Error(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Refresh token expired, log in again")
		case errors.Is(err, ErrSessionRevoked):
			response.Error(c, http.StatusUnauthorized, "SESSION_REVOKED", "Session revoked, log in again")
		case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrTokenOwnership):
			response.Error(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token")
		case errors.Is(err, ErrEmailNotVerified), errors.Is(err, ErrAccountDisabled):
			response.Error(c, http.StatusForbidden, "ACCOUNT_NOT_ACTIVE", "Account is not active")
		default:
			response.Error(c, http.StatusInternalServerError, "REFRESH_FAILED", "Failed to refresh session")
		}
		return
	}

	response.Success(c, http.StatusOK, TokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	callerID := c.GetString("external_id")
	if err := h.service.Logout(c.Request.Context(), req.RefreshToken, callerID); err != nil {
		if errors.Is(err, ErrTokenOwnership) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Token belongs to another member")
			return
		}
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

func (h *Handler) LogoutAll(c *gin.Context) {
	callerID := c.GetString("external_id")
	if err := h.service.LogoutAll(c.Request.Context(), callerID); err != nil {
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to log out everywhere")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logged_out": true})
}

// ForceLogoutAll lets an admin invalidate every session of another member.
// Routed behind RequireRole("admin").
func (h *Handler) ForceLogoutAll(c *gin.Context) {
	memberID := c.Param("id")
	if err := h.service.ForceLogoutAll(c.Request.Context(), memberID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Member not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "LOGOUT_FAILED", "Failed to revoke sessions")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			response.Error(c, http.StatusGone, "TOKEN_EXPIRED", "Token expired, a new verification email was sent")
		case errors.Is(err, ErrAlreadyVerified):
			response.Error(c, http.StatusConflict, "ALREADY_VERIFIED", "Email is already verified")
		case errors.Is(err, ErrInvalidToken):
			response.Error(c, http.StatusBadRequest, "INVALID_TOKEN", "Unknown verification token")
		default:
			response.Error(c, http.StatusInternalServerError, "VERIFY_FAILED", "Failed to verify email")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"verified": true})
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := h.service.ResendVerification(c.Request.Context(), req.Email); err != nil {
		response.Error(c, http.StatusInternalServerError, "RESEND_FAILED", "Failed to resend verification email")
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		switch {
		case errors.Is(err, ErrResetAlreadyPending):
			response.Error(c, http.StatusConflict, "RESET_PENDING", "A reset email was already sent")
		case errors.Is(err, ErrSocialLoginRequired):
			response.Error(c, http.StatusConflict, "SOCIAL_LOGIN_REQUIRED", "This account uses social login")
		default:
			response.Error(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to request password reset")
		}
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	err := h.service.ConsumePasswordReset(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenExpired):
			response.Error(c, http.StatusGone, "TOKEN_EXPIRED", "Reset token expired, request a new one")
		case errors.Is(err, ErrInvalidToken):
			response.Error(c, http.StatusBadRequest, "INVALID_TOKEN", "Unknown or consumed reset token")
		default:
			response.Error(c, http.StatusInternalServerError, "RESET_FAILED", "Failed to reset password")
		}
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true})
}
