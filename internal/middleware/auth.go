package middleware

import (
	"context"
	"net/http"
	"strings"

	"devlog/internal/domain"
	jwtsvc "devlog/internal/pkg/jwt"
	"devlog/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// MemberResolver loads the live member record for the token subject. The
// token-version comparison below needs the current row, not the claims copy.
type MemberResolver interface {
	GetByExternalID(ctx context.Context, externalID string) (*domain.Member, error)
}

// RequireAuth validates the bearer access token and cross-checks the
// member's live token version. A cryptographically valid, unexpired token
// whose version no longer matches is treated exactly like no token at all:
// a version bump is how password changes and logout-all revoke access
// tokens without touching the session table.
func RequireAuth(codec *jwtsvc.Service, members MemberResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		member, ok := resolveMember(c, codec, members)
		if !ok {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			c.Abort()
			return
		}
		attachMember(c, member)
		c.Next()
	}
}

// OptionalAuth resolves the member when a valid token is present and
// proceeds anonymously on any failure. Handlers check for "member_id".
func OptionalAuth(codec *jwtsvc.Service, members MemberResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if member, ok := resolveMember(c, codec, members); ok {
			attachMember(c, member)
		}
		c.Next()
	}
}

func resolveMember(c *gin.Context, codec *jwtsvc.Service, members MemberResolver) (*domain.Member, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}

	claims, err := codec.Decode(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, false
	}

	member, err := members.GetByExternalID(c.Request.Context(), claims.Subject)
	if err != nil {
		// Lookup trouble fails closed; an ambiguous identity is no identity.
		return nil, false
	}

	if claims.TokenVersion != member.TokenVersion {
		return nil, false
	}
	if member.Status != domain.StatusActive {
		return nil, false
	}

	return member, true
}

func attachMember(c *gin.Context, m *domain.Member) {
	c.Set("member_id", m.ID)
	c.Set("external_id", m.ExternalID)
	c.Set("role", string(m.Role))
}
