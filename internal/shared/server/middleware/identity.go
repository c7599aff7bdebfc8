package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/shared/auth"
	"resume-ats/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	userEmailKey = "userEmail"
	userNameKey  = "userName"
	isGuestKey   = "isGuest"

	// HeaderUserID carries an identity asserted by a trusted upstream gateway.
	HeaderUserID = "X-User-Id"
	// HeaderGuestID carries the browser-generated guest identity.
	HeaderGuestID = "X-Guest-Id"
)

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9._:@-]{1,128}$`)

// TokenVerifier validates bearer session tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Claims, error)
}

// IdentityConfig selects the identity sources the middleware accepts.
type IdentityConfig struct {
	// Tokens checks "Authorization: Bearer" session tokens. Nil disables them.
	Tokens TokenVerifier
	// TrustUserHeader accepts X-User-Id as asserted by an upstream gateway.
	// Header identities live under "hdr:" and never alias a token subject.
	TrustUserHeader bool
	// Public paths skip the check.
	Public []string
}

// Identity resolves guest callers from X-Guest-Id and stores them in context.
// Paths in public skip the check.
func Identity(public ...string) gin.HandlerFunc {
	return IdentityWith(IdentityConfig{Public: public})
}

// IdentityWith resolves the caller from a bearer session token, then a trusted
// X-User-Id, then X-Guest-Id. A presented token must be valid; there is no
// fallback to the identity headers.
func IdentityWith(cfg IdentityConfig) gin.HandlerFunc {
	tokens := cfg.Tokens
	open := make(map[string]struct{}, len(cfg.Public))
	for _, p := range cfg.Public {
		open[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}
		if _, ok := open[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" && tokens != nil {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			claims, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing or invalid token", nil)
				return
			}
			c.Set(userIDKey, "user:"+claims.Subject)
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			if claims.Name != "" {
				c.Set(userNameKey, claims.Name)
			}
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		if userID := strings.TrimSpace(c.GetHeader(HeaderUserID)); userID != "" && cfg.TrustUserHeader {
			if !identityPattern.MatchString(userID) {
				respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "invalid identity", nil)
				return
			}
			c.Set(userIDKey, "hdr:"+userID)
			c.Set(isGuestKey, false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader(HeaderGuestID))
		if guestID == "" || !identityPattern.MatchString(guestID) {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "missing identity", nil)
			return
		}
		c.Set(userIDKey, "guest:"+guestID)
		c.Set(isGuestKey, true)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by Identity.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// IsGuest reports whether the caller identified with a guest header.
func IsGuest(c *gin.Context) bool {
	if c == nil {
		return false
	}
	return c.GetBool(isGuestKey)
}

// UserEmailFromContext returns the e-mail from a session token, if any.
func UserEmailFromContext(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// UserNameFromContext returns the display name from a session token, if any.
func UserNameFromContext(c *gin.Context) string {
	return c.GetString(userNameKey)
}
