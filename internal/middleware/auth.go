package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"scalerrs-portal-api/internal/auth"
	"scalerrs-portal-api/internal/models"
	"scalerrs-portal-api/internal/service"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Identity header names sent by the portal UI.
const (
	HeaderUserID     = "x-user-id"
	HeaderUserRole   = "x-user-role"
	HeaderUserClient = "x-user-client"
)

// IdentityOptions configures how callers are recognised.
type IdentityOptions struct {
	Tokens *auth.Tokens
	// TrustHeaders accepts the x-user-* headers when no token is presented.
	TrustHeaders bool
	// Require rejects callers that present no identity at all.
	Require bool
}

// IdentityMiddleware resolves the caller from a bearer token or the identity
// headers and stores it in the context for IdentityFrom.
func IdentityMiddleware(opts IdentityOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString != "" {
			if opts.Tokens == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token authentication is not enabled"})
				return
			}
			claims, err := opts.Tokens.ValidateToken(tokenString)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.Set(identityKey, service.Identity{
				UserID:    claims.UserID,
				Name:      claims.Name,
				Role:      models.ParseRole(claims.Role),
				ClientIDs: claims.ClientIDs,
			})
			c.Next()
			return
		}

		if opts.TrustHeaders {
			id, ok, err := headerIdentity(c)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if ok {
				c.Set(identityKey, id)
				c.Next()
				return
			}
		}

		if opts.Require {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization token is required"})
			return
		}
		c.Set(identityKey, service.Identity{})
		c.Next()
	}
}

// RequireStaff allows only admins and team members through.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).Role.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Staff access required"})
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller stored by IdentityMiddleware, or an anonymous identity.
func IdentityFrom(c *gin.Context) service.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(service.Identity); ok {
			return id
		}
	}
	return service.Identity{}
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return c.Query("token")
}

var errClientHeader = errors.New(HeaderUserClient + " must be a JSON array of client ids")

// headerIdentity reads x-user-id, x-user-role and x-user-client. The client
// header is a JSON array; a bare id or comma list is accepted too.
func headerIdentity(c *gin.Context) (service.Identity, bool, error) {
	userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	role := strings.TrimSpace(c.GetHeader(HeaderUserRole))
	rawClients := strings.TrimSpace(c.GetHeader(HeaderUserClient))
	if userID == "" && role == "" && rawClients == "" {
		return service.Identity{}, false, nil
	}

	var clients []string
	switch {
	case rawClients == "":
	case strings.HasPrefix(rawClients, "["):
		if err := json.Unmarshal([]byte(rawClients), &clients); err != nil {
			return service.Identity{}, false, errClientHeader
		}
	default:
		clients = strings.Split(rawClients, ",")
	}
	ids := clients[:0]
	for _, cid := range clients {
		if cid = strings.TrimSpace(cid); cid != "" {
			ids = append(ids, cid)
		}
	}

	return service.Identity{
		UserID:    userID,
		Role:      models.ParseRole(role),
		ClientIDs: ids,
	}, true, nil
}
